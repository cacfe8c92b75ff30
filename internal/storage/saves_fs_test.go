package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
)

func TestFSSaves_SaveLoadLatest(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "saves")
	fs := NewFSSaves(dir)

	_, _, err := fs.LoadGame(ctx, "")
	assert.ErrorIs(t, err, models.ErrSaveNotFound)

	older := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	newer := older.Add(time.Minute)

	first, err := fs.SaveGame(ctx, models.SaveInfo{SessionID: "s1", SavedAt: older},
		[]byte(`{"initials":"OLD","stats":{"score":10}}`))
	require.NoError(t, err)
	second, err := fs.SaveGame(ctx, models.SaveInfo{SessionID: "s2", SavedAt: newer},
		[]byte(`{"initials":"NEW","stats":{"score":20}}`))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	data, info, err := fs.LoadGame(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, info.ID)
	assert.Equal(t, "s2", info.SessionID)
	assert.True(t, newer.Equal(info.SavedAt))
	assert.Contains(t, string(data), "NEW")

	data, _, err = fs.LoadGame(ctx, first.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "OLD")

	list, err := fs.ListSaves(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "NEW", list[0].Initials)
	assert.Equal(t, 20, list[0].Score)
	assert.Equal(t, "OLD", list[1].Initials)

	// 一時ファイルは残らない
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, ents, 2)
}

func TestFSSaves_RejectsPathTraversal(t *testing.T) {
	fs := NewFSSaves(t.TempDir())
	for _, id := range []string{"../etc/passwd", ".hidden", "a/b"} {
		_, _, err := fs.LoadGame(context.Background(), id)
		assert.ErrorIs(t, err, models.ErrSaveNotFound, id)
	}
	_, _, err := fs.LoadGame(context.Background(), "20240101T000000.000000000Z_missing")
	assert.ErrorIs(t, err, models.ErrSaveNotFound)
}

func TestFSSaves_ListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old"), 0o755))

	list, err := NewFSSaves(dir).ListSaves(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
