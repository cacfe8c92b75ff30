package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
)

// SaveRepository はsavesテーブルにセーブデータを保存します。
type SaveRepository struct {
	db *sql.DB
}

// NewSaveRepository はSaveRepositoryの新しいインスタンスを作成します。
func NewSaveRepository(db *sql.DB) *SaveRepository {
	return &SaveRepository{db: db}
}

// SaveGame はセーブデータを1件追加します。IDは新しく採番します。
func (r *SaveRepository) SaveGame(ctx context.Context, info models.SaveInfo, data []byte) (*models.SaveInfo, error) {
	info.ID = uuid.New().String()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO saves (id, session_id, initials, score, saved_at, data) VALUES ($1, $2, $3, $4, $5, $6)",
		info.ID, info.SessionID, info.Initials, info.Score, info.SavedAt, data,
	)
	if err != nil {
		return nil, fmt.Errorf("セーブデータの保存に失敗しました: %w", err)
	}
	return &info, nil
}

// LoadGame はセーブデータを読み込みます。idが空なら最も新しいものを読みます。
func (r *SaveRepository) LoadGame(ctx context.Context, id string) ([]byte, *models.SaveInfo, error) {
	var row *sql.Row
	if id == "" {
		row = r.db.QueryRowContext(ctx,
			"SELECT id, session_id, initials, score, saved_at, data FROM saves ORDER BY saved_at DESC LIMIT 1")
	} else {
		if _, err := uuid.Parse(id); err != nil {
			return nil, nil, fmt.Errorf("%w: invalid save id %q", models.ErrSaveNotFound, id)
		}
		row = r.db.QueryRowContext(ctx,
			"SELECT id, session_id, initials, score, saved_at, data FROM saves WHERE id = $1", id)
	}

	var info models.SaveInfo
	var data []byte
	err := row.Scan(&info.ID, &info.SessionID, &info.Initials, &info.Score, &info.SavedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, models.ErrSaveNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("セーブデータの読み込みに失敗しました: %w", err)
	}
	return data, &info, nil
}

// ListSaves は新しい順にセーブデータの一覧を返します (データ本体は含みません)。
func (r *SaveRepository) ListSaves(ctx context.Context, limit int) ([]models.SaveInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, session_id, initials, score, saved_at FROM saves ORDER BY saved_at DESC LIMIT $1",
		sql.NullInt64{Int64: int64(limit), Valid: limit > 0},
	)
	if err != nil {
		return nil, fmt.Errorf("セーブデータ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var saves []models.SaveInfo
	for rows.Next() {
		var info models.SaveInfo
		if err := rows.Scan(&info.ID, &info.SessionID, &info.Initials, &info.Score, &info.SavedAt); err != nil {
			return nil, fmt.Errorf("セーブデータのスキャンに失敗しました: %w", err)
		}
		saves = append(saves, info)
	}
	return saves, rows.Err()
}
