package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
)

// saveTimeLayout はファイル名に使う保存日時の形式です。文字列として並べると時刻順になります。
const saveTimeLayout = "20060102T150405.000000000Z"

// FSSaves はディレクトリにセーブデータを1件1ファイルで保存します。
// ファイル名は "<保存日時>_<セッションID>.json" です。
type FSSaves struct{ dir string }

func NewFSSaves(dir string) *FSSaves { return &FSSaves{dir: dir} }

// saveHeader はセーブデータのJSONのうち一覧表示に使う項目です。
type saveHeader struct {
	Initials string `json:"initials"`
	Stats    struct {
		Score int `json:"score"`
	} `json:"stats"`
}

func (s *FSSaves) pathFor(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: invalid save id %q", models.ErrSaveNotFound, id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// SaveGame はセーブデータを新しいファイルに書き込みます。
func (s *FSSaves) SaveGame(ctx context.Context, info models.SaveInfo, data []byte) (*models.SaveInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	info.ID = info.SavedAt.UTC().Format(saveTimeLayout) + "_" + info.SessionID
	target, err := s.pathFor(info.ID)
	if err != nil {
		return nil, err
	}

	// 書き込み途中のファイルを読まれないよう一時ファイルから置き換える
	tmp, err := os.CreateTemp(s.dir, ".save-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return nil, err
	}
	log.Debug().Msgf("[FSSaves] Wrote %s", target)
	return &info, nil
}

// LoadGame はセーブデータを読み込みます。idが空ならファイル名が最も新しいものを読みます。
func (s *FSSaves) LoadGame(ctx context.Context, id string) ([]byte, *models.SaveInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if id == "" {
		saves, err := s.ListSaves(ctx, 1)
		if err != nil {
			return nil, nil, err
		}
		if len(saves) == 0 {
			return nil, nil, models.ErrSaveNotFound
		}
		id = saves[0].ID
	}
	path, err := s.pathFor(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", models.ErrSaveNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}
	info := infoFromName(id)
	return data, &info, nil
}

// ListSaves は新しい順にセーブデータを返します。読めないファイルは飛ばします。
func (s *FSSaves) ListSaves(ctx context.Context, limit int) ([]models.SaveInfo, error) {
	ents, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var out []models.SaveInfo
	for _, id := range names {
		if limit > 0 && len(out) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info := infoFromName(id)
		data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
		if err != nil {
			continue
		}
		var h saveHeader
		if err := json.Unmarshal(data, &h); err == nil {
			info.Initials = h.Initials
			info.Score = h.Stats.Score
		}
		out = append(out, info)
	}
	return out, nil
}

// infoFromName はファイル名から保存日時とセッションIDを読み取ります。
func infoFromName(id string) models.SaveInfo {
	info := models.SaveInfo{ID: id}
	stamp, session, _ := strings.Cut(id, "_")
	info.SessionID = session
	if t, err := time.Parse(saveTimeLayout, stamp); err == nil {
		info.SavedAt = t
	}
	return info
}
