package models

import (
	"errors"
	"time"
)

// ErrSaveNotFound は指定したセーブデータ (または最新のセーブデータ) が存在しないときに返されます。
var ErrSaveNotFound = errors.New("save not found")

// SaveInfo はセーブデータの一覧表示用の情報です。データ本体は含みません。
type SaveInfo struct {
	ID        string    `json:"id"`         // ファイル名またはレコードID
	SessionID string    `json:"session_id"` // 保存元のセッション
	Initials  string    `json:"initials,omitempty"`
	Score     int       `json:"score"`
	SavedAt   time.Time `json:"saved_at"`
}

// SaveRequest はセーブ・ロードのリクエスト用の構造体です。
type SaveRequest struct {
	Initials string `json:"initials,omitempty"`
	SaveID   string `json:"save_id,omitempty"` // ロード時のみ。空なら最新のセーブデータ
}
