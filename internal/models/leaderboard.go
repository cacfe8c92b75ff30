package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// InitialsMaxLength はランキングに登録できるイニシャルの最大文字数です。
const InitialsMaxLength = 3

// ErrInvalidInitials はイニシャルが1-3文字の表示可能な文字列でないときに返されます。
var ErrInvalidInitials = errors.New("invalid initials")

// LeaderboardEntry はランキングの1件です。
type LeaderboardEntry struct {
	ID        int64     `json:"id,omitempty"`
	Initials  string    `json:"initials"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// LeaderboardResponse はAPIレスポンス用の構造体です。
type LeaderboardResponse struct {
	LeaderboardEntry
	Rank int `json:"rank"` // ランキング順位 (1始まり)
}

// LeaderboardRequest はスコア登録リクエスト用の構造体です。
type LeaderboardRequest struct {
	Initials string `json:"initials"`
}

// SortOrder はランキングの並び順です。
type SortOrder string

const (
	SortDescending SortOrder = "desc" // 高得点順
	SortAscending  SortOrder = "asc"  // 低得点順 (CSVファイルの読み込み順)
)

// ParseSortOrder はクエリパラメータの並び順を読み取ります。空の場合は高得点順です。
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(s)) {
	case "", SortDescending:
		return SortDescending, nil
	case SortAscending:
		return SortAscending, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// NormalizeInitials はイニシャルを検証し、大文字に揃えて返します。
//
// Parameters:
//
//	initials : プレイヤーが入力したイニシャル
//
// Returns:
//
//	string: 前後の空白を除き、大文字に変換したイニシャル
//	error : 空、4文字以上、制御文字を含む場合 ErrInvalidInitials
func NormalizeInitials(initials string) (string, error) {
	initials = strings.TrimSpace(initials)
	if initials == "" || utf8.RuneCountInString(initials) > InitialsMaxLength {
		return "", fmt.Errorf("%w: must be 1-%d characters, got %q", ErrInvalidInitials, InitialsMaxLength, initials)
	}
	for _, r := range initials {
		if !unicode.IsPrint(r) {
			return "", fmt.Errorf("%w: %q contains non-printable characters", ErrInvalidInitials, initials)
		}
	}
	return strings.ToUpper(initials), nil
}
