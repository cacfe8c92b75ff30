package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
)

var leaderboardHeader = []string{"Initials", "Score"}

// CSVLeaderboard は "Initials,Score" 形式のCSVファイルにランキングを保存します。
// 追記のみで、並べ替えは読み込み時に行います。
type CSVLeaderboard struct {
	path string
	mu   sync.Mutex
}

// NewCSVLeaderboard は指定したパスのCSVファイルを使うランキングを作成します。ファイルは最初の追加時に作られます。
func NewCSVLeaderboard(path string) *CSVLeaderboard {
	return &CSVLeaderboard{path: path}
}

// AddEntry はスコアを1行追記します。
func (l *CSVLeaderboard) AddEntry(ctx context.Context, initials string, score int) (*models.LeaderboardEntry, error) {
	initials, err := models.NormalizeInitials(initials)
	if err != nil {
		return nil, err
	}
	if score < 0 {
		return nil, fmt.Errorf("negative score %d", score)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("ランキングのディレクトリ作成に失敗しました: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ランキングファイルを開けませんでした: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(leaderboardHeader); err != nil {
			return nil, err
		}
	}
	if err := w.Write([]string{initials, strconv.Itoa(score)}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("ランキングの書き込みに失敗しました: %w", err)
	}
	log.Debug().Msgf("[CSVLeaderboard] Added %s %d to %s", initials, score, l.path)
	return &models.LeaderboardEntry{Initials: initials, Score: score, CreatedAt: time.Now()}, nil
}

// GetEntries はファイル全体を読み込み、指定した順序で並べて返します。ファイルがなければ空です。
func (l *CSVLeaderboard) GetEntries(ctx context.Context, order models.SortOrder, limit int) ([]models.LeaderboardResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	entries, err := l.readAll()
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return rankEntries(entries, order, limit), nil
}

func (l *CSVLeaderboard) readAll() ([]models.LeaderboardEntry, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ランキングファイルを開けませんでした: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var entries []models.LeaderboardEntry
	for line := 1; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ランキングファイルの読み込みに失敗しました: %w", err)
		}
		if line == 1 && len(record) >= 1 && strings.EqualFold(record[0], leaderboardHeader[0]) {
			continue
		}
		if len(record) != 2 {
			log.Warn().Msgf("[CSVLeaderboard] Skipping malformed line %d in %s", line, l.path)
			continue
		}
		score, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			log.Warn().Msgf("[CSVLeaderboard] Skipping line %d with invalid score %q", line, record[1])
			continue
		}
		entries = append(entries, models.LeaderboardEntry{ID: int64(line), Initials: record[0], Score: score})
	}
	return entries, nil
}

// rankEntries は順位を付けて並べ替えます。順位は常に高得点が1位で、同点は同順位です。
func rankEntries(entries []models.LeaderboardEntry, order models.SortOrder, limit int) []models.LeaderboardResponse {
	sort.SliceStable(entries, func(i, j int) bool {
		if order == models.SortAscending {
			return entries[i].Score < entries[j].Score
		}
		return entries[i].Score > entries[j].Score
	})

	out := make([]models.LeaderboardResponse, 0, len(entries))
	for _, e := range entries {
		rank := 1
		for _, other := range entries {
			if other.Score > e.Score {
				rank++
			}
		}
		out = append(out, models.LeaderboardResponse{LeaderboardEntry: e, Rank: rank})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
