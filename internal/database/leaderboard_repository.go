package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/models"
)

// LeaderboardRepository はleaderboardテーブルのランキングを扱います。
type LeaderboardRepository struct {
	db *sql.DB
}

// NewLeaderboardRepository はLeaderboardRepositoryの新しいインスタンスを作成します。
func NewLeaderboardRepository(db *sql.DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// AddEntry は新しいスコアを追加します。
func (r *LeaderboardRepository) AddEntry(ctx context.Context, initials string, score int) (*models.LeaderboardEntry, error) {
	initials, err := models.NormalizeInitials(initials)
	if err != nil {
		return nil, err
	}

	entry := models.LeaderboardEntry{Initials: initials, Score: score}
	err = r.db.QueryRowContext(ctx,
		"INSERT INTO leaderboard (initials, score, created_at) VALUES ($1, $2, NOW()) RETURNING id, created_at",
		initials, score,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ランキングレコードの作成に失敗しました: %w", err)
	}
	return &entry, nil
}

// GetEntries はランキングを取得します。順位は常に高得点が1位です (同点は同順位)。
func (r *LeaderboardRepository) GetEntries(ctx context.Context, order models.SortOrder, limit int) ([]models.LeaderboardResponse, error) {
	direction := "DESC"
	if order == models.SortAscending {
		direction = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT id, initials, score, created_at,
			RANK() OVER (ORDER BY score DESC) AS rank
		FROM leaderboard
		ORDER BY score %s, created_at ASC
		LIMIT $1`, direction)

	// LIMIT NULL は全件
	rows, err := r.db.QueryContext(ctx, query, sql.NullInt64{Int64: int64(limit), Valid: limit > 0})
	if err != nil {
		return nil, fmt.Errorf("ランキングの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardResponse
	for rows.Next() {
		var e models.LeaderboardResponse
		if err := rows.Scan(&e.ID, &e.Initials, &e.Score, &e.CreatedAt, &e.Rank); err != nil {
			return nil, fmt.Errorf("ランキングデータのスキャンに失敗しました: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ランキング取得中にエラーが発生しました: %w", err)
	}
	return entries, nil
}
