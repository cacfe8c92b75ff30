package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQLドライバー
	"github.com/rs/zerolog/log"
)

// schema はランキングとセーブデータのテーブル定義です。
var schema = []string{
	`CREATE TABLE IF NOT EXISTS leaderboard (
		id         BIGSERIAL PRIMARY KEY,
		initials   VARCHAR(3) NOT NULL,
		score      INTEGER NOT NULL CHECK (score >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS leaderboard_score_idx ON leaderboard (score DESC, created_at ASC)`,
	`CREATE TABLE IF NOT EXISTS saves (
		id         UUID PRIMARY KEY,
		session_id TEXT NOT NULL,
		initials   VARCHAR(3) NOT NULL DEFAULT '',
		score      INTEGER NOT NULL,
		saved_at   TIMESTAMPTZ NOT NULL,
		data       JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS saves_saved_at_idx ON saves (saved_at DESC)`,
}

// DatabaseService はデータベース接続を保持します。
type DatabaseService struct {
	DB *sql.DB
}

// NewDatabaseService はPostgreSQLに接続し、接続できることを確認してから DatabaseService を返します。
func NewDatabaseService(databaseURL string) (*DatabaseService, error) {
	log.Info().Msgf("[DatabaseService] データベース接続を試行中: %s...", databaseURL[:min(len(databaseURL), 20)])
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("データベースへの接続オブジェクト作成に失敗しました: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースのPingに失敗しました。接続情報やネットワークを確認してください: %w", err)
	}
	log.Info().Msg("[DatabaseService] データベースに正常に接続しました。")
	return &DatabaseService{DB: db}, nil
}

// EnsureSchema は必要なテーブルがなければ作成します。
func (s *DatabaseService) EnsureSchema(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("スキーマの作成に失敗しました: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("スキーマのコミットに失敗しました: %w", err)
	}
	log.Info().Msg("[DatabaseService] スキーマを確認しました")
	return nil
}

// Close はデータベース接続を閉じます。
func (s *DatabaseService) Close() error {
	return s.DB.Close()
}
