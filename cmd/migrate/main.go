package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/database"
)

// データベース接続を確認し、ランキングとセーブデータのテーブルを作成します。
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗しました")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("エラー: DATABASE_URL 環境変数が設定されていません。")
	}

	dbService, err := database.NewDatabaseService(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("データベースに接続できませんでした")
	}
	defer dbService.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := dbService.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("スキーマの作成に失敗しました")
	}

	var entries, saves int
	if err := dbService.DB.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM leaderboard), (SELECT COUNT(*) FROM saves)").Scan(&entries, &saves); err != nil {
		log.Fatal().Err(err).Msg("テーブルの確認に失敗しました")
	}
	log.Info().Msgf("データベース接続とテーブルの確認に成功しました (leaderboard: %d件, saves: %d件)", entries, saves)
}
