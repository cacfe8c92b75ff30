package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/services/tetris"
	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗しました")
	}

	zerolog.SetGlobalLevel(cfg.LogLevel)
	if !cfg.Production() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	// DATABASE_URL があればPostgreSQL、なければファイルに保存する
	var (
		dbService   *database.DatabaseService
		leaderboard tetris.LeaderboardRepository
		saves       tetris.SaveRepository
	)
	if cfg.DatabaseURL != "" {
		dbService, err = database.NewDatabaseService(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("データベースサービスの初期化に失敗しました")
		}
		defer dbService.Close()
		if err := dbService.EnsureSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("スキーマの作成に失敗しました")
		}
		leaderboard = database.NewLeaderboardRepository(dbService.DB)
		saves = database.NewSaveRepository(dbService.DB)
	} else {
		log.Info().Msgf("DATABASE_URL が未設定のため、ランキングを %s、セーブデータを %s に保存します", cfg.LeaderboardFile, cfg.SaveDir)
		leaderboard = storage.NewCSVLeaderboard(cfg.LeaderboardFile)
		saves = storage.NewFSSaves(cfg.SaveDir)
	}

	sessionManager := tetris.NewSessionManager(tetris.ManagerConfig{
		TickInterval:     cfg.TickInterval,
		DefaultOptions:   cfg.GameOptions,
		EnforceOwnership: !cfg.BypassAuth,
	}, leaderboard, saves)

	router := handlers.NewRouter(
		handlers.NewPublicHandler(dbService, cfg.GameOptions),
		handlers.NewGameHandler(sessionManager, cfg.AllowedOrigins),
		handlers.NewLeaderboardHandler(sessionManager),
		middleware.AuthMiddleware(middleware.AuthConfig{JWTSecret: cfg.JWTSecret, BypassAuth: cfg.BypassAuth}),
	)
	router.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CORSHandler(cfg.AllowedOrigins)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("サーバーの起動に失敗しました")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("シャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sessionManager.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("サーバーのシャットダウンに失敗しました")
	}
}
