package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/services/tetris"
)

// Config はサーバーの設定です。すべて環境変数から読み込みます。
type Config struct {
	AppEnv          string
	Port            string
	DatabaseURL     string // 空ならランキングとセーブデータはファイルに保存
	LeaderboardFile string
	SaveDir         string
	JWTSecret       string
	BypassAuth      bool
	AllowedOrigins  []string
	TickInterval    time.Duration
	LogLevel        zerolog.Level
	Debug           bool
	GameOptions     tetris.Options
}

// Production は本番環境で動作しているかどうかを返します。
func (c *Config) Production() bool { return c.AppEnv == "production" }

// Load は .env ファイル (本番以外) と環境変数から設定を読み込みます。
//
// Returns:
//
//	*Config: 読み込んだ設定
//	error  : 値の形式が不正、またはゲーム設定が範囲外の場合
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Debug().Err(err).Msg("[Config] .env ファイルを読み込めませんでした (本番環境では問題ありません)")
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv は getenv から設定を組み立てます。
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		AppEnv:          get("APP_ENV", "development"),
		Port:            get("PORT", "8080"),
		DatabaseURL:     get("DATABASE_URL", ""),
		LeaderboardFile: get("LEADERBOARD_FILE", "leaderboard.csv"),
		SaveDir:         get("SAVE_DIR", "saves"),
		JWTSecret:       get("SUPABASE_JWT_SECRET", ""),
		AllowedOrigins:  splitList(get("ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	var err error
	if cfg.BypassAuth, err = parseBool("BYPASS_AUTH", get("BYPASS_AUTH", "false")); err != nil {
		return nil, err
	}
	if cfg.Debug, err = parseBool("DEBUG", get("DEBUG", "false")); err != nil {
		return nil, err
	}
	if cfg.TickInterval, err = time.ParseDuration(get("TICK_INTERVAL", "50ms")); err != nil || cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL が不正です: %q", getenv("TICK_INTERVAL"))
	}

	level := get("LOG_LEVEL", "info")
	if cfg.Debug {
		level = "debug"
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(level); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL が不正です: %w", err)
	}

	opts := tetris.DefaultOptions()
	if opts.NextQueueDepth, err = strconv.Atoi(get("NEXT_QUEUE_DEPTH", strconv.Itoa(opts.NextQueueDepth))); err != nil {
		return nil, fmt.Errorf("NEXT_QUEUE_DEPTH が不正です: %w", err)
	}
	if opts.HoldEnabled, err = parseBool("HOLD_ENABLED", get("HOLD_ENABLED", strconv.FormatBool(opts.HoldEnabled))); err != nil {
		return nil, err
	}
	if opts.GhostPieceEnabled, err = parseBool("GHOST_PIECE_ENABLED", get("GHOST_PIECE_ENABLED", strconv.FormatBool(opts.GhostPieceEnabled))); err != nil {
		return nil, err
	}
	if opts.LockDown, err = tetris.ParseLockDownPolicy(get("LOCK_DOWN_POLICY", string(opts.LockDown))); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	cfg.GameOptions = opts

	return cfg, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s が不正です: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
