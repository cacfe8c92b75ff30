package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/lineclear-backend/internal/services/tetris"
)

func envOf(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "leaderboard.csv", cfg.LeaderboardFile)
	assert.Equal(t, "saves", cfg.SaveDir)
	assert.False(t, cfg.BypassAuth)
	assert.False(t, cfg.Production())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, tetris.DefaultOptions(), cfg.GameOptions)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"APP_ENV":             "production",
		"PORT":                "9000",
		"ALLOWED_ORIGINS":     "https://a.example, https://b.example,",
		"TICK_INTERVAL":       "16ms",
		"DEBUG":               "true",
		"LOG_LEVEL":           "warn",
		"NEXT_QUEUE_DEPTH":    "3",
		"HOLD_ENABLED":        "false",
		"GHOST_PIECE_ENABLED": "0",
		"LOCK_DOWN_POLICY":    "classic",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 16*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel, "DEBUG は LOG_LEVEL より優先")
	assert.Equal(t, 3, cfg.GameOptions.NextQueueDepth)
	assert.False(t, cfg.GameOptions.HoldEnabled)
	assert.False(t, cfg.GameOptions.GhostPieceEnabled)
	assert.Equal(t, tetris.LockDownClassic, cfg.GameOptions.LockDown)
}

func TestFromEnv_Invalid(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"queue too deep": {"NEXT_QUEUE_DEPTH": "7"},
		"queue not int":  {"NEXT_QUEUE_DEPTH": "many"},
		"lock policy":    {"LOCK_DOWN_POLICY": "sticky"},
		"bool":           {"BYPASS_AUTH": "yes please"},
		"tick":           {"TICK_INTERVAL": "-5ms"},
		"log level":      {"LOG_LEVEL": "loud"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envOf(env))
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_QueueDepthOutOfRange(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{"NEXT_QUEUE_DEPTH": "0"}))
	assert.ErrorIs(t, err, tetris.ErrConfigOutOfRange)
}
