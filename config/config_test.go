package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{"JWT_SECRET_KEY": "secret"}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.R2.Enabled())
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, time.Minute, cfg.SweepInterval)

	assert.Equal(t, 60, cfg.Rooms.TickRate)
	assert.Equal(t, 45, cfg.Rooms.WaitSeconds)
	assert.Equal(t, 5*time.Second, cfg.Rooms.GraceDelay)
	assert.Equal(t, 2*time.Second, cfg.Rooms.CancelDelay)

	assert.Equal(t, 5*time.Minute, cfg.Tournament.RegistrationTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Tournament.MatchTimeout)
	assert.Equal(t, time.Hour, cfg.Tournament.ArchiveRetention)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{
		"JWT_SECRET_KEY":                  "secret",
		"SERVER_PORT":                     "9000",
		"LOG_LEVEL":                       "debug",
		"ROOM_TICK_RATE":                  "30",
		"ROOM_GRACE_DELAY":                "1s",
		"TOURNAMENT_REGISTRATION_TIMEOUT": "90s",
		"CORS_ALLOWED_ORIGINS":            "https://a.example, https://b.example ,",
		"R2_ACCOUNT_ID":                   "acc",
		"R2_ACCESS_KEY_ID":                "key",
		"R2_SECRET_ACCESS_KEY":            "sec",
		"R2_BUCKET_NAME":                  "archive",
		"R2_PUBLIC_BASE_URL":              "https://pub.r2.dev",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 30, cfg.Rooms.TickRate)
	assert.Equal(t, time.Second, cfg.Rooms.GraceDelay)
	assert.Equal(t, 90*time.Second, cfg.Tournament.RegistrationTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.R2.Enabled())
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{}},
		{name: "bad port", env: map[string]string{"JWT_SECRET_KEY": "s", "SERVER_PORT": "http"}},
		{name: "port out of range", env: map[string]string{"JWT_SECRET_KEY": "s", "SERVER_PORT": "70000"}},
		{name: "bad duration", env: map[string]string{"JWT_SECRET_KEY": "s", "TOURNAMENT_MATCH_TIMEOUT": "ten minutes"}},
		{name: "negative duration", env: map[string]string{"JWT_SECRET_KEY": "s", "ROOM_CANCEL_DELAY": "-1s"}},
		{name: "bad level", env: map[string]string{"JWT_SECRET_KEY": "s", "LOG_LEVEL": "loud"}},
		{name: "zero tick rate", env: map[string]string{"JWT_SECRET_KEY": "s", "ROOM_TICK_RATE": "0"}},
		{name: "partial r2", env: map[string]string{"JWT_SECRET_KEY": "s", "R2_BUCKET_NAME": "archive"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromEnv(envFrom(tt.env))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
