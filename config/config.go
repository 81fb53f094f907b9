package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dosada05/pong-tournaments/rooms"
	"github.com/Dosada05/pong-tournaments/services"
	"github.com/Dosada05/pong-tournaments/storage"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET_KEY environment variable is not set")

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	ServerPort         int
	JWTSecretKey       string
	LogLevel           slog.Level
	DatabaseURL        string
	CORSAllowedOrigins []string
	SweepInterval      time.Duration

	R2         storage.R2Config
	Rooms      rooms.Config
	Tournament services.TournamentSettings
}

// Load загружает конфигурацию из переменных окружения.
// .env подгружается, если он есть.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv строит конфигурацию из произвольного источника переменных.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		ServerPort:   p.intOr("SERVER_PORT", 8080),
		JWTSecretKey: getenv("JWT_SECRET_KEY"),
		LogLevel:     p.level("LOG_LEVEL"),
		DatabaseURL:  getenv("DATABASE_URL"),
		R2: storage.R2Config{
			AccountID:       getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   getenv("R2_PUBLIC_BASE_URL"),
		},
		SweepInterval:      p.durationOr("TOURNAMENT_SWEEP_INTERVAL", time.Minute),
		CORSAllowedOrigins: p.listOr("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	roomDefaults := rooms.DefaultConfig()
	cfg.Rooms = rooms.Config{
		TickRate:      p.intOr("ROOM_TICK_RATE", roomDefaults.TickRate),
		WaitSeconds:   p.intOr("ROOM_WAIT_SECONDS", roomDefaults.WaitSeconds),
		GraceDelay:    p.durationOr("ROOM_GRACE_DELAY", roomDefaults.GraceDelay),
		CancelDelay:   p.durationOr("ROOM_CANCEL_DELAY", roomDefaults.CancelDelay),
		ReportTimeout: roomDefaults.ReportTimeout,
	}

	tDefaults := services.DefaultTournamentSettings()
	cfg.Tournament = services.TournamentSettings{
		RegistrationTimeout: p.durationOr("TOURNAMENT_REGISTRATION_TIMEOUT", tDefaults.RegistrationTimeout),
		MatchTimeout:        p.durationOr("TOURNAMENT_MATCH_TIMEOUT", tDefaults.MatchTimeout),
		ArchiveRetention:    p.durationOr("TOURNAMENT_ARCHIVE_RETENTION", tDefaults.ArchiveRetention),
		ArchiveTimeout:      tDefaults.ArchiveTimeout,
	}

	if p.err != nil {
		return nil, p.err
	}
	if cfg.JWTSecretKey == "" {
		return nil, ErrMissingJWTSecret
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}
	if cfg.Rooms.TickRate <= 0 || cfg.Rooms.WaitSeconds <= 0 {
		return nil, errors.New("ROOM_TICK_RATE and ROOM_WAIT_SECONDS must be positive")
	}
	if cfg.R2.Enabled() {
		if err := cfg.R2.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// parser запоминает первую ошибку разбора.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
}

func (p *parser) intOr(key string, def int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return v
}

func (p *parser) durationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, err)
		return def
	}
	if v <= 0 {
		p.fail(key, fmt.Errorf("must be positive, got %s", v))
		return def
	}
	return v
}

func (p *parser) level(key string) slog.Level {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return slog.LevelInfo
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		p.fail(key, err)
		return slog.LevelInfo
	}
	return lvl
}

func (p *parser) listOr(key string, def []string) []string {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
