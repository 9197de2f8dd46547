// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
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
)

// Backend names accepted by BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Avatar storage names accepted by AVATAR_STORAGE.
const (
	AvatarCloudinary = "cloudinary"
	AvatarLocal      = "local"
)

type Config struct {
	AppEnv   string
	Port     int
	LogLevel slog.Level
	// Location decides which calendar day "today" is.
	Location *time.Location

	Backend     string
	DBPath      string
	RedisURL    string
	RedisPrefix string

	JWTSecret          string
	SessionTTL         time.Duration
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	AvatarStorage          string
	AvatarDir              string
	AvatarBaseURL          string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	RankScanLimit int
}

// Load reads .env (if any) and the environment, applies defaults and
// validates the combination.
func Load() (*Config, error) {
	// Missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Backend:     strings.ToLower(getEnv("BACKEND", BackendSQLite)),
		DBPath:      getEnv("DB_PATH", "data/reading.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		RedisPrefix: getEnv("REDIS_PREFIX", "reading:"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  os.Getenv("GITHUB_CALLBACK_URL"),

		AvatarStorage:          strings.ToLower(getEnv("AVATAR_STORAGE", AvatarLocal)),
		AvatarDir:              getEnv("AVATAR_DIR", "data/avatars"),
		AvatarBaseURL:          getEnv("AVATAR_BASE_URL", "/avatars"),
		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "reading_challenge/avatars"),
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.RankScanLimit, err = getInt("RANK_SCAN_LIMIT", 500); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	cfg.SessionTTL, err = time.ParseDuration(getEnv("SESSION_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	cfg.Location = time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		cfg.Location, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
		}
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

func (c *Config) validate() error {
	var errs []error

	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite backend"))
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("BACKEND must be %q or %q, got %q", BackendSQLite, BackendRedis, c.Backend))
	}

	switch c.AvatarStorage {
	case AvatarLocal:
	case AvatarCloudinary:
		if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			errs = append(errs, errors.New("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for cloudinary avatars"))
		}
	default:
		errs = append(errs, fmt.Errorf("AVATAR_STORAGE must be %q or %q, got %q", AvatarLocal, AvatarCloudinary, c.AvatarStorage))
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.RankScanLimit <= 0 {
		errs = append(errs, errors.New("RANK_SCAN_LIMIT must be positive"))
	}

	return errors.Join(errs...)
}

// getEnv treats an empty variable the same as an unset one.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}
