package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultListenAddr      = ":8080"
	defaultLogMode         = "development"
	defaultConflictWindow  = 2 * time.Hour
	defaultRequestTimeout  = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultStatsCacheTTL   = time.Minute
)

// Config stores runtime settings of the API server.
type Config struct {
	ListenAddr      string
	PostgresConn    string
	RedisAddr       string
	JWTSecret       string
	LogMode         string
	ConflictWindow  time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	StatsCacheTTL   time.Duration
}

type fileConfig struct {
	ListenAddr      *string `toml:"listen_addr"`
	PostgresConn    *string `toml:"postgres_conn"`
	RedisAddr       *string `toml:"redis_addr"`
	JWTSecret       *string `toml:"jwt_secret"`
	LogMode         *string `toml:"log_mode"`
	ConflictWindow  *string `toml:"conflict_window"`
	RequestTimeout  *string `toml:"request_timeout"`
	ShutdownTimeout *string `toml:"shutdown_timeout"`
	StatsCacheTTL   *string `toml:"stats_cache_ttl"`
}

// Load builds the config from defaults, the optional TOML file at path and
// then environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		if err := overlayFromFile(&cfg, path); err != nil {
			return nil, err
		}
	}
	if err := overlayFromEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() Config {
	return Config{
		ListenAddr:      defaultListenAddr,
		LogMode:         defaultLogMode,
		ConflictWindow:  defaultConflictWindow,
		RequestTimeout:  defaultRequestTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
		StatsCacheTTL:   defaultStatsCacheTTL,
	}
}

func (c *Config) Validate() error {
	if c.ConflictWindow <= 0 {
		return fmt.Errorf("conflict_window must be positive, got %s", c.ConflictWindow)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.StatsCacheTTL < 0 {
		return fmt.Errorf("stats_cache_ttl must not be negative, got %s", c.StatsCacheTTL)
	}
	switch c.LogMode {
	case "development", "production":
	default:
		return fmt.Errorf("log_mode must be development or production, got %q", c.LogMode)
	}
	return nil
}

func overlayFromFile(cfg *Config, path string) error {
	var decoded fileConfig
	if _, err := toml.DecodeFile(path, &decoded); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %q not found", path)
		}
		return fmt.Errorf("decode config file %q: %w", path, err)
	}

	setString(&cfg.ListenAddr, decoded.ListenAddr)
	setString(&cfg.PostgresConn, decoded.PostgresConn)
	setString(&cfg.RedisAddr, decoded.RedisAddr)
	setString(&cfg.JWTSecret, decoded.JWTSecret)
	setString(&cfg.LogMode, decoded.LogMode)

	durations := []struct {
		key    string
		value  *string
		target *time.Duration
	}{
		{"conflict_window", decoded.ConflictWindow, &cfg.ConflictWindow},
		{"request_timeout", decoded.RequestTimeout, &cfg.RequestTimeout},
		{"shutdown_timeout", decoded.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"stats_cache_ttl", decoded.StatsCacheTTL, &cfg.StatsCacheTTL},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		parsed, err := parseDuration(*d.value, d.key, path)
		if err != nil {
			return err
		}
		*d.target = parsed
	}
	return nil
}

func overlayFromEnv(cfg *Config) error {
	setString(&cfg.ListenAddr, getenv("LISTEN_ADDR"))
	setString(&cfg.PostgresConn, getenv("POSTGRES_CONN"))
	setString(&cfg.RedisAddr, getenv("REDIS_ADDR"))
	setString(&cfg.JWTSecret, getenv("JWT_SECRET"))
	setString(&cfg.LogMode, getenv("LOG_MODE"))

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"CONFLICT_WINDOW", &cfg.ConflictWindow},
		{"REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"STATS_CACHE_TTL", &cfg.StatsCacheTTL},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == nil {
			continue
		}
		parsed, err := parseDuration(*v, d.key, "environment")
		if err != nil {
			return err
		}
		*d.target = parsed
	}
	return nil
}

// getenv returns nil for unset or blank variables.
func getenv(key string) *string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	return &v
}

func setString(target *string, value *string) {
	if value != nil {
		*target = strings.TrimSpace(*value)
	}
}

func parseDuration(value, key, source string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s in %q: %w", key, source, err)
	}
	return parsed, nil
}
