// Package config loads server settings from an optional .env file and the
// environment, and builds the process logger.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

type Config struct {
	Env      string
	Addr     string
	LogLevel string

	// DatabaseURL selects Postgres; empty runs on the local SQLite file.
	DatabaseURL string
	LocalDBPath string
	// MaintenanceSchedule is a cron spec for store upkeep; empty disables it.
	MaintenanceSchedule string

	WSReadTimeout   time.Duration
	WSWriteTimeout  time.Duration
	WSOutboxSize    int
	OriginPatterns  []string
	ExportScale     float64
	ShutdownTimeout time.Duration
}

func Defaults() Config {
	return Config{
		Env:                 EnvProduction,
		Addr:                ":8080",
		LogLevel:            "info",
		LocalDBPath:         "./data/canvas.db",
		MaintenanceSchedule: "@every 15m",
		WSReadTimeout:       30 * time.Second,
		WSWriteTimeout:      3 * time.Second,
		WSOutboxSize:        64,
		ExportScale:         1,
		ShutdownTimeout:     10 * time.Second,
	}
}

// Load reads envFiles (missing files are skipped) and then the environment.
// Variables already set in the environment win over the files. All parse
// errors are reported together.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from any key lookup, typically os.LookupEnv or
// a map read with godotenv.Read.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	var errs error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := cast.ToDurationE(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("APP_ENV", &cfg.Env)
	str("HTTP_ADDR", &cfg.Addr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("LOCAL_DB_PATH", &cfg.LocalDBPath)
	if v, ok := lookup("MAINTENANCE_SCHEDULE"); ok {
		cfg.MaintenanceSchedule = v
	}
	dur("WS_READ_TIMEOUT", &cfg.WSReadTimeout)
	dur("WS_WRITE_TIMEOUT", &cfg.WSWriteTimeout)
	num("WS_OUTBOX_SIZE", &cfg.WSOutboxSize)
	dur("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	if v, ok := lookup("EXPORT_SCALE"); ok && v != "" {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("EXPORT_SCALE: %w", err))
		} else {
			cfg.ExportScale = f
		}
	}
	if v, ok := lookup("WS_ORIGIN_PATTERNS"); ok && v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.OriginPatterns = append(cfg.OriginPatterns, p)
			}
		}
	}

	errs = multierr.Append(errs, cfg.validate())
	return cfg, errs
}

func (c Config) validate() error {
	var errs error
	if c.Env != EnvProduction && c.Env != EnvDevelopment {
		errs = multierr.Append(errs, fmt.Errorf("APP_ENV: want %s or %s, got %q", EnvProduction, EnvDevelopment, c.Env))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.DatabaseURL == "" && c.LocalDBPath == "" {
		errs = multierr.Append(errs, errors.New("one of DATABASE_URL or LOCAL_DB_PATH is required"))
	}
	if c.WSOutboxSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("WS_OUTBOX_SIZE: must be positive, got %d", c.WSOutboxSize))
	}
	if c.ExportScale <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("EXPORT_SCALE: must be positive, got %v", c.ExportScale))
	}
	return errs
}

// Local reports whether the server runs on the SQLite file.
func (c Config) Local() bool { return c.DatabaseURL == "" }

// NewLogger builds a development or production zap logger whose level can be
// changed later through the returned AtomicLevel.
func NewLogger(c Config) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	zc := zap.NewProductionConfig()
	if c.Env == EnvDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	log, err := zc.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return log, level, nil
}
