// Package config loads client configuration from the environment.
//
// Values come from the process environment, optionally seeded from dotenv
// files. The API version flag is not part of Config: it is read on every
// request by migration.EnvFlagSource so that toggling it needs no restart.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ambiyansyah-risyal/apicall/migration"
)

// DefaultFiles are the dotenv files Load reads when called without arguments.
// Earlier files win.
var DefaultFiles = []string{".env.local", ".env"}

// Config holds client settings.
type Config struct {
	APIURL         string        `env:"NEXT_PUBLIC_API_URL" default:"http://localhost:8000" validate:"required,url"`
	Timeout        time.Duration `env:"API_TIMEOUT" default:"30s" validate:"gt=0"`
	MaxRetries     int           `env:"API_MAX_RETRIES" default:"3" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `env:"API_RETRY_BASE_DELAY" default:"1s" validate:"gte=0"`
	LogLevel       string        `env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// OverrideFile is a YAML file holding local flag overrides.
	OverrideFile string `env:"API_FLAG_OVERRIDE_FILE"`
	// OverrideRedisURL points at a Redis holding shared flag overrides. It
	// takes precedence over OverrideFile.
	OverrideRedisURL string `env:"API_FLAG_OVERRIDE_REDIS_URL" validate:"omitempty,url"`

	MetricsEnabled bool `env:"API_METRICS_ENABLED" default:"false"`
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	cfg, err := Parse(func(string) (string, bool) { return "", false })
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load exports the given dotenv files (DefaultFiles when none are given) into
// the process environment and parses it. Missing files are skipped and
// variables already set are never overwritten.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = DefaultFiles
	}
	existing, err := existingFiles(files)
	if err != nil {
		return Config{}, err
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return Config{}, fmt.Errorf("load env files: %w", err)
		}
	}
	return Parse(os.LookupEnv)
}

// Read returns the variables defined by files without touching the process
// environment. Missing files are skipped; earlier files win.
func Read(files ...string) (map[string]string, error) {
	existing, err := existingFiles(files)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]string)
	for _, file := range existing {
		values, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		for k, v := range values {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

// Parse builds a Config from lookup, applying defaults and validating the
// result.
func Parse(lookup func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := bind(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// OverrideStore opens the flag override store selected by the configuration:
// Redis, then the YAML file, then an in-memory store.
func (c Config) OverrideStore() (migration.OverrideStore, error) {
	switch {
	case c.OverrideRedisURL != "":
		return migration.NewRedisStoreFromURL(c.OverrideRedisURL, "")
	case c.OverrideFile != "":
		return migration.NewFileStore(c.OverrideFile), nil
	default:
		return migration.NewMemoryStore(), nil
	}
}

// FlagSource returns the standard flag chain: the environment variable, then
// the override store, then off.
func (c Config) FlagSource(logger migration.Logger) (migration.FlagSource, migration.OverrideStore, error) {
	store, err := c.OverrideStore()
	if err != nil {
		return nil, nil, err
	}
	return migration.Chain(
		migration.NewEnvFlagSource(),
		migration.NewLocalOverrideFlagSource(store, migration.WithOverrideLogger(logger)),
	), store, nil
}

func existingFiles(files []string) ([]string, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		_, err := os.Stat(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", file, err)
		}
		existing = append(existing, file)
	}
	return existing, nil
}
