// Package config assembles service configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PrathmeshKudale/krishi-mitra/internal/assistant"
	"github.com/PrathmeshKudale/krishi-mitra/internal/media"
	"github.com/PrathmeshKudale/krishi-mitra/internal/session"
	"github.com/PrathmeshKudale/krishi-mitra/pkg/database"
	"github.com/PrathmeshKudale/krishi-mitra/pkg/utilities"
)

// PathEnv names the variable consulted when no --config flag is given.
const PathEnv = "KRISHI_CONFIG"

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Database database.Config  `yaml:"database"`
	Logging  utilities.Config `yaml:"logging"`
	AI       assistant.Config `yaml:"ai"`
	Media    media.Config     `yaml:"media"`
	Session  session.Config   `yaml:"session"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "0.0.0.0:8431",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: database.DefaultConfig(),
		Logging:  utilities.DefaultConfig(),
		AI: assistant.Config{
			Model:   assistant.DefaultModel,
			Timeout: assistant.DefaultTimeout,
		},
		Media:   media.DefaultConfig(),
		Session: session.Config{Issuer: "krishi-mitra", TTL: 24 * time.Hour},
	}
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides. A missing file is an error only when path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	setString(&c.Server.Addr, "HTTP_ADDR")

	setString(&c.Database.Backend, "DATABASE_BACKEND")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Database.MongoURI, "MONGODB_URI")
	setString(&c.Database.MongoDatabase, "MONGODB_DATABASE")
	setString(&c.Database.TimeZone, "DB_TIMEZONE")

	setString(&c.AI.APIKey, "GEMINI_API_KEY")
	setString(&c.AI.Model, "GEMINI_MODEL")

	setString(&c.Media.Root, "MEDIA_ROOT")

	setString(&c.Session.Secret, "SESSION_SECRET")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.File, "LOG_FILE")
	if os.Getenv("LOG_DEV") == "1" {
		c.Logging.Dev = true
	}

	var errs []error
	errs = append(errs, setInt(&c.Database.MaxConns, "DB_MAX_CONNS"))
	errs = append(errs, setDuration(&c.Database.Timeout, "DB_TIMEOUT"))
	errs = append(errs, setDuration(&c.AI.Timeout, "GEMINI_TIMEOUT"))
	errs = append(errs, setDuration(&c.Session.TTL, "SESSION_TTL"))
	return errors.Join(errs...)
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is not set"))
	}
	if c.AI.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is not set"))
	}
	switch c.Database.Backend {
	case database.BackendSQL:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_URL is not set"))
		}
	case database.BackendMongo:
		if c.Database.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid DATABASE_BACKEND %q (valid: sql, mongo)", c.Database.Backend))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
