package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

type AppConfig struct {
	Name      string `yaml:"name" validate:"required"`
	Port      string `yaml:"port" validate:"required,numeric"`
	LogLevel  string `yaml:"log_level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogPretty bool   `yaml:"log_pretty"`
}

type HTTPConfig struct {
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" validate:"gt=0"`
}

type PostgresConfig struct {
	URL             string        `yaml:"url"`
	MaxConns        int32         `yaml:"max_conns" validate:"gte=1"`
	MinConns        int32         `yaml:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" validate:"gt=0"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

type AuthConfig struct {
	// VerifyPassword turns on bcrypt checks in login. Off by default: login
	// matches on username only.
	VerifyPassword bool `yaml:"verify_password"`
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	HTTP     HTTPConfig     `yaml:"http"`
	Postgres PostgresConfig `yaml:"postgres"`
	Auth     AuthConfig     `yaml:"auth"`
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:     "forum-service",
			Port:     "8080",
			LogLevel: "info",
		},
		HTTP: HTTPConfig{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and the process environment, in that order. envFile is loaded
// with godotenv first; a missing file is ignored.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Postgres.URL == "" {
		return nil, ErrMissingDatabaseURL
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Name, "APP_NAME")
	setString(&cfg.App.Port, "APP_PORT")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	setString(&cfg.Postgres.MigrationsPath, "MIGRATIONS_PATH")

	if err := setBool(&cfg.App.LogPretty, "LOG_PRETTY"); err != nil {
		return err
	}
	if err := setBool(&cfg.Auth.VerifyPassword, "AUTH_VERIFY_PASSWORD"); err != nil {
		return err
	}
	if err := setInt32(&cfg.Postgres.MaxConns, "DB_MAX_CONNS"); err != nil {
		return err
	}
	if err := setInt32(&cfg.Postgres.MinConns, "DB_MIN_CONNS"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Postgres.MaxConnLifetime, "DB_MAX_CONN_LIFETIME"); err != nil {
		return err
	}
	if err := setDuration(&cfg.HTTP.ReadTimeout, "HTTP_READ_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.HTTP.WriteTimeout, "HTTP_WRITE_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.HTTP.IdleTimeout, "HTTP_IDLE_TIMEOUT"); err != nil {
		return err
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func setInt32(dst *int32, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = int32(n)
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
