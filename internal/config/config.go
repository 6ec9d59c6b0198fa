package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvDatabaseURL переопределяет postgres.dsn.
const EnvDatabaseURL = "FEEDSYNC_DATABASE_URL"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Auth     AuthConfig     `yaml:"auth"`
	Client   ClientConfig   `yaml:"client"`
}

type ServerConfig struct {
	Port    string `yaml:"port"`
	Storage string `yaml:"storage"`
	Locale  string `yaml:"locale"`
	// AnomalyEvery - каждый N-й лайк сохраняется, но отвечает 500. 0 - выключено.
	AnomalyEvery int `yaml:"anomaly_every"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type ClientConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	Username          string        `yaml:"username"`
	Locale            string        `yaml:"locale"`
	PlaceholderAvatar string        `yaml:"placeholder_avatar"`
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    "8080",
			Storage: "memory",
			Locale:  "en",
		},
		Auth: AuthConfig{
			Secret:   "your-secret-key",
			TokenTTL: 24 * time.Hour,
		},
		Client: ClientConfig{
			BaseURL:  "http://localhost:8080",
			Timeout:  10 * time.Second,
			Username: "guest",
			Locale:   "en",
		},
	}
}

// Load читает YAML-файл. Отсутствующий файл не ошибка: используются значения по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if dsn := os.Getenv(EnvDatabaseURL); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	cfg.fill()
	return cfg, cfg.Validate()
}

// fill возвращает значения по умолчанию полям, обнуленным в файле.
func (c *Config) fill() {
	def := Default()
	if c.Server.Port == "" {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Storage == "" {
		c.Server.Storage = def.Server.Storage
	}
	if c.Server.Locale == "" {
		c.Server.Locale = def.Server.Locale
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = def.Auth.Secret
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = def.Auth.TokenTTL
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = def.Client.BaseURL
	}
	if c.Client.Timeout <= 0 {
		c.Client.Timeout = def.Client.Timeout
	}
	if c.Client.Username == "" {
		c.Client.Username = def.Client.Username
	}
	if c.Client.Locale == "" {
		c.Client.Locale = def.Client.Locale
	}
}

func (c *Config) Validate() error {
	switch c.Server.Storage {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres storage requires postgres.dsn or " + EnvDatabaseURL)
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Server.Storage)
	}
	if c.Server.AnomalyEvery < 0 {
		return errors.New("server.anomaly_every must be >= 0")
	}
	return nil
}
