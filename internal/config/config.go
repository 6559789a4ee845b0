// Package config содержит логику чтения конфигурации консоли администратора магазина.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultTimezone       = "America/Argentina/Buenos_Aires"
	defaultGatingInterval = time.Hour
)

// Config содержит параметры конфигурации консоли.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	APIBaseURL     string        `env:"API_BASE_URL"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	CookieSecret   string        `env:"COOKIE_SECRET"`
	Timezone       string        `env:"TIMEZONE"`
	GatingInterval time.Duration `env:"GATING_INTERVAL"`

	MPClientID    string `env:"MP_CLIENT_ID"`
	MPRedirectURI string `env:"MP_REDIRECT_URI"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.APIBaseURL, "u", "", "shop API base URL")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for the session journal")
	flag.StringVar(&cfg.CookieSecret, "s", "", "console cookie signing secret")
	flag.StringVar(&cfg.Timezone, "z", defaultTimezone, "shop timezone")
	flag.DurationVar(&cfg.GatingInterval, "i", defaultGatingInterval, "payment notice re-check interval")
	flag.StringVar(&cfg.MPClientID, "c", "", "Mercado Pago OAuth client ID")
	flag.StringVar(&cfg.MPRedirectURI, "r", "", "Mercado Pago OAuth redirect URI")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.APIBaseURL != "" {
		cfg.APIBaseURL = envCfg.APIBaseURL
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.CookieSecret != "" {
		cfg.CookieSecret = envCfg.CookieSecret
	}
	if envCfg.Timezone != "" {
		cfg.Timezone = envCfg.Timezone
	}
	if envCfg.GatingInterval != 0 {
		cfg.GatingInterval = envCfg.GatingInterval
	}
	if envCfg.MPClientID != "" {
		cfg.MPClientID = envCfg.MPClientID
	}
	if envCfg.MPRedirectURI != "" {
		cfg.MPRedirectURI = envCfg.MPRedirectURI
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.GatingInterval <= 0 {
		cfg.GatingInterval = defaultGatingInterval
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("shop API base URL is required")
	}

	return cfg, nil
}

// Location возвращает часовой пояс магазина. Если база часовых поясов недоступна,
// используется фиксированное смещение UTC-3.
func (c *Config) Location() *time.Location {
	name := c.Timezone
	if name == "" {
		name = defaultTimezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("ART", -3*60*60)
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
