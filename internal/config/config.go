package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Storage struct {
		Driver string `yaml:"driver"`
	} `yaml:"storage"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Riddles struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"riddles"`
	Contest struct {
		AnnounceAt         string  `yaml:"announce_at"`
		OpenAt             string  `yaml:"open_at"`
		RevealAt           string  `yaml:"reveal_at"`
		LowSupplyThreshold int     `yaml:"low_supply_threshold"`
		LedgerRetries      int     `yaml:"ledger_retries"`
		RetryBackoff       string  `yaml:"retry_backoff"`
		GuessRate          float64 `yaml:"guess_rate"`
		GuessBurst         int     `yaml:"guess_burst"`
	} `yaml:"contest"`
	Telegram struct {
		Token  string   `yaml:"token"`
		ChatID int64    `yaml:"chat_id"`
		Admins []string `yaml:"admins"`
	} `yaml:"telegram"`
	HTTP struct {
		// AdminToken is the bearer token for moderator endpoints. Empty disables them.
		AdminToken string `yaml:"admin_token"`
	} `yaml:"http"`
}

// Default returns the configuration used when no file value is set.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Storage.Driver = DriverMemory
	cfg.SQLite.Path = "riddles.db"
	cfg.Riddles.CacheTTL = "30s"
	cfg.Contest.AnnounceAt = "18:57"
	cfg.Contest.OpenAt = "19:00"
	cfg.Contest.RevealAt = "23:00"
	cfg.Contest.LowSupplyThreshold = 5
	cfg.Contest.LedgerRetries = 2
	cfg.Contest.RetryBackoff = "50ms"
	cfg.Contest.GuessRate = 1
	cfg.Contest.GuessBurst = 3
	return cfg
}

// LoadDotEnv loads a .env file into the process environment when one exists.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads YAML config from path on top of Default, then applies environment overrides.
// A missing file is not an error: defaults and environment still apply.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, err
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("HTTP_ADMIN_TOKEN"); v != "" {
		c.HTTP.AdminToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path not configured")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres url not configured")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if err := c.validateTimes(); err != nil {
		return err
	}
	if c.Contest.GuessRate < 0 || c.Contest.GuessBurst < 0 {
		return fmt.Errorf("guess rate and burst must not be negative")
	}
	return nil
}

// validateTimes requires the three contest times to parse as HH:MM and differ from each other.
func (c Config) validateTimes() error {
	seen := make(map[string]string, 3)
	for _, f := range []struct{ name, value string }{
		{"announce_at", c.Contest.AnnounceAt},
		{"open_at", c.Contest.OpenAt},
		{"reveal_at", c.Contest.RevealAt},
	} {
		t, err := time.Parse("15:04", f.value)
		if err != nil {
			return fmt.Errorf("contest.%s: %w", f.name, err)
		}
		key := t.Format("15:04")
		if other, dup := seen[key]; dup {
			return fmt.Errorf("contest.%s and contest.%s are both %s", other, f.name, key)
		}
		seen[key] = f.name
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
