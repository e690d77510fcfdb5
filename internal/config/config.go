package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"omnidesk/internal/timekey"
)

// EnvConfigPath names the environment variable holding the config path.
const EnvConfigPath = "CALENDAR_CONFIG_PATH"

type Config struct {
	HTTP struct {
		Address string `yaml:"address"`
	} `yaml:"http"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	API struct {
		Keys            []string `yaml:"keys"`
		BaseURL         string   `yaml:"base_url"`
		ClientKey       string   `yaml:"client_key"`
		CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	} `yaml:"api"`

	Calendar struct {
		Timezone           string `yaml:"timezone"`
		SlotMinutes        int    `yaml:"slot_minutes"`
		BusinessConfigPath string `yaml:"business_config_path"`
		WatchIntervalSecs  int    `yaml:"watch_interval_seconds"`
	} `yaml:"calendar"`

	Booking struct {
		MinAdvanceMinutes int `yaml:"min_advance_minutes"`
		MaxAdvanceDays    int `yaml:"max_advance_days"`
	} `yaml:"booking"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		Schedule      string `yaml:"schedule"` // cron expression
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Telegram struct {
		BotToken      string  `yaml:"bot_token"`
		Debug         bool    `yaml:"debug"`
		NotifyChats   []int64 `yaml:"notify_chats"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		RateBurst     int     `yaml:"rate_burst"`
	} `yaml:"telegram"`

	// Owners are user IDs that always have full access.
	Owners []string `yaml:"owners"`
}

// Load reads the config file at path. An empty path falls back to
// $CALENDAR_CONFIG_PATH and then to configs/config.yaml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	// Unset ${VAR} placeholders leave empty entries behind.
	c.API.Keys = nonEmpty(c.API.Keys)
	c.Owners = nonEmpty(c.Owners)

	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/calendar.db"
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "UTC"
	}
	if c.Calendar.SlotMinutes == 0 {
		c.Calendar.SlotMinutes = 30
	}
	if c.Calendar.BusinessConfigPath == "" {
		c.Calendar.BusinessConfigPath = "configs/business.yaml"
	}
	if c.API.CacheTTLSeconds == 0 {
		c.API.CacheTTLSeconds = 60
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Telegram.RatePerSecond == 0 {
		c.Telegram.RatePerSecond = 1
	}
	if c.Telegram.RateBurst == 0 {
		c.Telegram.RateBurst = 5
	}
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Validate checks values the calendar cannot work without.
func (c *Config) Validate() error {
	if _, ok := timekey.LoadLocation(c.Calendar.Timezone); !ok {
		return fmt.Errorf("calendar.timezone: unknown timezone %q", c.Calendar.Timezone)
	}
	if c.Calendar.SlotMinutes <= 0 || c.Calendar.SlotMinutes > timekey.MinutesPerDay {
		return fmt.Errorf("calendar.slot_minutes must be in 1..%d, got %d", timekey.MinutesPerDay, c.Calendar.SlotMinutes)
	}
	if c.Booking.MinAdvanceMinutes < 0 {
		return fmt.Errorf("booking.min_advance_minutes cannot be negative")
	}
	if c.Booking.MaxAdvanceDays < 0 {
		return fmt.Errorf("booking.max_advance_days cannot be negative")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days cannot be negative")
	}
	return nil
}

func (c *Config) BookingMinAdvance() time.Duration {
	return time.Duration(c.Booking.MinAdvanceMinutes) * time.Minute
}

// BookingMaxAdvance returns zero (unlimited) when max_advance_days is unset.
func (c *Config) BookingMaxAdvance() time.Duration {
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) WatchInterval() time.Duration {
	if c.Calendar.WatchIntervalSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Calendar.WatchIntervalSecs) * time.Second
}
