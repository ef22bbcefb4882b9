package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverAirtable = "airtable"
	DriverSqlite   = "sqlite"
)

type Config struct {
	Remote  Remote  `mapstructure:"remote"`
	Trigger Trigger `mapstructure:"trigger"`
	Site    Site    `mapstructure:"site"`
	Browser Browser `mapstructure:"browser"`
	Archive Archive `mapstructure:"archive"`
	Sync    Sync    `mapstructure:"sync"`
	Log     Log     `mapstructure:"log"`
}

type Remote struct {
	Driver     string        `mapstructure:"driver"`
	APIKey     string        `mapstructure:"api_key"`
	BaseID     string        `mapstructure:"base_id"`
	Table      string        `mapstructure:"table"`
	BaseURL    string        `mapstructure:"base_url"`
	SqlitePath string        `mapstructure:"sqlite_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Trigger struct {
	Secret string `mapstructure:"secret"`
	Addr   string `mapstructure:"addr"`
	Path   string `mapstructure:"path"`
}

type Site struct {
	LoginURL   string `mapstructure:"login_url"`
	ListingURL string `mapstructure:"listing_url"`
	Email      string `mapstructure:"email"`
	Password   string `mapstructure:"password"`
	PageSize   int    `mapstructure:"page_size"`
}

type Browser struct {
	Headless bool          `mapstructure:"headless"`
	Bin      string        `mapstructure:"bin"`
	Stealth  bool          `mapstructure:"stealth"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Archive struct {
	Path       string `mapstructure:"path"`
	FailedPath string `mapstructure:"failed_path"`
}

type Sync struct {
	BatchSize        int           `mapstructure:"batch_size"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	BatchPause       time.Duration `mapstructure:"batch_pause"`
	StopOnExisting   bool          `mapstructure:"stop_on_existing"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

var defaults = map[string]any{
	"remote.driver":      DriverAirtable,
	"remote.table":       "Projects",
	"remote.base_url":    "https://api.airtable.com/v0",
	"remote.sqlite_path": "projects.db",
	"remote.timeout":     "30s",

	"trigger.addr": ":8080",
	"trigger.path": "/api/cron",

	"site.login_url":   "https://www.rootdata.com/login",
	"site.listing_url": "https://www.rootdata.com/Fundraising",
	"site.page_size":   30,

	"browser.headless": true,
	"browser.bin":      "",
	"browser.stealth":  true,
	"browser.timeout":  "30s",

	"archive.path":        "rootdata_projects.json",
	"archive.failed_path": "failed_pushes.json",

	"sync.batch_size":         10,
	"sync.max_attempts":       3,
	"sync.rate_limit_backoff": "30s",
	"sync.retry_backoff":      "5s",
	"sync.batch_pause":        "1s",
	"sync.stop_on_existing":   true,

	"log.level":       "info",
	"log.development": false,
}

// env names the variables that carry secrets and deployment specific values
var env = map[string]string{
	"remote.api_key":   "AIRTABLE_API_KEY",
	"remote.base_id":   "AIRTABLE_BASE_ID",
	"remote.driver":    "REMOTE_DRIVER",
	"trigger.secret":   "CRON_SECRET",
	"trigger.addr":     "TRIGGER_ADDR",
	"site.email":       "ROOTDATA_EMAIL",
	"site.password":    "ROOTDATA_PASSWORD",
	"browser.bin":      "BROWSER_BIN",
	"browser.headless": "BROWSER_HEADLESS",
	"log.level":        "LOG_LEVEL",
}

// LoadDotEnv reads variables from the given .env files into the process
// environment. Missing files are ignored; with no arguments ".env" is tried.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load applies defaults and environment bindings to v and decodes it.
func Load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Remote.Driver {
	case DriverAirtable:
		if c.Remote.APIKey == "" {
			errs = append(errs, errors.New("remote.api_key (AIRTABLE_API_KEY) is required for the airtable driver"))
		}
		if c.Remote.BaseID == "" {
			errs = append(errs, errors.New("remote.base_id (AIRTABLE_BASE_ID) is required for the airtable driver"))
		}
		if c.Remote.Table == "" {
			errs = append(errs, errors.New("remote.table must not be empty"))
		}
	case DriverSqlite:
		if c.Remote.SqlitePath == "" {
			errs = append(errs, errors.New("remote.sqlite_path must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown remote.driver %q", c.Remote.Driver))
	}

	if c.Site.Email == "" || c.Site.Password == "" {
		errs = append(errs, errors.New("site.email and site.password (ROOTDATA_EMAIL, ROOTDATA_PASSWORD) are required"))
	}
	if c.Site.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("site.page_size must be positive, got %d", c.Site.PageSize))
	}
	if c.Sync.BatchSize <= 0 || c.Sync.BatchSize > 10 {
		errs = append(errs, fmt.Errorf("sync.batch_size must be between 1 and 10, got %d", c.Sync.BatchSize))
	}
	if c.Sync.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("sync.max_attempts must be positive, got %d", c.Sync.MaxAttempts))
	}
	if c.Archive.Path == "" || c.Archive.FailedPath == "" {
		errs = append(errs, errors.New("archive.path and archive.failed_path must not be empty"))
	}
	return errors.Join(errs...)
}
