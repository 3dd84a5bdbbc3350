// Package config loads server configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "AUTOFUND_CONFIG"

type Config struct {
	Env         string     `yaml:"env" env:"AUTOFUND_ENV" env-default:"dev"`
	StoragePath string     `yaml:"storage_path" env:"AUTOFUND_STORAGE_PATH" env-default:"./data/autofund.db"`
	CORSOrigins []string   `yaml:"cors_origins" env:"AUTOFUND_CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:3000"`
	HTTPServer  HTTPServer `yaml:"http_server"`
	Planner     Planner    `yaml:"planner"`
	Scheduler   Scheduler  `yaml:"scheduler"`
}

type HTTPServer struct {
	Address      string        `yaml:"address" env:"AUTOFUND_ADDRESS" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"AUTOFUND_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"AUTOFUND_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"AUTOFUND_IDLE_TIMEOUT" env-default:"60s"`
}

// Planner holds money settings as strings so they never pass through a float.
type Planner struct {
	LowCashThreshold string `yaml:"low_cash_threshold" env:"AUTOFUND_LOW_CASH_THRESHOLD" env-default:"5"`
	DefaultIncome    string `yaml:"default_income" env:"AUTOFUND_DEFAULT_INCOME" env-default:"0"`
}

type Scheduler struct {
	Enabled       bool          `yaml:"enabled" env:"AUTOFUND_SCHEDULER_ENABLED"`
	CheckInterval time.Duration `yaml:"check_interval" env:"AUTOFUND_SCHEDULER_INTERVAL" env-default:"1h"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Env:         "dev",
		StoragePath: "./data/autofund.db",
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		HTTPServer: HTTPServer{
			Address:      ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Planner: Planner{LowCashThreshold: "5", DefaultIncome: "0"},
		Scheduler: Scheduler{
			Enabled:       true,
			CheckInterval: time.Hour,
		},
	}
}

// Load reads path when set, otherwise the environment alone. Environment
// variables override file values either way. Both start from Default, so a
// value written in the file wins even when it is the zero value.
func Load(path string) (*Config, error) {
	cfg := *Default()
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that exits on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Validate checks values cleanenv cannot type-check.
func (c *Config) Validate() error {
	if _, err := c.LowCashThreshold(); err != nil {
		return err
	}
	if _, err := c.DefaultIncome(); err != nil {
		return err
	}
	if c.Scheduler.Enabled && c.Scheduler.CheckInterval <= 0 {
		return fmt.Errorf("scheduler.check_interval must be positive")
	}
	return nil
}

// LowCashThreshold parses planner.low_cash_threshold.
func (c *Config) LowCashThreshold() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Planner.LowCashThreshold)
	if err != nil {
		return decimal.Zero, fmt.Errorf("planner.low_cash_threshold: %w", err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("planner.low_cash_threshold must not be negative")
	}
	return d, nil
}

// DefaultIncome parses planner.default_income.
func (c *Config) DefaultIncome() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Planner.DefaultIncome)
	if err != nil {
		return decimal.Zero, fmt.Errorf("planner.default_income: %w", err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("planner.default_income must not be negative")
	}
	return d, nil
}
