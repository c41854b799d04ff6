package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting.
type Config struct {
	Store         string           `yaml:"store"` // postgres | memory
	HTTP          HTTPConfig       `yaml:"http"`
	Database      DatabaseConfig   `yaml:"database"`
	RabbitMQ      RabbitMQConfig   `yaml:"rabbitmq"`
	Redis         RedisConfig      `yaml:"redis"`
	Log           LogConfig        `yaml:"log"`
	Business      BusinessConfig   `yaml:"business"`
	Tax           TaxConfig        `yaml:"tax"`
	Quota         QuotaConfig      `yaml:"quota"`
	KnowledgeBase []KnowledgeEntry `yaml:"knowledge_base"`
}

type HTTPConfig struct {
	Addr          string        `yaml:"addr"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	// TxRetries bounds how often a serialization conflict is retried.
	TxRetries int `yaml:"tx_retries"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	UseTLS   bool   `yaml:"tls"`
}

type RedisConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	MenuTTL    time.Duration `yaml:"menu_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type BusinessConfig struct {
	Timezone       string `yaml:"timezone"`
	CurrencySymbol string `yaml:"currency_symbol"`
	// BillingReleaseStatus is where a table goes after billing: available or cleaning.
	BillingReleaseStatus string `yaml:"billing_release_status"`
}

func (b BusinessConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(b.Timezone)
}

type TaxComponent struct {
	Name string  `yaml:"name"`
	Rate float64 `yaml:"rate"` // percent
}

type TaxRule struct {
	Enabled    bool           `yaml:"enabled"`
	Rate       float64        `yaml:"rate"` // flat percent, used when Components is empty
	Components []TaxComponent `yaml:"components"`
}

type TaxConfig struct {
	TaxRule `yaml:",inline"`
	Tenants map[string]TaxRule `yaml:"tenants"`
}

type QuotaConfig struct {
	// DailyLimits overrides the built-in per-role daily message limits.
	DailyLimits map[string]int `yaml:"daily_limits"`
}

type KnowledgeEntry struct {
	Tenant   string   `yaml:"tenant"`
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer"`
	Tags     []string `yaml:"tags"`
}

func Default() *Config {
	cfg := &Config{Store: "postgres"}
	cfg.HTTP.Addr = ":3000"
	cfg.HTTP.ReadTimeout = 5 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.MaxConcurrent = 50
	cfg.Database.Port = 5432
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.TxRetries = 5
	cfg.RabbitMQ.Port = 5672
	cfg.RabbitMQ.VHost = "/"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.SessionTTL = 10 * time.Minute
	cfg.Redis.MenuTTL = time.Minute
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Business.Timezone = "UTC"
	cfg.Business.BillingReleaseStatus = "available"
	return cfg
}

// Load reads the YAML file at path (if any), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("open config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Store = getEnv("STORE", cfg.Store)
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = parseInt(getEnv("DB_PORT", ""), cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.RabbitMQ.Host = getEnv("RABBITMQ_HOST", cfg.RabbitMQ.Host)
	cfg.RabbitMQ.User = getEnv("RABBITMQ_USER", cfg.RabbitMQ.User)
	cfg.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", cfg.RabbitMQ.Password)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Business.Timezone = getEnv("BUSINESS_TIMEZONE", cfg.Business.Timezone)
}

func (c *Config) Validate() error {
	switch c.Store {
	case "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
			return errors.New("invalid config: database host, user and database are required")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid config: unknown store %q", c.Store)
	}
	if c.RabbitMQ.Enabled && (c.RabbitMQ.Host == "" || c.RabbitMQ.User == "") {
		return errors.New("invalid config: rabbitmq host and user are required when enabled")
	}
	if _, err := c.Business.Location(); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Business.Timezone, err)
	}
	switch strings.ToLower(c.Business.BillingReleaseStatus) {
	case "available", "cleaning":
	default:
		return fmt.Errorf("invalid config: billing_release_status %q", c.Business.BillingReleaseStatus)
	}
	if err := c.Tax.TaxRule.validate("default"); err != nil {
		return err
	}
	for tenant, rule := range c.Tax.Tenants {
		if err := rule.validate(tenant); err != nil {
			return err
		}
	}
	for role, n := range c.Quota.DailyLimits {
		if n < 0 {
			return fmt.Errorf("invalid config: negative daily limit for role %s", role)
		}
	}
	return nil
}

func (r TaxRule) validate(scope string) error {
	if r.Rate < 0 {
		return fmt.Errorf("invalid config: negative tax rate for %s", scope)
	}
	for _, c := range r.Components {
		if c.Rate < 0 {
			return fmt.Errorf("invalid config: negative tax component %s for %s", c.Name, scope)
		}
	}
	return nil
}

// FindConfig returns the first config file that exists.
func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "config.yml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
