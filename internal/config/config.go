package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Router  RouterConfig  `yaml:"router"`
	ODP     ODPConfig     `yaml:"odp"`
	Tabular TabularConfig `yaml:"tabular"`
	Files   FilesConfig   `yaml:"files"`
	Events  EventsConfig  `yaml:"events"`
	Log     LogConfig     `yaml:"log"`
}

type RouterConfig struct {
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	CacheSize   int           `yaml:"cache_size"`
	Concurrency int           `yaml:"concurrency"`
	Retry       RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
	MaxWait        time.Duration `yaml:"max_wait"`
}

type ODPConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	RateBurst int           `yaml:"rate_burst"`
}

// TabularConfig selects the schema and query backend. Type is odp, mysql,
// postgres or sqlite.
type TabularConfig struct {
	Type        string        `yaml:"type"`
	DSN         string        `yaml:"dsn"`
	TablePrefix string        `yaml:"table_prefix"`
	Timeout     time.Duration `yaml:"timeout"`
}

// FilesConfig selects the file listing and download backend. Type is odp
// or minio.
type FilesConfig struct {
	Type      string `yaml:"type"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type EventsConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	_, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies environment overrides and
// defaults, then validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.ODP.APIKey, "ODP_API_KEY")
	set(&c.ODP.BaseURL, "ODP_BASE_URL")
	set(&c.Tabular.DSN, "DSROUTE_TABULAR_DSN")
	set(&c.Files.AccessKey, "MINIO_ACCESS_KEY")
	set(&c.Files.SecretKey, "MINIO_SECRET_KEY")

	var brokers string
	set(&brokers, "DSROUTE_KAFKA_BROKERS")
	if brokers != "" {
		c.Events.Brokers = nil
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Events.Brokers = append(c.Events.Brokers, b)
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Tabular.Type == "" {
		c.Tabular.Type = "odp"
	}
	if c.Files.Type == "" {
		c.Files.Type = "odp"
	}
	if c.Router.Concurrency == 0 {
		c.Router.Concurrency = 8
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Tabular.Type = strings.ToLower(c.Tabular.Type)
	c.Files.Type = strings.ToLower(c.Files.Type)
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// UsesODP reports whether any backend is served by the ODP REST API.
func (c *Config) UsesODP() bool {
	return c.Tabular.Type == "odp" || c.Files.Type == "odp"
}

func (c *Config) validate() error {
	if c.Router.CacheTTL < 0 {
		return errors.New("router.cache_ttl must not be negative")
	}
	if c.Router.CacheSize < 0 {
		return errors.New("router.cache_size must not be negative")
	}
	if c.Router.Concurrency < 0 {
		return errors.New("router.concurrency must not be negative")
	}
	r := c.Router.Retry
	if r.MaxAttempts < 0 || r.InitialBackoff < 0 || r.MaxBackoff < 0 || r.MaxWait < 0 {
		return errors.New("router.retry values must not be negative")
	}
	if r.Multiplier != 0 && r.Multiplier < 1 {
		return errors.New("router.retry.multiplier must be at least 1")
	}

	switch c.Tabular.Type {
	case "odp":
	case "mysql", "postgres", "sqlite":
		if c.Tabular.DSN == "" {
			return fmt.Errorf("tabular.dsn is required for %s", c.Tabular.Type)
		}
	default:
		return fmt.Errorf("tabular.type must be odp, mysql, postgres or sqlite, got %q", c.Tabular.Type)
	}

	switch c.Files.Type {
	case "odp":
	case "minio":
		if c.Files.Endpoint == "" {
			return errors.New("files.endpoint is required for minio")
		}
		if c.Files.Bucket == "" {
			return errors.New("files.bucket is required for minio")
		}
	default:
		return fmt.Errorf("files.type must be odp or minio, got %q", c.Files.Type)
	}

	if c.UsesODP() && c.ODP.BaseURL == "" {
		return errors.New("odp.base_url is required")
	}
	if c.ODP.RateLimit < 0 || c.ODP.RateBurst < 0 || c.ODP.Timeout < 0 {
		return errors.New("odp values must not be negative")
	}

	if len(c.Events.Brokers) > 0 && c.Events.Topic == "" {
		return errors.New("events.topic is required when brokers are set")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}
