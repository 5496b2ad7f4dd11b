package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Storage struct {
		Backend string `yaml:"backend"` // clickhouse or memory
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size"`
		MinIdleConns int           `yaml:"min_idle_conns"`
		PoolTimeout  time.Duration `yaml:"pool_timeout"`
		Prefix       string        `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RankedTopic  string   `yaml:"ranked_topic"`
		RawTopic     string   `yaml:"raw_topic"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Providers struct {
		Finnhub ProviderConfig `yaml:"finnhub"`
		Polygon ProviderConfig `yaml:"polygon"`
	} `yaml:"providers"`
	Pipeline struct {
		Symbols          []string      `yaml:"symbols"`
		Sources          []string      `yaml:"sources"`
		MaxStackSize     int           `yaml:"max_stack_size"`
		Overlap          time.Duration `yaml:"overlap"`
		DefaultLookback  time.Duration `yaml:"default_lookback"`
		BatchSize        int           `yaml:"batch_size"`
		FetchInterval    time.Duration `yaml:"fetch_interval"`
		ClaimTimeout     time.Duration `yaml:"claim_timeout"`
		SweepInterval    time.Duration `yaml:"sweep_interval"`
		FetchConcurrency int           `yaml:"fetch_concurrency"`
	} `yaml:"pipeline"`
	Newswire struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"newswire"`
	Categorizer struct {
		Enabled bool          `yaml:"enabled"`
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"categorizer"`
}

// ProviderConfig configures one news provider adapter.
type ProviderConfig struct {
	Enabled   bool          `yaml:"enabled"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second
	Burst     float64       `yaml:"burst"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Providers.Finnhub.APIKey = v
	}
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		c.Providers.Polygon.APIKey = v
	}
	if v := os.Getenv("NEWSWIRE_API_KEY"); v != "" {
		c.Newswire.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Pipeline.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.MaxStackSize == 0 {
		c.Pipeline.MaxStackSize = 5
	}
	if c.Pipeline.Overlap == 0 {
		c.Pipeline.Overlap = time.Minute
	}
	if c.Pipeline.DefaultLookback == 0 {
		c.Pipeline.DefaultLookback = 24 * time.Hour
	}
	if c.Pipeline.BatchSize == 0 {
		c.Pipeline.BatchSize = 100
	}
	if c.Pipeline.FetchInterval == 0 {
		c.Pipeline.FetchInterval = 15 * time.Minute
	}
	if c.Pipeline.ClaimTimeout == 0 {
		c.Pipeline.ClaimTimeout = 10 * time.Minute
	}
	if c.Pipeline.SweepInterval == 0 {
		c.Pipeline.SweepInterval = 5 * time.Minute
	}
	if c.Pipeline.FetchConcurrency == 0 {
		c.Pipeline.FetchConcurrency = 4
	}
	if len(c.Pipeline.Sources) == 0 {
		c.Pipeline.Sources = []string{"finnhub", "polygon"}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Storage.Backend == "" {
		return fmt.Errorf("storage.backend is required")
	}
	if c.Storage.Backend != "clickhouse" && c.Storage.Backend != "memory" {
		return fmt.Errorf("storage.backend must be 'clickhouse' or 'memory', got '%s'", c.Storage.Backend)
	}
	if len(c.Pipeline.Symbols) == 0 {
		return fmt.Errorf("pipeline.symbols cannot be empty")
	}
	if c.Pipeline.MaxStackSize < 1 {
		return fmt.Errorf("pipeline.max_stack_size must be >= 1")
	}
	if c.Pipeline.Overlap < 0 {
		return fmt.Errorf("pipeline.overlap cannot be negative")
	}
	for _, src := range c.Pipeline.Sources {
		switch src {
		case "finnhub":
			if c.Providers.Finnhub.Enabled && c.Providers.Finnhub.APIKey == "" {
				return fmt.Errorf("providers.finnhub.api_key is required")
			}
		case "polygon":
			if c.Providers.Polygon.Enabled && c.Providers.Polygon.APIKey == "" {
				return fmt.Errorf("providers.polygon.api_key is required")
			}
		default:
			return fmt.Errorf("unknown source '%s'", src)
		}
	}
	return nil
}
