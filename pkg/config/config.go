package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// StockConfig maps a symbol to its destination table prefix. The sink writes
// to <table>_raw and <table>_processed.
type StockConfig struct {
	Table string `yaml:"table" validate:"required"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Kafka struct {
		Brokers      []string `yaml:"brokers" validate:"min=1"`
		Topic        string   `yaml:"topic" default:"stock-ticks" validate:"required"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string `yaml:"group_id" default:"stockpulse-loader"`
			Workers    int    `yaml:"workers" default:"1" validate:"gte=1"`
			BufferSize int    `yaml:"buffer_size" default:"64"`
			DLQTopic   string `yaml:"dlq_topic"`
			MinBytes   int    `yaml:"min_bytes" default:"10000"`
			MaxBytes   int    `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" validate:"required"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"stockpulse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Loader struct {
		BatchSize          int           `yaml:"batch_size" default:"100" validate:"gte=1"`
		BatchTimeout       time.Duration `yaml:"batch_timeout" default:"120s"`
		MinBatchInterval   time.Duration `yaml:"min_batch_interval" default:"10s"`
		MaxRetries         int           `yaml:"max_retries" default:"5" validate:"gte=1"`
		InitialRetryDelay  time.Duration `yaml:"initial_retry_delay" default:"1s"`
		MaxRetryDelay      time.Duration `yaml:"max_retry_delay" default:"30s"`
		RetryMultiplier    float64       `yaml:"retry_multiplier" default:"2.0" validate:"gte=1"`
		MaxConcurrentLoads int           `yaml:"max_concurrent_loads" default:"4" validate:"gte=1"`
	} `yaml:"loader"`
	Ingest struct {
		Source       string        `yaml:"source" default:"alphavantage" validate:"oneof=alphavantage stream"`
		PollInterval time.Duration `yaml:"poll_interval" default:"5m"`
		AlphaVantage struct {
			APIKey        string  `yaml:"api_key"`
			BaseURL       string  `yaml:"base_url" default:"https://www.alphavantage.co/query"`
			Interval      string  `yaml:"interval" default:"5min"`
			RatePerMinute float64 `yaml:"rate_per_minute" default:"5"`
		} `yaml:"alphavantage"`
		Stream struct {
			URL            string        `yaml:"url"`
			APIKey         string        `yaml:"api_key"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
			PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		} `yaml:"stream"`
		Pipeline struct {
			MaxRPS     int `yaml:"max_rps" default:"20"`
			BufferSize int `yaml:"buffer_size" default:"1000"`
		} `yaml:"pipeline"`
	} `yaml:"ingest"`
	Cache struct {
		FreshnessTTL time.Duration `yaml:"freshness_ttl" default:"4m"`
		Redis        struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Stocks map[string]StockConfig `yaml:"stocks" validate:"min=1,dive"`
}

// Load reads a YAML configuration file, applies defaults, and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes configuration bytes, applies defaults, and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
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

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.Ingest.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}

	return c, nil
}

// Validate checks structural rules plus a few relations tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Loader.MaxRetryDelay < c.Loader.InitialRetryDelay {
		return fmt.Errorf("loader.max_retry_delay (%s) cannot be below loader.initial_retry_delay (%s)",
			c.Loader.MaxRetryDelay, c.Loader.InitialRetryDelay)
	}
	if c.Loader.MinBatchInterval >= c.Loader.BatchTimeout {
		return fmt.Errorf("loader.min_batch_interval (%s) must be below loader.batch_timeout (%s)",
			c.Loader.MinBatchInterval, c.Loader.BatchTimeout)
	}
	seen := make(map[string]string, len(c.Stocks))
	for symbol, sc := range c.Stocks {
		if other, dup := seen[sc.Table]; dup {
			return fmt.Errorf("stocks: table %q configured for both %s and %s", sc.Table, other, symbol)
		}
		seen[sc.Table] = symbol
	}
	return nil
}

// Symbols returns the configured symbol set.
func (c *Config) Symbols() []string {
	out := make([]string, 0, len(c.Stocks))
	for s := range c.Stocks {
		out = append(out, s)
	}
	return out
}
