package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Logger      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logger"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// CORSOrigins lists the dashboard origins allowed to call the API. "*" allows any.
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Alpaca struct {
		APIKey        string        `yaml:"api_key"`
		APISecret     string        `yaml:"api_secret"`
		Paper         bool          `yaml:"paper"`
		DataURL       string        `yaml:"data_url"`
		Feed          string        `yaml:"feed"`
		Adjustment    string        `yaml:"adjustment"`
		PageLimit     int           `yaml:"page_limit"`
		RatePerMinute int           `yaml:"rate_per_minute"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"alpaca"`
	Pipeline struct {
		Tickers           []string `yaml:"tickers"`
		TickersFile       string   `yaml:"tickers_file"`
		StartDate         string   `yaml:"start_date"`
		EndDate           string   `yaml:"end_date"`
		WindowSize        int      `yaml:"window_size"`
		PredDays          int      `yaml:"pred_days"`
		Timeframe         string   `yaml:"timeframe"`
		DuplicatePolicy   string   `yaml:"duplicate_policy"`
		FallbackHeads     int      `yaml:"fallback_heads"`
		TradableOnly      bool     `yaml:"tradable_only"`
		RegressionWindows []int    `yaml:"regression_windows"`
		Exchange          string   `yaml:"exchange"`
	} `yaml:"pipeline"`
	Model struct {
		Dir          string  `yaml:"dir"`
		NumLayers    int     `yaml:"num_layers"`
		LearningRate float64 `yaml:"learning_rate"`
		BatchSize    int     `yaml:"batch_size"`
		Epochs       int     `yaml:"epochs"`
		Seed         int64   `yaml:"seed"`
		TopK         int     `yaml:"top_k"`
	} `yaml:"model"`
	Export struct {
		Dir      string `yaml:"dir"`
		Format   string `yaml:"format"`
		DumpBars bool   `yaml:"dump_bars"`
	} `yaml:"export"`
	Source struct {
		Type    string `yaml:"type"`
		Archive bool   `yaml:"archive"`
	} `yaml:"source"`
	Cache struct {
		Enabled    bool          `yaml:"enabled"`
		TTL        time.Duration `yaml:"ttl"`
		MemorySize int           `yaml:"memory_size"`
		Redis      struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		Compression  string   `yaml:"compression"`
		RequiredAcks int      `yaml:"required_acks"`
	} `yaml:"kafka"`
}

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables
// before validating, so secrets can live outside the file.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ALPACA_API_KEY"); v != "" {
		c.Alpaca.APIKey = v
	}
	if v := getenv("ALPACA_API_SECRET"); v != "" {
		c.Alpaca.APISecret = v
	}
	if v := getenv("TICKERS"); v != "" {
		c.Pipeline.Tickers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Cache.Redis.Host = host
		if p, err := strconv.Atoi(port); ok && err == nil {
			c.Cache.Redis.Port = p
		}
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Logger.Output == "" {
		c.Logger.Output = "stdout"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Alpaca.RatePerMinute == 0 {
		c.Alpaca.RatePerMinute = 200
	}
	if c.Alpaca.Timeout == 0 {
		c.Alpaca.Timeout = 30 * time.Second
	}
	if c.Pipeline.StartDate == "" {
		c.Pipeline.StartDate = "2022-10-01"
	}
	if c.Pipeline.EndDate == "" {
		c.Pipeline.EndDate = "2024-10-01"
	}
	if c.Pipeline.WindowSize == 0 {
		c.Pipeline.WindowSize = 5
	}
	if c.Pipeline.Timeframe == "" {
		c.Pipeline.Timeframe = "1Day"
	}
	if c.Pipeline.DuplicatePolicy == "" {
		c.Pipeline.DuplicatePolicy = "keep_last"
	}
	if c.Pipeline.FallbackHeads == 0 {
		c.Pipeline.FallbackHeads = 1
	}
	if c.Pipeline.Exchange == "" {
		c.Pipeline.Exchange = "xnys"
	}
	if c.Model.Dir == "" {
		c.Model.Dir = "models"
	}
	if c.Model.NumLayers == 0 {
		c.Model.NumLayers = 4
	}
	if c.Model.Seed == 0 {
		c.Model.Seed = 42
	}
	if c.Model.TopK == 0 {
		c.Model.TopK = 5
	}
	if c.Export.Format == "" {
		c.Export.Format = "csv"
	}
	if c.Source.Type == "" {
		c.Source.Type = "alpaca"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = time.Hour
	}
	if c.Cache.MemorySize == 0 {
		c.Cache.MemorySize = 256
	}
	if c.Cache.Redis.Port == 0 {
		c.Cache.Redis.Port = 6379
	}
	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "stockrank"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "stockrank.rankings"
	}
	if c.Kafka.RequiredAcks == 0 {
		c.Kafka.RequiredAcks = -1
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case "alpaca":
		if c.Alpaca.APIKey == "" {
			return fmt.Errorf("alpaca.api_key is required")
		}
		if c.Alpaca.APISecret == "" {
			return fmt.Errorf("alpaca.api_secret is required")
		}
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("source.type 'clickhouse' needs clickhouse.enabled")
		}
	default:
		return fmt.Errorf("source.type must be 'alpaca' or 'clickhouse', got '%s'", c.Source.Type)
	}
	if c.Source.Archive && !c.ClickHouse.Enabled {
		return fmt.Errorf("source.archive needs clickhouse.enabled")
	}
	if c.Pipeline.WindowSize < 1 {
		return fmt.Errorf("pipeline.window_size must be positive")
	}
	if c.Pipeline.PredDays < 0 {
		return fmt.Errorf("pipeline.pred_days cannot be negative")
	}
	for _, w := range c.Pipeline.RegressionWindows {
		if w < 1 {
			return fmt.Errorf("pipeline.regression_windows must be positive, got %d", w)
		}
	}
	if c.Model.TopK < 1 {
		return fmt.Errorf("model.top_k must be positive")
	}
	switch strings.ToLower(c.Export.Format) {
	case "csv", "json", "parquet":
	default:
		return fmt.Errorf("export.format must be csv, json or parquet, got '%s'", c.Export.Format)
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Host == "" {
		return fmt.Errorf("cache.redis.host is required")
	}
	return nil
}
