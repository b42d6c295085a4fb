package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"NewsDesk/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// TierConfig pins the models and sampling for both stages of one tier.
type TierConfig struct {
	StrategistModel       string  `yaml:"strategist_model"`
	ExecutorModel         string  `yaml:"executor_model"`
	StrategistTemperature float32 `yaml:"strategist_temperature"`
	ExecutorTemperature   float32 `yaml:"executor_temperature"`
	StrategistMaxTokens   int     `yaml:"strategist_max_tokens"`
	ExecutorMaxTokens     int     `yaml:"executor_max_tokens"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
		// Error digests are published to Kafka when enabled.
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"newsdesk.logs"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"5m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"60s"`
		BodyLimit       string        `yaml:"body_limit" default:"2M"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	LLM struct {
		Provider          string                `yaml:"provider" default:"openai"`
		BaseURL           string                `yaml:"base_url"`
		APIKey            string                `yaml:"api_key"`
		Timeout           time.Duration         `yaml:"timeout" default:"120s"`
		RequestsPerMinute int                   `yaml:"requests_per_minute" default:"20"`
		MaxRetries        int                   `yaml:"max_retries" default:"3"`
		InitialBackoff    time.Duration         `yaml:"initial_backoff" default:"2s"`
		Tiers             map[string]TierConfig `yaml:"tiers"`
	} `yaml:"llm"`
	FMP struct {
		BaseURL        string        `yaml:"base_url" default:"https://financialmodelingprep.com"`
		APIKey         string        `yaml:"api_key"`
		Timeout        time.Duration `yaml:"timeout" default:"15s"`
		MaxRetries     int           `yaml:"max_retries" default:"3"`
		InitialBackoff time.Duration `yaml:"initial_backoff" default:"1s"`
		// Upper bound for one typed request, composites included.
		CallTimeout time.Duration `yaml:"call_timeout" default:"45s"`
		// Token bucket in front of the provider: burst and refill per second.
		Burst        float64 `yaml:"burst" default:"10"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"5"`
	} `yaml:"fmp"`
	MarketContext struct {
		FearGreedURL string        `yaml:"fear_greed_url" default:"https://api.alternative.me/fng/"`
		BinanceURL   string        `yaml:"binance_url" default:"https://api.binance.com"`
		Timeout      time.Duration `yaml:"timeout" default:"10s"`
		CacheTTL     time.Duration `yaml:"cache_ttl" default:"60s"`
		Cache        string        `yaml:"cache" default:"memory"`
	} `yaml:"market_context"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"newsdesk"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`
	Pipeline struct {
		ModelTier            string `yaml:"model_tier" default:"standard"`
		IncludeMarketContext bool   `yaml:"include_market_context" default:"true"`
		UseDispatcher        bool   `yaml:"use_dispatcher" default:"true"`
		Concurrency          int    `yaml:"concurrency" default:"1"`
		Quality              struct {
			StrategistWeight       float64 `yaml:"strategist_weight" default:"0.4"`
			AdherenceWeight        float64 `yaml:"adherence_weight" default:"0.3"`
			ConfidenceWeight       float64 `yaml:"confidence_weight" default:"0.3"`
			WarningPenalty         float64 `yaml:"warning_penalty" default:"0.1"`
			ProbabilityTolerance   float64 `yaml:"probability_tolerance" default:"0.1"`
			LowIncrementalInfo     float64 `yaml:"low_incremental_info" default:"3"`
			HighConfidence         int     `yaml:"high_confidence" default:"7"`
			TradeableMinConviction int     `yaml:"tradeable_min_conviction" default:"6"`
		} `yaml:"quality"`
	} `yaml:"pipeline"`
	Sink struct {
		Type string `yaml:"type" default:"none"`
	} `yaml:"sink"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		ResultsTopic string   `yaml:"results_topic" default:"newsdesk.results"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			NewsTopic  string        `yaml:"news_topic" default:"newsdesk.news"`
			GroupID    string        `yaml:"group_id" default:"newsdesk"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"newsdesk.news.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"newsdesk"`
		Table            string        `yaml:"table" default:"analysis_results"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		Compress         bool          `yaml:"compress" default:"true"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
}

// Default returns a configuration holding only struct defaults and the
// built-in model tiers.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	c.applyTierDefaults()
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.applyTierDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads an optional .env file, then the YAML config (or only
// defaults when path is empty), then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c := &Config{}
	if path == "" {
		if err := defaults.Set(c); err != nil {
			return nil, fmt.Errorf("config defaults: %w", err)
		}
	} else {
		var err error
		if c, err = parse(path); err != nil {
			return nil, err
		}
	}

	c.applyEnv()
	c.applyTierDefaults()

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
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FMP_API_KEY"); v != "" {
		c.FMP.APIKey = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	switch {
	case os.Getenv("LLM_API_KEY") != "":
		c.LLM.APIKey = os.Getenv("LLM_API_KEY")
	case c.LLM.Provider == ProviderGemini && os.Getenv("GEMINI_API_KEY") != "":
		c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	case c.LLM.Provider == ProviderOpenAI && os.Getenv("OPENAI_API_KEY") != "":
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("MODEL_TIER"); v != "" {
		c.Pipeline.ModelTier = v
	}
	if v := os.Getenv("SINK"); v != "" {
		c.Sink.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, _ := strings.Cut(v, ":")
		c.Redis.Host = host
		c.Redis.Port = util.ParseIntDefault(port, c.Redis.Port)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	SinkNone       = "none"
	SinkKafka      = "kafka"
	SinkClickHouse = "clickhouse"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.LLM.Provider != ProviderOpenAI && c.LLM.Provider != ProviderGemini {
		return fmt.Errorf("llm.provider must be '%s' or '%s', got '%s'", ProviderOpenAI, ProviderGemini, c.LLM.Provider)
	}
	if _, ok := c.LLM.Tiers[c.Pipeline.ModelTier]; !ok {
		return fmt.Errorf("pipeline.model_tier '%s' is not defined in llm.tiers", c.Pipeline.ModelTier)
	}
	switch c.Sink.Type {
	case SinkNone, SinkClickHouse:
	case SinkKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when sink.type is kafka")
		}
	default:
		return fmt.Errorf("sink.type must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Sink.Type)
	}
	if (c.Kafka.Consumer.Enabled || c.Log.Collector.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when the news consumer or log collector is enabled")
	}
	switch c.MarketContext.Cache {
	case "none", "memory", "redis", "layered":
	default:
		return fmt.Errorf("market_context.cache must be none, memory, redis or layered, got '%s'", c.MarketContext.Cache)
	}
	q := c.Pipeline.Quality
	if q.StrategistWeight < 0 || q.AdherenceWeight < 0 || q.ConfidenceWeight < 0 {
		return fmt.Errorf("pipeline.quality weights must be non-negative")
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1")
	}
	return nil
}

// RequireKeys reports missing upstream credentials. Commands that only
// normalize symbols can skip it.
func (c *Config) RequireKeys(llm, fmp bool) error {
	if llm && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (LLM_API_KEY)")
	}
	if fmp && c.FMP.APIKey == "" {
		return fmt.Errorf("fmp.api_key is required (FMP_API_KEY)")
	}
	return nil
}

// applyTierDefaults fills the three named tiers when the YAML leaves them out.
// Explicit entries in the file win.
func (c *Config) applyTierDefaults() {
	if c.LLM.Tiers == nil {
		c.LLM.Tiers = make(map[string]TierConfig)
	}
	for name, tier := range DefaultTiers(c.LLM.Provider) {
		if _, ok := c.LLM.Tiers[name]; !ok {
			c.LLM.Tiers[name] = tier
		}
	}
}

// DefaultTiers returns premium/standard/economy for a provider. standard
// pairs a stronger strategist with a cheaper executor.
func DefaultTiers(provider string) map[string]TierConfig {
	if provider == ProviderGemini {
		return map[string]TierConfig{
			"premium":  {StrategistModel: "gemini-2.5-pro", ExecutorModel: "gemini-2.5-pro", StrategistTemperature: 0.3, ExecutorTemperature: 0.2, StrategistMaxTokens: 8192, ExecutorMaxTokens: 8192},
			"standard": {StrategistModel: "gemini-2.5-pro", ExecutorModel: "gemini-2.5-flash", StrategistTemperature: 0.3, ExecutorTemperature: 0.2, StrategistMaxTokens: 6144, ExecutorMaxTokens: 6144},
			"economy":  {StrategistModel: "gemini-2.5-flash", ExecutorModel: "gemini-2.5-flash-lite", StrategistTemperature: 0.3, ExecutorTemperature: 0.2, StrategistMaxTokens: 4096, ExecutorMaxTokens: 4096},
		}
	}
	return map[string]TierConfig{
		"premium":  {StrategistModel: "gpt-4.1", ExecutorModel: "gpt-4.1", StrategistTemperature: 0.3, ExecutorTemperature: 0.2, StrategistMaxTokens: 8192, ExecutorMaxTokens: 8192},
		"standard": {StrategistModel: "gpt-4.1", ExecutorModel: "gpt-4.1-mini", StrategistTemperature: 0.3, ExecutorTemperature: 0.2, StrategistMaxTokens: 6144, ExecutorMaxTokens: 6144},
		"economy":  {StrategistModel: "gpt-4.1-mini", ExecutorModel: "gpt-4.1-nano", StrategistTemperature: 0.3, ExecutorTemperature: 0.2, StrategistMaxTokens: 4096, ExecutorMaxTokens: 4096},
	}
}
