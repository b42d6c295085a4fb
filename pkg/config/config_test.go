package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"FMP_API_KEY", "LLM_PROVIDER", "LLM_BASE_URL", "LLM_API_KEY", "OPENAI_API_KEY",
		"GEMINI_API_KEY", "MODEL_TIER", "SINK", "KAFKA_BROKERS", "REDIS_ADDR", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, ProviderOpenAI, c.LLM.Provider)
	assert.Equal(t, "standard", c.Pipeline.ModelTier)
	assert.Equal(t, SinkNone, c.Sink.Type)
	assert.Equal(t, 20, c.LLM.RequestsPerMinute)
	assert.Equal(t, 60*time.Second, c.MarketContext.CacheTTL)
	assert.Equal(t, 7, c.Pipeline.Quality.HighConfidence)
	assert.Len(t, c.LLM.Tiers, 3)
	assert.Equal(t, "gpt-4.1-mini", c.LLM.Tiers["standard"].ExecutorModel)
	assert.NoError(t, c.Validate())
}

func TestLoadKeepsExplicitTier(t *testing.T) {
	path := writeConfig(t, `
environment: test
llm:
  provider: gemini
  tiers:
    standard:
      strategist_model: custom-strategist
      executor_model: custom-executor
pipeline:
  model_tier: standard
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-strategist", c.LLM.Tiers["standard"].StrategistModel)
	assert.Equal(t, "gemini-2.5-flash-lite", c.LLM.Tiers["economy"].ExecutorModel)
	assert.Equal(t, "localhost", c.Redis.Host)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FMP_API_KEY", "fmp-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("SINK", SinkKafka)
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "cache.local:6380")
	t.Setenv("MODEL_TIER", "economy")

	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, "fmp-key", c.FMP.APIKey)
	assert.Equal(t, "openai-key", c.LLM.APIKey)
	assert.Equal(t, SinkKafka, c.Sink.Type)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "cache.local", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.Equal(t, "economy", c.Pipeline.ModelTier)
	assert.NoError(t, c.RequireKeys(true, true))
}

func TestLoadWithEnvProviderKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", ProviderGemini)
	t.Setenv("OPENAI_API_KEY", "wrong-provider")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, "gemini-key", c.LLM.APIKey)
	assert.Equal(t, "gemini-2.5-pro", c.LLM.Tiers["premium"].StrategistModel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "claude" }, "llm.provider"},
		{"undefined tier", func(c *Config) { c.Pipeline.ModelTier = "turbo" }, "pipeline.model_tier"},
		{"bad sink", func(c *Config) { c.Sink.Type = "s3" }, "sink.type"},
		{"kafka sink without brokers", func(c *Config) {
			c.Sink.Type = SinkKafka
			c.Kafka.Brokers = nil
		}, "kafka.brokers"},
		{"consumer without brokers", func(c *Config) { c.Kafka.Consumer.Enabled = true }, "kafka.brokers"},
		{"bad cache", func(c *Config) { c.MarketContext.Cache = "disk" }, "market_context.cache"},
		{"negative weight", func(c *Config) { c.Pipeline.Quality.AdherenceWeight = -1 }, "weights"},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRequireKeys(t *testing.T) {
	c := Default()
	assert.NoError(t, c.RequireKeys(false, false))
	assert.ErrorContains(t, c.RequireKeys(true, false), "llm.api_key")
	assert.ErrorContains(t, c.RequireKeys(false, true), "fmp.api_key")
}
