package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOptions(t *testing.T) {
	opts := buildOptions(ClientConfig{
		Host:         "ch.local",
		Port:         9000,
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  time.Minute,
		Compress:     true,
		AsyncInsert:  true,
		WaitForAsync: true,
	})

	assert.Equal(t, []string{"ch.local:9000"}, opts.Addr)
	assert.Equal(t, "p@ss", opts.Auth.Password)
	assert.Empty(t, opts.Auth.Database)
	assert.Equal(t, clickhouse.Native, opts.Protocol)
	require.NotNil(t, opts.Compression)
	assert.Equal(t, clickhouse.CompressionLZ4, opts.Compression.Method)
	assert.Equal(t, 60, opts.Settings["max_execution_time"])
	assert.Equal(t, 1, opts.Settings["async_insert"])
	assert.Equal(t, 1, opts.Settings["wait_for_async_insert"])
}

func TestBuildOptionsHTTP(t *testing.T) {
	opts := buildOptions(ClientConfig{Host: "localhost", Port: 8123, UseHTTP: true})

	assert.Equal(t, clickhouse.HTTP, opts.Protocol)
	assert.Nil(t, opts.Compression)
	assert.NotContains(t, opts.Settings, "async_insert")
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(WithTimeouts(time.Second, 0))
	assert.ErrorContains(t, err, "host is required")
}
