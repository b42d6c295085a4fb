package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"NewsDesk/internal/service/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSendsKeyAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/quote/AAPL", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.False(t, r.URL.Query().Has("empty"))
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","price":190.5}]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", APIKey: "secret", Burst: 5, RefillPerSec: 5}, ratelimit.New(), nil)
	out, err := c.Get(context.Background(), "/api/v3/quote/AAPL", map[string]string{"limit": "5", "empty": ""})
	require.NoError(t, err)

	rows, ok := out.([]interface{})
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL", rows[0].(map[string]interface{})["symbol"])
}

func TestGetErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Error Message":"Limit Reach"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k"}, nil, nil)
	_, err := c.Get(context.Background(), "/api/v3/quote/X", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.NotContains(t, err.Error(), "apikey=k")
}

func TestGetNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second}, nil, nil)
	_, err := c.Get(context.Background(), "/x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestGetUnreachableKeepsKeyOutOfError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := New(Config{BaseURL: base, APIKey: "SECRET-KEY-123", Timeout: time.Second}, nil, nil)
	_, err := c.Get(context.Background(), "/api/v3/quote/AAPL", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/api/v3/quote/AAPL")
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
}
