package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	drepo "NewsDesk/internal/domain/repository"
	"NewsDesk/internal/service/ratelimit"
	xhttp "NewsDesk/pkg/http"
	"NewsDesk/pkg/logger"
)

const limiterKey = "fmp"

// ErrProvider is returned when FMP answers 2xx with an error document.
var ErrProvider = errors.New("fmp returned an error payload")

// Config holds FMP connection settings.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	Burst          float64
	RefillPerSec   float64
}

// Client implements MarketData against the FMP REST API.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	log     *logger.Logger
}

// New creates a new FMP client. A nil limiter disables the call budget.
func New(cfg Config, limiter *ratelimit.Limiter, l *logger.Logger, opts ...xhttp.ClientOption) drepo.MarketData {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if l == nil {
		l = logger.Nop()
	}
	base := []xhttp.ClientOption{
		xhttp.WithTimeout(cfg.Timeout),
		xhttp.WithRetry(cfg.MaxRetries, cfg.InitialBackoff),
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(append(base, opts...)...),
		limiter: limiter,
		log:     l,
	}
}

// Get calls path (for example "/api/v3/quote/AAPL") and returns the decoded
// JSON root, which is usually a []interface{} or map[string]interface{}.
func (c *Client) Get(ctx context.Context, path string, query map[string]string) (interface{}, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, limiterKey, c.cfg.Burst, c.cfg.RefillPerSec); err != nil {
			return nil, fmt.Errorf("fmp limiter: %w", err)
		}
	}

	params := map[string][]string{"apikey": {c.cfg.APIKey}}
	for k, v := range query {
		if v != "" {
			params[k] = []string{v}
		}
	}

	var raw []byte
	start := time.Now()
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         strings.TrimRight(c.cfg.BaseURL, "/") + path,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: params,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("fmp %s: %w", path, err)
	}

	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("fmp %s decode: %w", path, err)
	}
	if m, ok := out.(map[string]interface{}); ok {
		if msg, ok := m["Error Message"].(string); ok {
			return nil, fmt.Errorf("fmp %s: %s: %w", path, msg, ErrProvider)
		}
	}

	c.log.Debug("fmp call",
		logger.String("path", path),
		logger.Duration("latency", time.Since(start)),
	)
	return out, nil
}
