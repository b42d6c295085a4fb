// Package llm adapts chat-completion providers to the single-shot
// ChatModel used by the analysis pipeline.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	drepo "NewsDesk/internal/domain/repository"
	xhttp "NewsDesk/pkg/http"
	"NewsDesk/pkg/logger"

	"golang.org/x/time/rate"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ErrUnsupportedProvider is returned by New for an unknown provider name.
var ErrUnsupportedProvider = errors.New("unsupported llm provider")

// Config selects and configures the provider.
type Config struct {
	Provider          string
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
	// Provider 429s are retried MaxRetries times, waiting
	// InitialBackoff*2^attempt in between.
	MaxRetries     int
	InitialBackoff time.Duration
}

// generator is one provider backend.
type generator interface {
	generate(ctx context.Context, req drepo.ChatRequest) (string, error)
}

// Client implements ChatModel. Every attempt waits on a shared rate limiter
// and is bounded by the configured timeout.
type Client struct {
	gen        generator
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	metrics    drepo.Metrics
	log        *logger.Logger
}

var _ drepo.ChatModel = (*Client)(nil)

// New builds the client for cfg.Provider.
func New(ctx context.Context, cfg Config, m drepo.Metrics, l *logger.Logger) (*Client, error) {
	var (
		gen generator
		err error
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		gen = newOpenAI(cfg)
	case ProviderGemini:
		gen, err = newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return newClient(gen, cfg, m, l), nil
}

func newClient(gen generator, cfg Config, m drepo.Metrics, l *logger.Logger) *Client {
	if l == nil {
		l = logger.Nop()
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 20
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Client{
		gen:        gen,
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		timeout:    cfg.Timeout,
		maxRetries: retries,
		backoff:    backoff,
		sleep:      sleepCtx,
		metrics:    m,
		log:        l,
	}
}

// Generate sends one system+user exchange and returns the raw response text.
// A provider rate limit is retried with exponential backoff. Once retries are
// spent, or the next wait would outlive ctx, the error wraps
// xhttp.ErrRateLimited.
func (c *Client) Generate(ctx context.Context, req drepo.ChatRequest) (string, error) {
	for attempt := 0; ; attempt++ {
		text, err := c.attempt(ctx, req)
		if err == nil || !isRateLimited(err) {
			return text, err
		}
		if attempt == c.maxRetries {
			return "", fmt.Errorf("%s %s after %d attempts: %w: %w", req.Stage, req.Model, attempt+1, xhttp.ErrRateLimited, err)
		}

		wait := c.backoff << attempt
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return "", fmt.Errorf("%s retry wait %s exceeds deadline: %w: %w", req.Stage, wait, xhttp.ErrRateLimited, err)
		}
		c.log.Warn("llm rate limited, retrying",
			logger.String("stage", req.Stage),
			logger.Int("attempt", attempt+1),
			logger.Duration("wait", wait),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

func (c *Client) attempt(ctx context.Context, req drepo.ChatRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("limiter wait: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.gen.generate(ctx, req)
	took := time.Since(start)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case text == "":
		outcome = "empty"
		err = fmt.Errorf("%s: empty response from %s", req.Stage, req.Model)
	}
	if c.metrics != nil {
		c.metrics.RecordLLMCall(req.Stage, req.Model, outcome)
		c.metrics.RecordLatency("llm_"+req.Stage, took.Seconds())
	}
	if err != nil {
		c.log.Warn("llm call failed",
			logger.String("stage", req.Stage),
			logger.String("model", req.Model),
			logger.Duration("took", took),
			logger.Error(err),
		)
		return "", err
	}

	c.log.Debug("llm call",
		logger.String("stage", req.Stage),
		logger.String("model", req.Model),
		logger.Duration("took", took),
		logger.Int("chars", len(text)),
	)
	return text, nil
}

// isRateLimited recognises 429 answers from either SDK. Neither exposes a
// shared error type, so the status is matched in the error text.
func isRateLimited(err error) bool {
	if errors.Is(err, xhttp.ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "resource_exhausted")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
