package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	MethodGet    = http.MethodGet
	MethodPost   = http.MethodPost
	MethodPut    = http.MethodPut
	MethodDelete = http.MethodDelete
	MethodPatch  = http.MethodPatch
)

const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
)

// ErrRateLimited is returned once every retry of a 429 response is spent.
var ErrRateLimited = errors.New("upstream rate limit exceeded")

// ErrBodyTooLarge is returned when a response exceeds WithMaxBodySize.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError carries a non-2xx response that the caller asked to be parsed.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// ClientOption configures HTTPClient.
type ClientOption func(*Client)

// RequestOptions holds HTTP request parameters.
type RequestOptions struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string][]string
	Body        interface{}
}

// RetryPolicy bounds automatic retries of 429 and transport failures.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// Client represents an HTTP client with configurable timeout and retry policy.
type Client struct {
	timeout time.Duration
	retry   RetryPolicy
	maxBody int64 // 0 means unlimited
	client  *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new HTTP client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout: 30 * time.Second,
		retry: RetryPolicy{
			MaxRetries:     DefaultMaxRetries,
			InitialBackoff: DefaultInitialBackoff,
		},
		sleep: sleepCtx,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c
}

// SendRequest sends a single HTTP request without retries.
func (c *Client) SendRequest(ctx context.Context, opts *RequestOptions) (*http.Response, error) {
	req, err := c.buildRequest(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", redactErr(err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", redactErr(err))
	}

	return resp, nil
}

// Send sends a request with the client's retry policy.
func (c *Client) Send(ctx context.Context, opts *RequestOptions) (*http.Response, error) {
	return c.SendWithRetry(ctx, opts, c.retry)
}

// SendWithRetry retries HTTP 429 and transport errors. A 429 waits for
// Retry-After when the server sends one, otherwise InitialBackoff*2^attempt.
// Any other status is handed back untouched. After MaxRetries+1 attempts on
// 429 the call fails with ErrRateLimited. A wait that would outlive ctx's
// deadline aborts immediately with the context error.
func (c *Client) SendWithRetry(ctx context.Context, opts *RequestOptions, policy RetryPolicy) (*http.Response, error) {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = DefaultInitialBackoff
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		resp, err := c.SendRequest(ctx, opts)

		var wait time.Duration
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			wait = backoff(policy.InitialBackoff, attempt)
		case resp.StatusCode == http.StatusTooManyRequests:
			wait = retryAfter(resp.Header.Get("Retry-After"), time.Now())
			if wait <= 0 {
				wait = backoff(policy.InitialBackoff, attempt)
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = ErrRateLimited
		default:
			return resp, nil
		}

		if attempt == policy.MaxRetries {
			break
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return nil, fmt.Errorf("retry wait %s exceeds deadline: %w", wait, context.DeadlineExceeded)
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if errors.Is(lastErr, ErrRateLimited) {
		return nil, fmt.Errorf("%s %s after %d attempts: %w", opts.Method, redactURL(opts.URL), policy.MaxRetries+1, ErrRateLimited)
	}
	return nil, lastErr
}

// SendAndParse sends request through the retry policy and parses the JSON response.
func (c *Client) SendAndParse(ctx context.Context, opts *RequestOptions, dest interface{}) error {
	resp, err := c.Send(ctx, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	if dest == nil {
		return nil
	}

	switch v := dest.(type) {
	case *[]byte:
		body, err := c.readBody(resp.Body)
		if err != nil {
			return err
		}
		*v = body
	case io.Writer:
		if _, err := io.Copy(v, resp.Body); err != nil {
			return fmt.Errorf("copy body: %w", err)
		}
	default:
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	}

	return nil
}

func backoff(initial time.Duration, attempt int) time.Duration {
	return initial * time.Duration(1<<uint(attempt))
}

// retryAfter accepts both delta-seconds and HTTP-date forms.
func retryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// redactURL drops the query string so API keys never reach logs or errors.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func (c *Client) readBody(r io.Reader) ([]byte, error) {
	if c.maxBody <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, c.maxBody)
	}
	return body, nil
}

// redactErr strips the query from the URL a transport error prints.
func redactErr(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redactURL(ue.URL)
	}
	return err
}

func (c *Client) buildRequest(ctx context.Context, opts *RequestOptions) (*http.Request, error) {
	body, err := c.createRequestBody(opts)
	if err != nil {
		return nil, fmt.Errorf("create body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	c.addQueryParams(req, opts.QueryParams)
	c.addHeaders(req, opts.Headers)

	return req, nil
}

// createRequestBody re-encodes the body on every call so retries never send
// a drained reader.
func (c *Client) createRequestBody(opts *RequestOptions) (io.Reader, error) {
	if opts.Body == nil {
		return nil, nil
	}

	switch v := opts.Body.(type) {
	case []byte:
		return bytes.NewReader(v), nil
	case string:
		return strings.NewReader(v), nil
	case map[string]string:
		if opts.Headers["Content-Type"] == "application/x-www-form-urlencoded" {
			values := url.Values{}
			for k, val := range v {
				values.Set(k, val)
			}
			return strings.NewReader(values.Encode()), nil
		}
	}

	jsonBody, err := json.Marshal(opts.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return bytes.NewReader(jsonBody), nil
}

func (c *Client) addQueryParams(req *http.Request, params map[string][]string) {
	if len(params) > 0 {
		q := req.URL.Query()
		for key, values := range params {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
}

func (c *Client) addHeaders(req *http.Request, headers map[string]string) {
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if req.Header.Get("Content-Type") == "" && req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
}

// WithTimeout sets client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRetry sets the default retry policy used by Send.
func WithRetry(maxRetries int, initialBackoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retry = RetryPolicy{MaxRetries: maxRetries, InitialBackoff: initialBackoff}
	}
}

// WithMaxBodySize caps bodies read into a *[]byte by SendAndParse.
func WithMaxBodySize(n int64) ClientOption {
	return func(c *Client) {
		c.maxBody = n
	}
}

// WithSleeper replaces the wait between attempts. Tests use it to skip real delays.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}
