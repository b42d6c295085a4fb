package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleeps struct {
	waits []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestSendAlways429HitsMaxRetriesPlusOne(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rec := &recordedSleeps{}
	c := NewClient(WithRetry(3, time.Second), WithSleeper(rec.sleep))

	resp, err := c.Send(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.waits)
}

func TestSendHonorsRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &recordedSleeps{}
	c := NewClient(WithSleeper(rec.sleep))

	resp, err := c.Send(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []time.Duration{7 * time.Second}, rec.waits)
}

func TestSendReturnsOtherStatusesUntouched(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(WithSleeper((&recordedSleeps{}).sleep))
	resp, err := c.Send(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSendRetriesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	rec := &recordedSleeps{}
	c := NewClient(WithRetry(2, 10*time.Millisecond), WithSleeper(rec.sleep))
	_, err := c.Send(context.Background(), &RequestOptions{Method: MethodGet, URL: url})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, rec.waits)
}

func TestSendStopsWhenWaitExceedsDeadline(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c := NewClient()
	_, err := c.Send(ctx, &RequestOptions{Method: MethodGet, URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSendAndParseStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"Error Message":"Invalid API KEY"}`))
	}))
	defer srv.Close()

	c := NewClient()
	var out map[string]interface{}
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Contains(t, se.Body, "Invalid API KEY")
}

func TestRetryAfterHTTPDate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := retryAfter(now.Add(5*time.Second).Format(http.TimeFormat), now)
	assert.Equal(t, 5*time.Second, got)
	assert.Zero(t, retryAfter("garbage", now))
}

func TestTransportErrorHidesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	rec := &recordedSleeps{}
	c := NewClient(WithRetry(1, time.Millisecond), WithSleeper(rec.sleep))
	_, err := c.Send(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         addr + "/api/v3/quote/AAPL?token=inline-secret",
		QueryParams: map[string][]string{"apikey": {"SECRET-KEY-123"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/api/v3/quote/AAPL")
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
	assert.NotContains(t, err.Error(), "inline-secret")
	assert.Len(t, rec.waits, 1)
}

func TestSendAndParseBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	var body []byte
	err := NewClient(WithMaxBodySize(100)).SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &body)
	require.NoError(t, err)
	assert.Len(t, body, 100)

	err = NewClient(WithMaxBodySize(99)).SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &body)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}
