package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	drepo "NewsDesk/internal/domain/repository"
	"NewsDesk/pkg/config"
	xhttp "NewsDesk/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGen struct {
	text string
	err  error
	got  []drepo.ChatRequest
}

func (s *stubGen) generate(ctx context.Context, req drepo.ChatRequest) (string, error) {
	s.got = append(s.got, req)
	return s.text, s.err
}

type countingMetrics struct {
	calls map[string]int
}

func (m *countingMetrics) RecordError(string)            {}
func (m *countingMetrics) RecordLatency(string, float64) {}
func (m *countingMetrics) RecordLLMCall(stage, model, outcome string) {
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[stage+"/"+outcome]++
}
func (m *countingMetrics) RecordDataRequest(string, string) {}
func (m *countingMetrics) RecordItem(string)                {}
func (m *countingMetrics) RecordQuality(float64)            {}
func (m *countingMetrics) RecordResultSent(string)          {}

func TestClientGenerate(t *testing.T) {
	gen := &stubGen{text: `{"ok":true}`}
	m := &countingMetrics{}
	c := newClient(gen, Config{RequestsPerMinute: 600}, m, nil)

	out, err := c.Generate(context.Background(), drepo.ChatRequest{Stage: "strategist", Model: "m", System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	require.Len(t, gen.got, 1)
	assert.Equal(t, "u", gen.got[0].User)
	assert.Equal(t, 1, m.calls["strategist/ok"])
}

func TestClientEmptyAndFailedResponses(t *testing.T) {
	m := &countingMetrics{}
	c := newClient(&stubGen{}, Config{RequestsPerMinute: 600}, m, nil)
	_, err := c.Generate(context.Background(), drepo.ChatRequest{Stage: "executor", Model: "m"})
	require.Error(t, err)
	assert.Equal(t, 1, m.calls["executor/empty"])

	boom := errors.New("503")
	c = newClient(&stubGen{err: boom}, Config{RequestsPerMinute: 600}, m, nil)
	_, err = c.Generate(context.Background(), drepo.ChatRequest{Stage: "executor", Model: "m"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.calls["executor/error"])
}

func TestClientLimiterRespectsContext(t *testing.T) {
	c := newClient(&stubGen{text: "{}"}, Config{RequestsPerMinute: 1}, nil, nil)
	_, err := c.Generate(context.Background(), drepo.ChatRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Generate(ctx, drepo.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limiter wait")
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "llama"}, nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":                 `{"a":1}`,
		"Here you go: {\"a\":{\"b\":\"}\"}} done": `{"a":{"b":"}"}}`,
		`{"s":"quote \" and { brace"}`:            `{"s":"quote \" and { brace"}`,
		"  {\"x\":[1,2]}  ":                       `{"x":[1,2]}`,
	}
	for in, want := range cases {
		got, err := ExtractJSON(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", "no json here", `{"open": true`} {
		_, err := ExtractJSON(bad)
		assert.ErrorIs(t, err, ErrNoJSON, bad)
	}
}

func TestResolveTier(t *testing.T) {
	tiers := config.DefaultTiers(config.ProviderOpenAI)

	tier, err := ResolveTier(tiers, "")
	require.NoError(t, err)
	assert.Equal(t, "standard", tier.Name)
	assert.NotEmpty(t, tier.StrategistModel)

	_, err = ResolveTier(tiers, "ultra")
	assert.ErrorIs(t, err, ErrUnknownTier)
}

type flakyGen struct {
	fails int
	calls int
}

func (f *flakyGen) generate(context.Context, drepo.ChatRequest) (string, error) {
	f.calls++
	if f.calls <= f.fails {
		return "", errors.New("error, status code: 429, message: Too Many Requests")
	}
	return `{"ok":true}`, nil
}

func TestClientRetriesRateLimit(t *testing.T) {
	gen := &flakyGen{fails: 1}
	m := &countingMetrics{}
	c := newClient(gen, Config{RequestsPerMinute: 600, MaxRetries: 3, InitialBackoff: time.Second}, m, nil)
	var waits []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	out, err := c.Generate(context.Background(), drepo.ChatRequest{Stage: "strategist", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, []time.Duration{time.Second}, waits)
	assert.Equal(t, 1, m.calls["strategist/error"])
	assert.Equal(t, 1, m.calls["strategist/ok"])
}

func TestClientRateLimitRetriesAreBounded(t *testing.T) {
	gen := &flakyGen{fails: 100}
	c := newClient(gen, Config{RequestsPerMinute: 600, MaxRetries: 2, InitialBackoff: time.Second}, nil, nil)
	var waits []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_, err := c.Generate(context.Background(), drepo.ChatRequest{Stage: "executor", Model: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, xhttp.ErrRateLimited)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestClientRateLimitWaitBeyondDeadline(t *testing.T) {
	gen := &flakyGen{fails: 100}
	c := newClient(gen, Config{RequestsPerMinute: 600, MaxRetries: 3, InitialBackoff: time.Minute}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.Generate(ctx, drepo.ChatRequest{Stage: "executor", Model: "m"})
	assert.ErrorIs(t, err, xhttp.ErrRateLimited)
	assert.Equal(t, 1, gen.calls)
}

func TestOtherErrorsAreNotRetried(t *testing.T) {
	gen := &stubGen{err: errors.New("401 unauthorized")}
	c := newClient(gen, Config{RequestsPerMinute: 600, MaxRetries: 3}, nil, nil)
	_, err := c.Generate(context.Background(), drepo.ChatRequest{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, xhttp.ErrRateLimited)
	assert.Len(t, gen.got, 1)
}
