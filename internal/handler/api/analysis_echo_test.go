package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"NewsDesk/internal/domain/models"
	drepo "NewsDesk/internal/domain/repository"
	dservice "NewsDesk/internal/domain/service"
	"NewsDesk/internal/usecase"
	"NewsDesk/pkg/config"
	xlogger "NewsDesk/pkg/logger"
	"NewsDesk/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChat struct {
	mu    sync.Mutex
	users []string
	reply func(stage string) string
}

func (s *scriptedChat) Generate(_ context.Context, req drepo.ChatRequest) (string, error) {
	s.mu.Lock()
	s.users = append(s.users, req.User)
	s.mu.Unlock()
	return s.reply(req.Stage), nil
}

type stubDispatcher struct {
	reqs []models.DataRequest
	opts dservice.DispatchOptions
}

func (s *stubDispatcher) Execute(_ context.Context, reqs []models.DataRequest, opts dservice.DispatchOptions) models.CollectedPack {
	s.reqs = reqs
	s.opts = opts
	return models.CollectedPack{
		ByType:       map[models.RequestType]interface{}{},
		Errors:       []models.DataError{},
		RequestCount: len(reqs),
		SuccessCount: len(reqs),
	}
}

type stubExtractor struct {
	url  string
	body string
}

func (s *stubExtractor) Extract(_ context.Context, url string) (string, error) {
	s.url = url
	return s.body, nil
}

type recordingPublisher struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingPublisher) Publish(_ context.Context, res *models.AnalysisPipelineResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, res.NewsID)
	return nil
}

func (r *recordingPublisher) PublishBatch(_ context.Context, results []models.AnalysisPipelineResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range results {
		r.ids = append(r.ids, res.NewsID)
	}
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func goodReply(stage string) string {
	if stage == models.StageStrategist {
		b, _ := json.Marshal(models.StrategistOutput{
			InformationNature: models.InformationNature{Classification: models.ClassNewInformation, Confidence: 0.8},
			MarketImpactLogic: models.MarketImpactLogic{ShouldMoveMarkets: true},
			ExecutorInstructions: models.ExecutorInstructions{
				ConfidenceFloor: 5,
				AbsoluteBans:    []string{"This is not investment advice."},
			},
			EpistemicAssessment: models.EpistemicAssessment{IncrementalInformationScore: 6},
		})
		return string(b)
	}
	b, _ := json.Marshal(models.ExecutorOutput{
		ExecutiveSummary: models.ExecutiveSummary{OverallSentiment: models.SentimentNeutral},
		ScenarioAnalysis: models.ScenarioAnalysis{
			Base:     models.ScenarioOutcome{Probability: 0.6},
			Upside:   models.ScenarioOutcome{Probability: 0.2},
			Downside: models.ScenarioOutcome{Probability: 0.2},
		},
		Confidence: models.Confidence{Overall: 6},
	})
	return string(b)
}

type fixture struct {
	e         *echo.Echo
	chat      *scriptedChat
	disp      *stubDispatcher
	articles  *stubExtractor
	published *recordingPublisher
}

func newFixture(reply func(stage string) string) *fixture {
	f := &fixture{
		chat:      &scriptedChat{reply: reply},
		disp:      &stubDispatcher{},
		articles:  &stubExtractor{body: "Extracted article text about NVDA."},
		published: &recordingPublisher{},
	}
	pipeline := usecase.NewPipeline(f.chat, nil, nil,
		config.DefaultTiers(config.ProviderOpenAI), usecase.DefaultQualityConfig(), metrics.Nop{}, nil)
	sink := usecase.NewResultProcessor(f.published, nil, metrics.Nop{}, config.SinkKafka)

	h := NewAnalysisEchoHandler(xlogger.Nop(), pipeline, f.disp, nil, sink, f.articles, AnalysisDefaults{
		ModelTier: "standard",
	})
	f.e = echo.New()
	h.RegisterRoutes(f.e)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestAnalyzeReturnsResultAndPublishes(t *testing.T) {
	f := newFixture(goodReply)

	code, env := f.do(t, http.MethodPost, "/api/analyze",
		`{"news":{"id":"n1","headline":"Ignored headline","body":"Apple raised guidance."}}`)
	require.Equal(t, http.StatusOK, code)

	var res models.AnalysisPipelineResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "n1", res.NewsID)
	assert.Equal(t, "standard", res.Meta.ModelTier)
	assert.Equal(t, []string{"n1"}, f.published.ids)

	for _, u := range f.chat.users {
		assert.NotContains(t, u, "Ignored headline")
	}
}

func TestAnalyzeEmptyBodyIsBadRequest(t *testing.T) {
	f := newFixture(goodReply)

	code, env := f.do(t, http.MethodPost, "/api/analyze", `{"news":{"id":"n1","headline":"Only a headline"}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, http.StatusBadRequest, env.Status)
	assert.Empty(t, f.chat.users)
	assert.Empty(t, f.published.ids)
}

func TestAnalyzeUnparseableModelOutputIs422(t *testing.T) {
	f := newFixture(func(string) string { return "I cannot help with that." })

	code, _ := f.do(t, http.MethodPost, "/api/analyze", `{"news":{"id":"n1","body":"Fed holds rates."}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestAnalyzeUnknownTierIsBadRequest(t *testing.T) {
	f := newFixture(goodReply)

	// Validation only admits the three named tiers.
	code, _ := f.do(t, http.MethodPost, "/api/analyze", `{"news":{"id":"n1","body":"x"},"modelTier":"turbo"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAnalyzeFillsBodyFromURL(t *testing.T) {
	f := newFixture(goodReply)

	code, env := f.do(t, http.MethodPost, "/api/analyze",
		`{"news":{"id":"n9"},"url":"https://example.com/story"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "https://example.com/story", f.articles.url)

	var res models.AnalysisPipelineResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "n9", res.NewsID)
	require.NotEmpty(t, f.chat.users)
	assert.Contains(t, f.chat.users[0], "Extracted article text about NVDA.")
}

func TestBatchEndpoint(t *testing.T) {
	f := newFixture(goodReply)

	code, env := f.do(t, http.MethodPost, "/api/batch",
		`{"items":[{"id":"a","body":"one"},{"id":"b","body":""}],"concurrency":2}`)
	require.Equal(t, http.StatusOK, code)

	var res models.BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.Stats.Total)
	assert.Equal(t, 1, res.Stats.Succeeded)
	assert.Equal(t, []string{"b"}, res.Stats.FailedIDs)
	assert.ElementsMatch(t, []string{"a"}, f.published.ids)
}

func TestBatchRejectsEmptyItems(t *testing.T) {
	f := newFixture(goodReply)

	code, _ := f.do(t, http.MethodPost, "/api/batch", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDataRequestsNormalizesAllowList(t *testing.T) {
	f := newFixture(goodReply)

	code, env := f.do(t, http.MethodPost, "/api/data-requests",
		`{"requests":[{"type":"quote","symbols":["AAPL"]}],"allowedSymbols":["NASDAQ:AAPL","TVC:VIX"],"referenceDate":"2024-03-15"}`)
	require.Equal(t, http.StatusOK, code)

	var pack models.CollectedPack
	require.NoError(t, json.Unmarshal(env.Data, &pack))
	assert.Equal(t, 1, pack.RequestCount)

	require.Len(t, f.disp.reqs, 1)
	assert.Contains(t, f.disp.opts.AllowedSymbols, "AAPL")
	assert.Contains(t, f.disp.opts.AllowedSymbols, "VIXY")
	assert.Equal(t, 2024, f.disp.opts.ReferenceDate.Year())
}

func TestMarketContextFallsBackToNeutral(t *testing.T) {
	f := newFixture(goodReply)

	code, env := f.do(t, http.MethodGet, "/api/market-context", "")
	require.Equal(t, http.StatusOK, code)

	var mc models.MarketContext
	require.NoError(t, json.Unmarshal(env.Data, &mc))
	assert.Equal(t, 50, mc.FearGreed.Value)
}

func TestNormalizeEndpoint(t *testing.T) {
	f := newFixture(goodReply)

	code, env := f.do(t, http.MethodGet, "/api/symbols/normalize?asset=BINANCE:BTCUSDT", "")
	require.Equal(t, http.StatusOK, code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "BTCUSD", out["symbol"])
	assert.Equal(t, "BINANCE", out["exchange"])
	assert.Equal(t, true, out["knownExchange"])

	code, _ = f.do(t, http.MethodGet, "/api/symbols/normalize", "")
	assert.Equal(t, http.StatusBadRequest, code)
}
