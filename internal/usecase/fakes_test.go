package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"NewsDesk/internal/domain/models"
	drepo "NewsDesk/internal/domain/repository"
	dservice "NewsDesk/internal/domain/service"
	"NewsDesk/pkg/config"
	"NewsDesk/pkg/metrics"

	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	mu      sync.Mutex
	reqs    []drepo.ChatRequest
	respond func(req drepo.ChatRequest) (string, error)
}

func (f *fakeChat) Generate(_ context.Context, req drepo.ChatRequest) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeChat) calls(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.reqs {
		if stage == "" || r.Stage == stage {
			n++
		}
	}
	return n
}

// stagedChat answers each stage with a fixed document.
func stagedChat(strategy, analysis string) *fakeChat {
	return &fakeChat{respond: func(req drepo.ChatRequest) (string, error) {
		if req.Stage == models.StageStrategist {
			return strategy, nil
		}
		return analysis, nil
	}}
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls int
	reqs  []models.DataRequest
	opts  dservice.DispatchOptions
}

func (f *fakeDispatcher) Execute(_ context.Context, reqs []models.DataRequest, opts dservice.DispatchOptions) models.CollectedPack {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.reqs = reqs
	f.opts = opts
	return models.CollectedPack{
		ByType:       map[models.RequestType]interface{}{models.ReqQuote: map[string]interface{}{"AAPL": []interface{}{map[string]interface{}{"price": 190.5}}}},
		Errors:       []models.DataError{},
		RequestCount: len(reqs),
		SuccessCount: len(reqs),
	}
}

func (f *fakeDispatcher) Types() []models.RequestType {
	return []models.RequestType{models.ReqQuote, models.ReqHistoricalEOD}
}

type fakeContext struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeContext) Fetch(context.Context) models.MarketContext {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	mc := models.NeutralMarketContext(time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC))
	mc.FearGreed.Value = 72
	return mc
}

func newTestPipeline(chat drepo.ChatModel, d dservice.DataDispatcher, mc dservice.MarketContextProvider) *Pipeline {
	return NewPipeline(chat, d, mc, config.DefaultTiers(config.ProviderOpenAI), DefaultQualityConfig(), metrics.Nop{}, nil)
}

// plan returns a strategy that passes every strategist check.
func plan() models.StrategistOutput {
	return models.StrategistOutput{
		InformationNature: models.InformationNature{
			Classification: models.ClassNewInformation,
			Confidence:     0.8,
			Reasoning:      "guidance raised above consensus",
		},
		MarketImpactLogic: models.MarketImpactLogic{
			ShouldMoveMarkets: true,
			TransmissionMechanisms: []models.TransmissionMechanism{
				{Channel: "earnings", Direction: "up", Magnitude: "moderate"},
			},
		},
		RequiredData: models.RequiredData{
			DataRequests: []models.DataNeed{
				{Symbol: "AAPL", TradingViewSymbol: "NASDAQ:AAPL", InstrumentType: "equity", DataType: "price", Reason: "reaction"},
			},
		},
		ExecutorInstructions: models.ExecutorInstructions{
			MandatoryTasks:  []string{"assess AAPL"},
			ConfidenceFloor: 5,
			AbsoluteBans:    []string{"This is not investment advice."},
		},
		EpistemicAssessment: models.EpistemicAssessment{IncrementalInformationScore: 7},
	}
}

// decision returns an executor answer that satisfies plan().
func decision() models.ExecutorOutput {
	return models.ExecutorOutput{
		ExecutiveSummary: models.ExecutiveSummary{
			OneSentenceSignal: "AAPL guidance beat",
			OverallSentiment:  models.SentimentBullish,
		},
		AssetImpacts: []models.AssetImpact{
			{Asset: "Apple", TradingViewSymbol: "NASDAQ:AAPL", Direction: models.DirectionLong, Conviction: 8, Horizon: "short"},
		},
		ScenarioAnalysis: models.ScenarioAnalysis{
			Base:     models.ScenarioOutcome{Probability: 0.5},
			Upside:   models.ScenarioOutcome{Probability: 0.3},
			Downside: models.ScenarioOutcome{Probability: 0.2},
		},
		Confidence: models.Confidence{Overall: 7},
	}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

var errUpstream = errors.New("upstream unavailable")
