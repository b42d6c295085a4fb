package repository

import (
	"context"

	"NewsDesk/internal/domain/models"
)

// ChatRequest is one single-shot model exchange.
type ChatRequest struct {
	Stage       string // strategist or executor, used for metrics
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// ChatModel sends system instructions plus user content and returns the
// raw text of a single response.
type ChatModel interface {
	Generate(ctx context.Context, req ChatRequest) (string, error)
}

// MarketData fetches one provider endpoint and returns the decoded JSON root.
type MarketData interface {
	Get(ctx context.Context, path string, query map[string]string) (interface{}, error)
}

type ResultPublisher interface {
	Publish(ctx context.Context, r *models.AnalysisPipelineResult) error
	PublishBatch(ctx context.Context, results []models.AnalysisPipelineResult) error
	Close() error
}

type ResultStorage interface {
	Init(ctx context.Context) error // ensure tables
	Store(ctx context.Context, r *models.AnalysisPipelineResult) error
	StoreBatch(ctx context.Context, results []models.AnalysisPipelineResult) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordLLMCall(stage, model, outcome string)
	RecordDataRequest(reqType, outcome string)
	RecordItem(outcome string)
	RecordQuality(score float64)
	RecordResultSent(backend string)
}
