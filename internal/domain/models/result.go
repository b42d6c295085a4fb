package models

import "time"

// Warning is a non-fatal finding about model output.
type Warning struct {
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	StageStrategist = "strategist"
	StageExecutor   = "executor"
)

type QualityMetrics struct {
	StrategistConfidence float64   `json:"strategistConfidence"`
	ExecutorAdherence    float64   `json:"executorAdherence"`
	OverallQuality       float64   `json:"overallQuality"`
	Warnings             []Warning `json:"warnings"`
}

// HasWarning reports whether a warning with the given code was raised.
func (q QualityMetrics) HasWarning(code string) bool {
	for _, w := range q.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

type Timing struct {
	StrategistMs int64 `json:"strategistMs"`
	DataMs       int64 `json:"dataMs"`
	ExecutorMs   int64 `json:"executorMs"`
	TotalMs      int64 `json:"totalMs"`
}

type ResultMeta struct {
	ModelTier       string    `json:"modelTier"`
	StrategistModel string    `json:"strategistModel"`
	ExecutorModel   string    `json:"executorModel,omitempty"`
	SkippedExecutor bool      `json:"skippedExecutor,omitempty"`
	CompletedAt     time.Time `json:"completedAt"`
}

// AnalysisPipelineResult is owned by the caller that ran the pipeline for
// one news item.
type AnalysisPipelineResult struct {
	NewsID         string           `json:"newsId"`
	Strategy       StrategistOutput `json:"strategy"`
	Analysis       ExecutorOutput   `json:"analysis"`
	QualityMetrics QualityMetrics   `json:"qualityMetrics"`
	Timing         Timing           `json:"timing"`
	DataPack       *CollectedPack   `json:"dataPack,omitempty"`
	MarketContext  *MarketContext   `json:"marketContext,omitempty"`
	Meta           ResultMeta       `json:"meta"`
}

type BatchStats struct {
	Total              int      `json:"total"`
	Succeeded          int      `json:"succeeded"`
	Failed             int      `json:"failed"`
	FailedIDs          []string `json:"failedIds"`
	Tradeable          int      `json:"tradeable"`
	Bullish            int      `json:"bullish"`
	Bearish            int      `json:"bearish"`
	Neutral            int      `json:"neutral"`
	Mixed              int      `json:"mixed"`
	HighConfidence     int      `json:"highConfidence"`
	LowIncrementalInfo int      `json:"lowIncrementalInfo"`
	AvgStrategistMs    float64  `json:"avgStrategistMs"`
	AvgExecutorMs      float64  `json:"avgExecutorMs"`
	AvgTotalMs         float64  `json:"avgTotalMs"`
	AvgQuality         float64  `json:"avgQuality"`
}

type BatchMeta struct {
	StartedAt     time.Time      `json:"startedAt"`
	FinishedAt    time.Time      `json:"finishedAt"`
	DurationMs    int64          `json:"durationMs"`
	ModelTier     string         `json:"modelTier"`
	ItemCount     int            `json:"itemCount"`
	Concurrency   int            `json:"concurrency"`
	MarketContext *MarketContext `json:"marketContext,omitempty"`
}

type BatchResult struct {
	Results []AnalysisPipelineResult `json:"results"`
	Stats   BatchStats               `json:"stats"`
	Meta    BatchMeta                `json:"meta"`
}
