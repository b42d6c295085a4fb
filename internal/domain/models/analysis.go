package models

type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
	SentimentMixed   Sentiment = "mixed"
)

type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionNeutral Direction = "neutral"
)

// ExecutorOutput is the decision produced by the second model stage.
type ExecutorOutput struct {
	ExecutiveSummary     ExecutiveSummary     `json:"executiveSummary"`
	AssetImpacts         []AssetImpact        `json:"assetImpacts" validate:"dive"`
	ScenarioAnalysis     ScenarioAnalysis     `json:"scenarioAnalysis"`
	PricedInAssessment   PricedInAssessment   `json:"pricedInAssessment"`
	RisksAndInvalidation RisksAndInvalidation `json:"risksAndInvalidation"`
	Monitoring           Monitoring           `json:"monitoring"`
	Confidence           Confidence           `json:"confidence"`
	Meta                 AnalysisMeta         `json:"meta"`
}

type ExecutiveSummary struct {
	OneSentenceSignal        string    `json:"oneSentenceSignal"`
	IncrementalVsExpectation string    `json:"incrementalVsExpectation" validate:"omitempty,oneof=above in_line below unclear"`
	OverallSentiment         Sentiment `json:"overallSentiment" validate:"omitempty,oneof=bullish bearish neutral mixed"`
}

type AssetImpact struct {
	Asset                 string    `json:"asset"`
	TradingViewSymbol     string    `json:"tradingViewSymbol,omitempty"`
	NormalizedSymbol      string    `json:"normalizedSymbol,omitempty"`
	Direction             Direction `json:"direction" validate:"omitempty,oneof=long short neutral"`
	Conviction            float64   `json:"conviction" validate:"gte=1,lte=10"`
	Horizon               string    `json:"horizon"`
	Rationale             string    `json:"rationale"`
	EntryLogic            string    `json:"entryLogic"`
	InvalidationCondition string    `json:"invalidationCondition"`
}

type AssetImplication struct {
	Asset       string `json:"asset"`
	Implication string `json:"implication"`
}

type ScenarioOutcome struct {
	Probability       float64            `json:"probability" validate:"gte=0,lte=1"`
	Description       string             `json:"description"`
	AssetImplications []AssetImplication `json:"assetImplications"`
}

type ScenarioAnalysis struct {
	Base     ScenarioOutcome `json:"base"`
	Upside   ScenarioOutcome `json:"upside"`
	Downside ScenarioOutcome `json:"downside"`
}

// ProbabilitySum adds the three scenario probabilities.
func (s ScenarioAnalysis) ProbabilitySum() float64 {
	return s.Base.Probability + s.Upside.Probability + s.Downside.Probability
}

type PricedInAssessment struct {
	Score     float64 `json:"score" validate:"omitempty,gte=1,lte=10"`
	Reasoning string  `json:"reasoning"`
}

type RisksAndInvalidation struct {
	Risks                []string `json:"risks"`
	InvalidationTriggers []string `json:"invalidationTriggers"`
}

type Monitoring struct {
	NextDataPoints []string `json:"nextDataPoints"`
	TriggerEvents  []string `json:"triggerEvents"`
	Timeframe      string   `json:"timeframe"`
}

type Confidence struct {
	Overall            float64 `json:"overall" validate:"omitempty,gte=1,lte=10"`
	DataQuality        float64 `json:"dataQuality" validate:"omitempty,gte=1,lte=10"`
	AnalysisRobustness float64 `json:"analysisRobustness" validate:"omitempty,gte=1,lte=10"`
	Disclaimer         string  `json:"disclaimer"`
}

type AnalysisMeta struct {
	Category        string   `json:"category"`
	PrimaryAssets   []string `json:"primaryAssets"`
	SecondaryAssets []string `json:"secondaryAssets"`
}
