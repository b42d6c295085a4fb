package models

import "time"

type FearGreed struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

type ReferenceAsset struct {
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price"`
	Change24hPercent float64 `json:"change24hPercent"`
}

// MarketContext is a sentiment and price snapshot shared by both model
// stages. When reused across a batch it is passed by value and never
// modified in place.
type MarketContext struct {
	FearGreed       FearGreed      `json:"fearGreed"`
	ReferenceAsset  ReferenceAsset `json:"referenceAsset"`
	VolatilityIndex float64        `json:"volatilityIndex"`
	DollarIndex     float64        `json:"dollarIndex"`
	Timestamp       time.Time      `json:"timestamp"`
	// Degraded lists sub-fetches that fell back to neutral defaults.
	Degraded []string `json:"degraded,omitempty"`
}

// NeutralMarketContext returns the defaults used when every source fails.
func NeutralMarketContext(now time.Time) MarketContext {
	return MarketContext{
		FearGreed:      FearGreed{Value: 50, Label: "Neutral"},
		ReferenceAsset: ReferenceAsset{Symbol: "BTCUSD"},
		Timestamp:      now,
	}
}
