package models

import "time"

// Candle is one OHLCV bar returned by the market-data provider.
type Candle struct {
	Time   time.Time `json:"date"`
	Symbol string    `json:"symbol,omitempty"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}
