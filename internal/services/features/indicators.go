package features

import (
	"math"
	"time"

	"NewsDesk/internal/domain/models"
)

// IndicatorValue is one dated indicator reading.
type IndicatorValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// BollingerValue is one dated band reading.
type BollingerValue struct {
	Date   string  `json:"date"`
	Middle float64 `json:"middle"`
	Upper  float64 `json:"upper"`
	Lower  float64 `json:"lower"`
}

// ATR computes Wilder's average true range. Candles must be oldest first.
func ATR(candles []models.Candle, period int) []IndicatorValue {
	if period <= 0 || len(candles) <= period {
		return nil
	}
	tr := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		c, prev := candles[i], candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out := []IndicatorValue{{Date: day(candles[period].Time), Value: atr}}
	for i := period + 1; i < len(candles); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out = append(out, IndicatorValue{Date: day(candles[i].Time), Value: atr})
	}
	return out
}

// Bollinger computes SMA(period) bands at k standard deviations.
func Bollinger(candles []models.Candle, period int, k float64) []BollingerValue {
	if period <= 1 || len(candles) < period {
		return nil
	}
	var out []BollingerValue
	for i := period - 1; i < len(candles); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += candles[j].Close
		}
		mean := sum / float64(period)
		sq := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := candles[j].Close - mean
			sq += d * d
		}
		sd := math.Sqrt(sq / float64(period))
		out = append(out, BollingerValue{
			Date:   day(candles[i].Time),
			Middle: mean,
			Upper:  mean + k*sd,
			Lower:  mean - k*sd,
		})
	}
	return out
}

// Tail returns at most the last n items.
func Tail[T any](s []T, n int) []T {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}
