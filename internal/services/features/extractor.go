package features

import (
	"math"
	"sort"
	"strconv"

	"NewsDesk/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over a rolling window
// using the provided number of bars per year. Returns the latest window sigma.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	// annualize
	return math.Sqrt(variance * barsPerYear)
}

// ParkinsonVolatility estimates annualized volatility from the high/low range
// of the last window bars.
func ParkinsonVolatility(candles []models.Candle, window int, barsPerYear float64) float64 {
	if window <= 0 || len(candles) < window {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-window:] {
		if c.High <= 0 || c.Low <= 0 {
			continue
		}
		hl := math.Log(c.High / c.Low)
		sum += hl * hl
	}
	variance := sum / (4 * math.Ln2 * float64(window))
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYearForTF returns the approximate number of bars per year for a timeframe.
// Daily and coarser bars count trading sessions, intraday bars assume a 24h market.
func BarsPerYearForTF(tf string) float64 {
	switch tf {
	case "1m", "1min":
		return 365 * 24 * 60
	case "5m", "5min":
		return 365 * 24 * 12
	case "15m", "15min":
		return 365 * 24 * 4
	case "1h", "1hour":
		return 365 * 24
	case "1w", "1week":
		return 52
	default:
		return 252
	}
}

// SortByTime orders candles oldest first. Providers usually return newest first.
func SortByTime(candles []models.Candle) {
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
}

// VolatilitySummary is the historical_volatility payload for one symbol.
type VolatilitySummary struct {
	Symbol        string             `json:"symbol"`
	Bars          int                `json:"bars"`
	Timeframe     string             `json:"timeframe"`
	Realized      map[string]float64 `json:"realized"`
	Parkinson     float64            `json:"parkinson"`
	LastClose     float64            `json:"lastClose"`
	LastReturnPct float64            `json:"lastReturnPct"`
}

// Summarize computes realized volatility over the standard windows that fit
// the available history. It returns false when fewer than three bars exist.
func Summarize(symbol, tf string, candles []models.Candle, windows ...int) (VolatilitySummary, bool) {
	if len(candles) < 3 {
		return VolatilitySummary{}, false
	}
	if len(windows) == 0 {
		windows = []int{10, 20, 60}
	}
	SortByTime(candles)

	bpy := BarsPerYearForTF(tf)
	rets := ComputeLogReturns(candles)
	s := VolatilitySummary{
		Symbol:    symbol,
		Bars:      len(candles),
		Timeframe: tf,
		Realized:  make(map[string]float64, len(windows)),
		LastClose: candles[len(candles)-1].Close,
	}
	for _, w := range windows {
		if len(rets) >= w {
			s.Realized[windowKey(w)] = RealizedVolatility(rets, w, bpy)
		}
	}
	if len(s.Realized) == 0 {
		s.Realized[windowKey(len(rets))] = RealizedVolatility(rets, len(rets), bpy)
	}
	pw := 20
	if len(candles) < pw {
		pw = len(candles)
	}
	s.Parkinson = ParkinsonVolatility(candles, pw, bpy)
	if n := len(rets); n > 0 {
		s.LastReturnPct = (math.Exp(rets[n-1]) - 1) * 100
	}
	return s, true
}

func windowKey(w int) string {
	return "w" + strconv.Itoa(w)
}
