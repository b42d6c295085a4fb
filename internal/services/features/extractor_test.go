package features

import (
	"math"
	"testing"
	"time"

	"NewsDesk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(closes ...float64) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{Time: start.AddDate(0, 0, i), Open: c, High: c * 1.01, Low: c * 0.99, Close: c}
	}
	return out
}

func TestComputeLogReturns(t *testing.T) {
	assert.Nil(t, ComputeLogReturns(series(100)))

	r := ComputeLogReturns(series(100, 110, 0, 121))
	require.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Zero(t, r[1])
	assert.Zero(t, r[2])
}

func TestRealizedVolatilityConstantSeries(t *testing.T) {
	r := ComputeLogReturns(series(100, 100, 100, 100, 100))
	assert.Zero(t, RealizedVolatility(r, 4, 252))
	assert.Zero(t, RealizedVolatility(r, 10, 252), "window longer than data")
}

func TestSummarizeSortsAndPicksWindows(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i%2)
	}
	c := series(closes...)
	// newest first, as the provider returns it
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}

	s, ok := Summarize("AAPL", "1d", c)
	require.True(t, ok)
	assert.Equal(t, 25, s.Bars)
	assert.Contains(t, s.Realized, "w10")
	assert.Contains(t, s.Realized, "w20")
	assert.NotContains(t, s.Realized, "w60")
	assert.Greater(t, s.Realized["w20"], 0.0)
	assert.Greater(t, s.Parkinson, 0.0)
	assert.Equal(t, closes[24], s.LastClose)

	_, ok = Summarize("AAPL", "1d", series(1, 2))
	assert.False(t, ok)
}

func TestSummarizeShortHistoryFallsBackToFullWindow(t *testing.T) {
	s, ok := Summarize("X", "1d", series(100, 101, 99, 102))
	require.True(t, ok)
	assert.Contains(t, s.Realized, "w3")
}
