package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestATRConstantRange(t *testing.T) {
	c := series(100, 100, 100, 100, 100, 100)
	out := ATR(c, 3)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.InDelta(t, 2.0, v.Value, 1e-9)
	}
	assert.Nil(t, ATR(c, 6))
}

func TestBollingerFlatSeries(t *testing.T) {
	out := Bollinger(series(10, 10, 10, 10), 2, 2)
	require.Len(t, out, 3)
	assert.Equal(t, 10.0, out[0].Middle)
	assert.Equal(t, out[0].Middle, out[0].Upper)
	assert.Equal(t, "2024-01-02", out[0].Date)
}

func TestTail(t *testing.T) {
	assert.Equal(t, []int{3, 4}, Tail([]int{1, 2, 3, 4}, 2))
	assert.Equal(t, []int{1}, Tail([]int{1}, 5))
}
