package dispatcher

import (
	"context"
	"fmt"
	"strconv"

	"NewsDesk/internal/services/features"
)

const defaultTechnicalRows = 30

// technical fetches a provider-computed indicator series.
func (d *Dispatcher) technical(indicator string, defaultPeriod int) fetchFunc {
	return func(ctx context.Context, c call) (interface{}, error) {
		tf := orDefaultStr(c.params.Timeframe, "1day")
		q := map[string]string{
			"type":   indicator,
			"period": strconv.Itoa(orDefault(c.params.PeriodLength, defaultPeriod)),
		}
		v, err := d.md.Get(ctx, fmt.Sprintf("/api/v3/technical_indicator/%s/%s", tf, c.symbol), q)
		if err != nil {
			return nil, err
		}
		return limitRows(v, orDefault(c.params.Limit, defaultTechnicalRows)), nil
	}
}

// localLookback covers the indicator period plus the rows requested, in
// calendar days.
func localLookback(period, rows int) int {
	return (period+rows)*7/5 + 10
}

// The provider has no ATR or band series, so both are computed from daily bars.

func (d *Dispatcher) atr(ctx context.Context, c call) (interface{}, error) {
	period := orDefault(c.params.PeriodLength, 14)
	limit := orDefault(c.params.Limit, defaultTechnicalRows)
	r, err := d.eodRows(ctx, c, orDefault(c.params.LookbackDays, localLookback(period, limit)))
	if err != nil {
		return nil, err
	}
	bars := candles(c.symbol, r)
	features.SortByTime(bars)
	out := features.Tail(features.ATR(bars, period), limit)
	if len(out) == 0 {
		return nil, fmt.Errorf("need more than %d bars, got %d", period, len(bars))
	}
	return toRows(out), nil
}

func (d *Dispatcher) bollinger(ctx context.Context, c call) (interface{}, error) {
	period := orDefault(c.params.PeriodLength, 20)
	limit := orDefault(c.params.Limit, defaultTechnicalRows)
	r, err := d.eodRows(ctx, c, orDefault(c.params.LookbackDays, localLookback(period, limit)))
	if err != nil {
		return nil, err
	}
	bars := candles(c.symbol, r)
	features.SortByTime(bars)
	out := features.Tail(features.Bollinger(bars, period, 2), limit)
	if len(out) == 0 {
		return nil, fmt.Errorf("need at least %d bars, got %d", period, len(bars))
	}
	return toRows(out), nil
}

func (d *Dispatcher) volatility(ctx context.Context, c call) (interface{}, error) {
	r, err := d.eodRows(ctx, c, orDefault(c.params.LookbackDays, 120))
	if err != nil {
		return nil, err
	}
	s, ok := features.Summarize(c.symbol, "1d", candles(c.symbol, r))
	if !ok {
		return nil, fmt.Errorf("not enough daily bars for %s", c.symbol)
	}
	return s, nil
}

// toRows keeps locally computed series in the same []interface{} shape the
// provider returns, so repeated requests merge the same way.
func toRows[T any](s []T) []interface{} {
	out := make([]interface{}, len(s))
	for i := range s {
		out[i] = s[i]
	}
	return out
}
