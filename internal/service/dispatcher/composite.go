package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"NewsDesk/internal/domain/models"
)

type part struct {
	name string
	fn   fetchFunc
	c    call
}

// fanOut runs parts in parallel and merges the non-empty results by name.
// Failed parts are listed under "missing"; the call errors only when every
// part failed.
func (d *Dispatcher) fanOut(ctx context.Context, parts []part) (interface{}, error) {
	type res struct {
		name string
		v    interface{}
		err  error
	}
	results := make([]res, len(parts))

	var wg sync.WaitGroup
	for i, p := range parts {
		wg.Add(1)
		go func(i int, p part) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = res{name: p.name, err: fmt.Errorf("panic: %v", r)}
				}
			}()
			v, err := p.fn(ctx, p.c)
			if err == nil && isEmpty(v) {
				err = errEmpty
			}
			results[i] = res{name: p.name, v: v, err: err}
		}(i, p)
	}
	wg.Wait()

	out := make(map[string]interface{}, len(parts)+1)
	var missing []string
	var errs []error
	for _, r := range results {
		if r.err != nil {
			missing = append(missing, r.name)
			errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
			continue
		}
		out[r.name] = r.v
	}
	if len(out) == 0 {
		return nil, errors.Join(errs...)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		out["missing"] = strings.Join(missing, ",")
	}
	return out, nil
}

// comprehensiveAsset gathers quote, profile, recent daily bars, RSI and
// news for one symbol.
func (d *Dispatcher) comprehensiveAsset(ctx context.Context, c call) (interface{}, error) {
	single := c
	single.symbols = []string{c.symbol}
	single.params = models.RequestParams{}

	eod := single
	eod.params.LookbackDays = orDefault(c.params.LookbackDays, defaultEODDays)
	news := single
	news.params.Limit = 5

	return d.fanOut(ctx, []part{
		{"quote", d.symbolPath("/api/v3/quote/%s", 0), single},
		{"profile", d.symbolPath("/api/v3/profile/%s", 0), single},
		{"historical", d.eod, eod},
		{"rsi", d.technical("rsi", 14), single},
		{"news", d.news("/api/v3/stock_news", "tickers"), news},
	})
}

// comprehensiveMacro gathers rates, the economic calendar, sector moves and
// index quotes.
func (d *Dispatcher) comprehensiveMacro(ctx context.Context, c call) (interface{}, error) {
	base := call{ref: c.ref}
	return d.fanOut(ctx, []part{
		{"treasury", d.treasury, base},
		{"economicCalendar", d.calendar("/api/v3/economic_calendar"), base},
		{"sectorPerformance", d.plain("/api/v3/sectors-performance"), base},
		{"indexQuotes", d.listing("/api/v3/quotes/index"), base},
	})
}
