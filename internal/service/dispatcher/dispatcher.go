// Package dispatcher turns declarative data requests into a collected pack of
// market and fundamental data.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"NewsDesk/internal/domain/models"
	drepo "NewsDesk/internal/domain/repository"
	dservice "NewsDesk/internal/domain/service"
	"NewsDesk/internal/service/symbols"
	"NewsDesk/pkg/logger"
)

// DefaultCallTimeout bounds every handler call.
const DefaultCallTimeout = 15 * time.Second

var (
	errNoSymbols = errors.New("no permitted symbols")
	errEmpty     = errors.New("empty response")
)

type kind int

const (
	perSymbol   kind = iota // one call per symbol, payload keyed by symbol
	multiSymbol             // one call carrying every symbol
	global                  // symbols optional, used as a row filter
)

// call carries everything a handler needs for one upstream call.
type call struct {
	symbol  string
	symbols []string
	params  models.RequestParams
	ref     time.Time
}

type fetchFunc func(ctx context.Context, c call) (interface{}, error)

type handler struct {
	kind  kind
	fetch fetchFunc
}

// Dispatcher implements DataDispatcher over a MarketData provider.
type Dispatcher struct {
	md          drepo.MarketData
	metrics     drepo.Metrics
	log         *logger.Logger
	callTimeout time.Duration
	now         func() time.Time
	registry    map[models.RequestType]handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.callTimeout = d
		}
	}
}

// WithClock replaces time.Now as the default reference date.
func WithClock(now func() time.Time) Option {
	return func(ds *Dispatcher) { ds.now = now }
}

// New creates a dispatcher with the full request catalog registered.
func New(md drepo.MarketData, m drepo.Metrics, l *logger.Logger, opts ...Option) *Dispatcher {
	if l == nil {
		l = logger.Nop()
	}
	d := &Dispatcher{
		md:          md,
		metrics:     m,
		log:         l,
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.registry = d.handlers()
	return d
}

var _ dservice.DataDispatcher = (*Dispatcher)(nil)

// Types lists every registered request type in sorted order.
func (d *Dispatcher) Types() []models.RequestType {
	out := make([]models.RequestType, 0, len(d.registry))
	for t := range d.registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Supports reports whether t has a registered handler.
func (d *Dispatcher) Supports(t models.RequestType) bool {
	_, ok := d.registry[t]
	return ok
}

// Execute runs every request in order. Failures never abort the run; they
// are recorded in the pack's error list.
func (d *Dispatcher) Execute(ctx context.Context, requests []models.DataRequest, opts dservice.DispatchOptions) models.CollectedPack {
	ref := opts.ReferenceDate
	if ref.IsZero() {
		ref = d.now()
	}
	pack := models.CollectedPack{
		GeneratedAt: d.now().UTC(),
		ByType:      make(map[models.RequestType]interface{}),
		Errors:      []models.DataError{},
	}

	for _, req := range requests {
		pack.RequestCount++
		if err := ctx.Err(); err != nil {
			pack.Errors = append(pack.Errors, models.DataError{Type: req.Type, Message: err.Error()})
			continue
		}
		start := time.Now()

		payload, errs := d.executeOne(ctx, req, opts.AllowedSymbols, ref)
		pack.Errors = append(pack.Errors, errs...)

		outcome := "ok"
		if isEmpty(payload) {
			outcome = "error"
		} else {
			mergeInto(pack.ByType, req.Type, payload)
			pack.SuccessCount++
		}
		d.record(req.Type, outcome, time.Since(start))
	}

	d.log.Debug("data requests executed",
		logger.Int("requests", pack.RequestCount),
		logger.Int("succeeded", pack.SuccessCount),
		logger.Int("errors", len(pack.Errors)),
	)
	return pack
}

func (d *Dispatcher) executeOne(ctx context.Context, req models.DataRequest, allowed map[string]struct{}, ref time.Time) (interface{}, []models.DataError) {
	h, ok := d.registry[req.Type]
	if !ok {
		return nil, []models.DataError{{Type: req.Type, Message: fmt.Sprintf("unknown request type %q", req.Type)}}
	}

	syms := permitted(req.Symbols, allowed)
	if len(req.Symbols) > 0 && len(syms) == 0 {
		return nil, []models.DataError{{Type: req.Type, Symbol: strings.Join(req.Symbols, ","), Message: errNoSymbols.Error()}}
	}

	base := call{symbols: syms, params: req.Params, ref: ref}

	switch h.kind {
	case perSymbol:
		if len(syms) == 0 {
			return nil, []models.DataError{{Type: req.Type, Message: "symbols are required"}}
		}
		out := make(map[string]interface{}, len(syms))
		var errs []models.DataError
		for _, s := range syms {
			c := base
			c.symbol = s
			v, err := d.invoke(ctx, h.fetch, c)
			if err != nil {
				errs = append(errs, models.DataError{Type: req.Type, Symbol: s, Message: err.Error()})
				continue
			}
			out[s] = v
		}
		if len(out) == 0 {
			return nil, errs
		}
		return out, errs
	case multiSymbol:
		if len(syms) == 0 {
			return nil, []models.DataError{{Type: req.Type, Message: "symbols are required"}}
		}
	}

	v, err := d.invoke(ctx, h.fetch, base)
	if err != nil {
		return nil, []models.DataError{{Type: req.Type, Symbol: strings.Join(syms, ","), Message: err.Error()}}
	}
	return v, nil
}

// invoke isolates one handler call: its own timeout, and a panic becomes an
// error instead of taking the run down.
func (d *Dispatcher) invoke(ctx context.Context, fn fetchFunc, c call) (v interface{}, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("data handler panic", logger.Any("panic", r), logger.String("symbol", c.symbol))
			v, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()

	v, err = fn(ctx, c)
	if err != nil {
		return nil, err
	}
	if isEmpty(v) {
		return nil, errEmpty
	}
	return v, nil
}

func (d *Dispatcher) record(t models.RequestType, outcome string, took time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordDataRequest(string(t), outcome)
	d.metrics.RecordLatency("data_request", took.Seconds())
}

// permitted normalizes symbols and drops those outside the allow-list.
// A nil allow-list lets everything through.
func permitted(in []string, allowed map[string]struct{}) []string {
	norm := symbols.NormalizeAll(in)
	if len(allowed) == 0 {
		return norm
	}
	out := norm[:0]
	for _, s := range norm {
		if _, ok := allowed[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// mergeInto combines repeated request types: by-symbol maps are merged, row
// lists are appended, anything else is replaced.
func mergeInto(dst map[models.RequestType]interface{}, t models.RequestType, v interface{}) {
	prev, ok := dst[t]
	if !ok {
		dst[t] = v
		return
	}
	switch p := prev.(type) {
	case map[string]interface{}:
		if n, ok := v.(map[string]interface{}); ok {
			merged := make(map[string]interface{}, len(p)+len(n))
			for k, x := range p {
				merged[k] = x
			}
			for k, x := range n {
				merged[k] = x
			}
			dst[t] = merged
			return
		}
	case []interface{}:
		if n, ok := v.([]interface{}); ok {
			merged := make([]interface{}, 0, len(p)+len(n))
			dst[t] = append(append(merged, p...), n...)
			return
		}
	}
	dst[t] = v
}
