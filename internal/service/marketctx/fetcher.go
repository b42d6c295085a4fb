// Package marketctx assembles the sentiment and price snapshot handed to
// both model stages.
package marketctx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"NewsDesk/internal/domain/models"
	drepo "NewsDesk/internal/domain/repository"
	dservice "NewsDesk/internal/domain/service"
	"NewsDesk/internal/service/symbols"
	"NewsDesk/pkg/cache"
	xhttp "NewsDesk/pkg/http"
	"NewsDesk/pkg/logger"

	"github.com/shopspring/decimal"
)

// Sub-fetch names, as reported in MarketContext.Degraded.
const (
	SourceFearGreed = "fear_greed"
	SourceReference = "reference_asset"
	SourceVol       = "volatility_index"
	SourceDollar    = "dollar_index"
)

var errDegraded = errors.New("snapshot degraded")

type Config struct {
	FearGreedURL    string
	BinanceURL      string
	ReferencePair   string // Binance pair, BTCUSDT by default
	Timeout         time.Duration
	CacheTTL        time.Duration
	VolatilityProxy string
	DollarProxy     string
}

// Fetcher implements MarketContextProvider.
type Fetcher struct {
	cfg     Config
	http    *xhttp.Client
	md      drepo.MarketData
	cache   cache.Service
	log     *logger.Logger
	metrics drepo.Metrics
	now     func() time.Time
	key     string // snapshots built from different proxies never share an entry
}

var _ dservice.MarketContextProvider = (*Fetcher)(nil)

// New creates a fetcher. md supplies the volatility and dollar proxies; c
// may be nil to disable caching.
func New(cfg Config, md drepo.MarketData, c cache.Service, l *logger.Logger, m drepo.Metrics, opts ...xhttp.ClientOption) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReferencePair == "" {
		cfg.ReferencePair = "BTCUSDT"
	}
	if cfg.VolatilityProxy == "" {
		cfg.VolatilityProxy = symbols.Normalize("VIX")
	}
	if cfg.DollarProxy == "" {
		cfg.DollarProxy = symbols.Normalize("DXY")
	}
	if l == nil {
		l = logger.Nop()
	}
	base := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout), xhttp.WithRetry(1, 500*time.Millisecond)}
	return &Fetcher{
		cfg:     cfg,
		http:    xhttp.NewClient(append(base, opts...)...),
		md:      md,
		cache:   c,
		log:     l,
		metrics: m,
		now:     time.Now,
		key:     cache.GenerateKeyWithParams("marketctx", cfg.ReferencePair, cfg.VolatilityProxy, cfg.DollarProxy),
	}
}

// Fetch returns the current snapshot. It never fails: every source that
// cannot be reached keeps its neutral default. Only complete snapshots are
// cached.
func (f *Fetcher) Fetch(ctx context.Context) models.MarketContext {
	start := time.Now()
	snap, hit, err := cache.GetOrLoad(ctx, f.cache, f.key, f.cfg.CacheTTL, f.load)
	if err != nil && !errors.Is(err, errDegraded) {
		f.log.Warn("market context load failed", logger.Error(err))
	}
	if f.metrics != nil && !hit {
		f.metrics.RecordLatency("market_context", time.Since(start).Seconds())
	}
	return snap
}

func (f *Fetcher) load(ctx context.Context) (models.MarketContext, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	snap := models.NeutralMarketContext(f.now().UTC())
	snap.ReferenceAsset.Symbol = symbols.Normalize(f.cfg.ReferencePair)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		degraded []string
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				f.log.Warn("market context source degraded", logger.String("source", name), logger.Error(err))
				if f.metrics != nil {
					f.metrics.RecordError("market_context_" + name)
				}
				mu.Lock()
				degraded = append(degraded, name)
				mu.Unlock()
			}
		}()
	}

	// each goroutine writes only its own field
	run(SourceFearGreed, func(ctx context.Context) error {
		fg, err := f.fearGreed(ctx)
		if err == nil {
			snap.FearGreed = fg
		}
		return err
	})
	run(SourceReference, func(ctx context.Context) error {
		price, change, err := f.reference(ctx)
		if err == nil {
			snap.ReferenceAsset.Price = price
			snap.ReferenceAsset.Change24hPercent = change
		}
		return err
	})
	run(SourceVol, func(ctx context.Context) error {
		px, err := f.proxyPrice(ctx, f.cfg.VolatilityProxy)
		if err == nil {
			snap.VolatilityIndex = px
		}
		return err
	})
	run(SourceDollar, func(ctx context.Context) error {
		px, err := f.proxyPrice(ctx, f.cfg.DollarProxy)
		if err == nil {
			snap.DollarIndex = px
		}
		return err
	})
	wg.Wait()

	if len(degraded) > 0 {
		sort.Strings(degraded)
		snap.Degraded = degraded
		return snap, errDegraded
	}
	return snap, nil
}

type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

func (f *Fetcher) fearGreed(ctx context.Context) (models.FearGreed, error) {
	var resp fngResponse
	err := f.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         f.cfg.FearGreedURL,
		QueryParams: map[string][]string{"limit": {"1"}},
	}, &resp)
	if err != nil {
		return models.FearGreed{}, err
	}
	if len(resp.Data) == 0 {
		return models.FearGreed{}, fmt.Errorf("fear greed: empty data")
	}
	v, err := strconv.Atoi(strings.TrimSpace(resp.Data[0].Value))
	if err != nil || v < 0 || v > 100 {
		return models.FearGreed{}, fmt.Errorf("fear greed: bad value %q", resp.Data[0].Value)
	}
	label := resp.Data[0].Classification
	if label == "" {
		label = classify(v)
	}
	return models.FearGreed{Value: v, Label: label}, nil
}

// classify mirrors alternative.me's bands for responses missing a label.
func classify(v int) string {
	switch {
	case v <= 24:
		return "Extreme Fear"
	case v <= 44:
		return "Fear"
	case v <= 55:
		return "Neutral"
	case v <= 75:
		return "Greed"
	default:
		return "Extreme Greed"
	}
}

type tickerResponse struct {
	LastPrice          decimal.Decimal `json:"lastPrice"`
	PriceChangePercent decimal.Decimal `json:"priceChangePercent"`
}

func (f *Fetcher) reference(ctx context.Context) (float64, float64, error) {
	var resp tickerResponse
	err := f.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         strings.TrimRight(f.cfg.BinanceURL, "/") + "/api/v3/ticker/24hr",
		QueryParams: map[string][]string{"symbol": {f.cfg.ReferencePair}},
	}, &resp)
	if err != nil {
		return 0, 0, err
	}
	if !resp.LastPrice.IsPositive() {
		return 0, 0, fmt.Errorf("ticker %s: no price", f.cfg.ReferencePair)
	}
	return resp.LastPrice.InexactFloat64(), resp.PriceChangePercent.Round(4).InexactFloat64(), nil
}

func (f *Fetcher) proxyPrice(ctx context.Context, symbol string) (float64, error) {
	if f.md == nil {
		return 0, fmt.Errorf("no market data provider")
	}
	v, err := f.md.Get(ctx, "/api/v3/quote/"+symbol, nil)
	if err != nil {
		return 0, err
	}
	rows, ok := v.([]interface{})
	if !ok || len(rows) == 0 {
		return 0, fmt.Errorf("quote %s: empty", symbol)
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("quote %s: unexpected shape", symbol)
	}
	px, ok := row["price"].(float64)
	if !ok || px <= 0 {
		return 0, fmt.Errorf("quote %s: no price", symbol)
	}
	return px, nil
}
