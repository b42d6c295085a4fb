package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"NewsDesk/internal/domain/models"
	dservice "NewsDesk/internal/domain/service"
	"NewsDesk/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)

type fakeMarket struct {
	mu       sync.Mutex
	paths    []string
	fail     bool
	failPath string
	panicky  bool
	block    bool
}

func (f *fakeMarket) Get(ctx context.Context, path string, q map[string]string) (interface{}, error) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()

	switch {
	case f.panicky:
		panic("bad payload")
	case f.block:
		<-ctx.Done()
		return nil, ctx.Err()
	case f.fail, f.failPath != "" && strings.Contains(path, f.failPath):
		return nil, errors.New("upstream down")
	}

	rows := make([]interface{}, 40)
	for i := range rows {
		px := 100 + float64(i%3)
		rows[i] = map[string]interface{}{
			"symbol": "AAPL",
			"date":   ref.Add(-time.Duration(i) * time.Hour).Format("2006-01-02 15:04:05"),
			"open":   px,
			"high":   px + 1,
			"low":    px - 1,
			"close":  px,
			"volume": 1000.0,
		}
	}
	if strings.Contains(path, "historical-price-full") {
		return map[string]interface{}{"symbol": "AAPL", "historical": rows}, nil
	}
	return rows, nil
}

func newTestDispatcher(md *fakeMarket, opts ...Option) *Dispatcher {
	return New(md, metrics.Nop{}, nil, append([]Option{WithClock(func() time.Time { return ref })}, opts...)...)
}

func TestCatalogSize(t *testing.T) {
	d := newTestDispatcher(&fakeMarket{})
	assert.Len(t, d.Types(), 55)
	assert.True(t, d.Supports(models.ReqComprehensiveMacro))
	assert.False(t, d.Supports("options_chain"))
}

func TestRoundTripEveryType(t *testing.T) {
	ok := newTestDispatcher(&fakeMarket{})
	bad := newTestDispatcher(&fakeMarket{fail: true})

	for _, typ := range ok.Types() {
		typ := typ
		t.Run(string(typ), func(t *testing.T) {
			reqs := []models.DataRequest{{Type: typ, Symbols: []string{"AAPL"}}}

			pack := ok.Execute(context.Background(), reqs, dservice.DispatchOptions{ReferenceDate: ref})
			assert.Len(t, pack.ByType, 1)
			assert.Contains(t, pack.ByType, typ)
			assert.Empty(t, pack.Errors)
			assert.Equal(t, 1, pack.RequestCount)
			assert.Equal(t, 1, pack.SuccessCount)

			pack = bad.Execute(context.Background(), reqs, dservice.DispatchOptions{ReferenceDate: ref})
			assert.Empty(t, pack.ByType)
			assert.Len(t, pack.Errors, 1)
			assert.Equal(t, 0, pack.SuccessCount)
		})
	}
}

func TestUnknownType(t *testing.T) {
	d := newTestDispatcher(&fakeMarket{})
	pack := d.Execute(context.Background(), []models.DataRequest{{Type: "options_chain"}}, dservice.DispatchOptions{})
	require.Len(t, pack.Errors, 1)
	assert.Contains(t, pack.Errors[0].Message, "unknown request type")
	assert.Equal(t, 1, pack.RequestCount)
}

func TestAllowListAppliesAfterNormalization(t *testing.T) {
	md := &fakeMarket{}
	d := newTestDispatcher(md)
	opts := dservice.DispatchOptions{AllowedSymbols: map[string]struct{}{"AAPL": {}}}

	pack := d.Execute(context.Background(), []models.DataRequest{
		{Type: models.ReqQuote, Symbols: []string{"NASDAQ:AAPL", "TSLA"}},
		{Type: models.ReqCompanyProfile, Symbols: []string{"TSLA"}},
	}, opts)

	quotes, ok := pack.ByType[models.ReqQuote].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, quotes, "AAPL")
	assert.NotContains(t, quotes, "TSLA")

	require.Len(t, pack.Errors, 1)
	assert.Equal(t, models.ReqCompanyProfile, pack.Errors[0].Type)
	assert.Equal(t, []string{"/api/v3/quote/AAPL"}, md.paths)
}

func TestRepeatedTypesMerge(t *testing.T) {
	d := newTestDispatcher(&fakeMarket{})
	pack := d.Execute(context.Background(), []models.DataRequest{
		{Type: models.ReqQuote, Symbols: []string{"AAPL"}},
		{Type: models.ReqQuote, Symbols: []string{"MSFT"}},
	}, dservice.DispatchOptions{})

	quotes := pack.ByType[models.ReqQuote].(map[string]interface{})
	assert.Len(t, quotes, 2)
	assert.Equal(t, 2, pack.SuccessCount)
}

func TestHandlerPanicIsContained(t *testing.T) {
	d := newTestDispatcher(&fakeMarket{panicky: true})
	pack := d.Execute(context.Background(), []models.DataRequest{
		{Type: models.ReqQuote, Symbols: []string{"AAPL"}},
		{Type: models.ReqMarketHours},
	}, dservice.DispatchOptions{})

	assert.Empty(t, pack.ByType)
	require.Len(t, pack.Errors, 2)
	assert.Contains(t, pack.Errors[0].Message, "panic")
}

func TestPerCallTimeout(t *testing.T) {
	d := newTestDispatcher(&fakeMarket{block: true}, WithCallTimeout(20*time.Millisecond))
	start := time.Now()
	pack := d.Execute(context.Background(), []models.DataRequest{{Type: models.ReqSectorPerformance}}, dservice.DispatchOptions{})
	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, pack.Errors, 1)
	assert.Contains(t, pack.Errors[0].Message, "deadline")
}

func TestCompositePartialFailure(t *testing.T) {
	d := newTestDispatcher(&fakeMarket{failPath: "/api/v3/profile/"})
	pack := d.Execute(context.Background(), []models.DataRequest{
		{Type: models.ReqComprehensiveAsset, Symbols: []string{"AAPL"}},
	}, dservice.DispatchOptions{ReferenceDate: ref})

	require.Empty(t, pack.Errors)
	byAsset := pack.ByType[models.ReqComprehensiveAsset].(map[string]interface{})
	asset := byAsset["AAPL"].(map[string]interface{})
	assert.Contains(t, asset, "quote")
	assert.Contains(t, asset, "historical")
	assert.NotContains(t, asset, "profile")
	assert.Equal(t, "profile", asset["missing"])
}

func TestIntradayKeepsLookbackWindow(t *testing.T) {
	d := newTestDispatcher(&fakeMarket{})
	pack := d.Execute(context.Background(), []models.DataRequest{{
		Type:    models.ReqIntradayChart,
		Symbols: []string{"AAPL"},
		Params:  models.RequestParams{LookbackMinutes: 120},
	}}, dservice.DispatchOptions{ReferenceDate: ref})

	rows := pack.ByType[models.ReqIntradayChart].(map[string]interface{})["AAPL"].([]interface{})
	assert.Len(t, rows, 3) // t-0h, t-1h, t-2h
}

func TestCancelledContextSkipsRemainingRequests(t *testing.T) {
	md := &fakeMarket{}
	d := newTestDispatcher(md)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pack := d.Execute(ctx, []models.DataRequest{{Type: models.ReqMarketHours}, {Type: models.ReqSectorPerformance}}, dservice.DispatchOptions{})
	assert.Len(t, pack.Errors, 2)
	assert.Equal(t, 2, pack.RequestCount)
	assert.Empty(t, md.paths)
}

func TestFilterRowsLeavesUntaggedRows(t *testing.T) {
	untagged := []interface{}{map[string]interface{}{"event": "CPI"}}
	assert.Equal(t, untagged, filterRows(untagged, []string{"AAPL"}))

	tagged := []interface{}{
		map[string]interface{}{"symbol": "aapl"},
		map[string]interface{}{"symbol": "MSFT"},
	}
	assert.Len(t, filterRows(tagged, []string{"AAPL"}), 1)
}
