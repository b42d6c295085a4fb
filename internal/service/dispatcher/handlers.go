package dispatcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"NewsDesk/internal/domain/models"
	"NewsDesk/pkg/util"
)

const (
	defaultRows          = 20
	defaultStatementRows = 4
	defaultEODDays       = 30
	defaultCalendarDays  = 14
	defaultIntradayMins  = 390
)

// handlers builds the request catalog. Adding a type means adding one line.
func (d *Dispatcher) handlers() map[models.RequestType]handler {
	return map[models.RequestType]handler{
		// quotes
		models.ReqQuote:            {perSymbol, d.symbolPath("/api/v3/quote/%s", 0)},
		models.ReqBatchQuote:       {multiSymbol, d.batchQuote},
		models.ReqCryptoQuotes:     {global, d.listing("/api/v3/quotes/crypto")},
		models.ReqForexQuotes:      {global, d.listing("/api/v3/quotes/forex")},
		models.ReqCommodityQuotes:  {global, d.listing("/api/v3/quotes/commodity")},
		models.ReqIndexQuotes:      {global, d.listing("/api/v3/quotes/index")},
		models.ReqETFQuotes:        {global, d.listing("/api/v3/quotes/etf")},
		models.ReqAftermarketQuote: {perSymbol, d.symbolQuery("/api/v4/pre-post-market-trade/%s", nil)},
		models.ReqPriceChange:      {multiSymbol, d.priceChange},

		// charts
		models.ReqIntradayChart:        {perSymbol, d.intraday},
		models.ReqHistoricalEOD:        {perSymbol, d.eod},
		models.ReqHistoricalVolatility: {perSymbol, d.volatility},

		// company
		models.ReqCompanyProfile:  {perSymbol, d.symbolPath("/api/v3/profile/%s", 0)},
		models.ReqKeyMetrics:      {perSymbol, d.statement("/api/v3/key-metrics/%s")},
		models.ReqFinancialRatios: {perSymbol, d.statement("/api/v3/ratios/%s")},
		models.ReqIncomeStatement: {perSymbol, d.statement("/api/v3/income-statement/%s")},
		models.ReqBalanceSheet:    {perSymbol, d.statement("/api/v3/balance-sheet-statement/%s")},
		models.ReqCashFlow:        {perSymbol, d.statement("/api/v3/cash-flow-statement/%s")},
		models.ReqFinancialGrowth: {perSymbol, d.statement("/api/v3/financial-growth/%s")},
		models.ReqDCF:             {perSymbol, d.symbolPath("/api/v3/discounted-cash-flow/%s", 0)},

		// calendars
		models.ReqEarningsCalendar:  {global, d.calendar("/api/v3/earning_calendar")},
		models.ReqDividendCalendar:  {global, d.calendar("/api/v3/stock_dividend_calendar")},
		models.ReqIPOCalendar:       {global, d.calendar("/api/v3/ipo_calendar")},
		models.ReqSplitCalendar:     {global, d.calendar("/api/v3/stock_split_calendar")},
		models.ReqEconomicCalendar:  {global, d.calendar("/api/v3/economic_calendar")},
		models.ReqEarningsSurprises: {perSymbol, d.symbolPath("/api/v3/earnings-surprises/%s", defaultStatementRows)},

		// analyst coverage
		models.ReqAnalystEstimates:     {perSymbol, d.statement("/api/v3/analyst-estimates/%s")},
		models.ReqPriceTargetConsensus: {perSymbol, d.symbolQuery("/api/v4/price-target-consensus", nil)},
		models.ReqAnalystRatings:       {perSymbol, d.symbolPath("/api/v3/rating/%s", 0)},
		models.ReqUpgradesDowngrades:   {perSymbol, d.symbolQuery("/api/v4/upgrades-downgrades", nil)},

		// macro
		models.ReqTreasuryRates:     {global, d.treasury},
		models.ReqEconomicIndicator: {global, d.economicIndicator},
		models.ReqSectorPerformance: {global, d.plain("/api/v3/sectors-performance")},
		models.ReqMarketRiskPremium: {global, d.plain("/api/v4/market_risk_premium")},

		// technicals
		models.ReqTechnicalRSI:       {perSymbol, d.technical("rsi", 14)},
		models.ReqTechnicalSMA:       {perSymbol, d.technical("sma", 20)},
		models.ReqTechnicalEMA:       {perSymbol, d.technical("ema", 20)},
		models.ReqTechnicalADX:       {perSymbol, d.technical("adx", 14)},
		models.ReqTechnicalWilliams:  {perSymbol, d.technical("williams", 14)},
		models.ReqTechnicalATR:       {perSymbol, d.atr},
		models.ReqTechnicalBollinger: {perSymbol, d.bollinger},

		// breadth
		models.ReqMarketGainers: {global, d.listing("/api/v3/stock_market/gainers")},
		models.ReqMarketLosers:  {global, d.listing("/api/v3/stock_market/losers")},
		models.ReqMostActive:    {global, d.listing("/api/v3/stock_market/actives")},

		// ownership
		models.ReqInsiderTrading:       {perSymbol, d.symbolQuery("/api/v4/insider-trading", map[string]string{"limit": strconv.Itoa(defaultRows)})},
		models.ReqInstitutionalHolders: {perSymbol, d.symbolPath("/api/v3/institutional-holder/%s", defaultRows)},

		// constituents
		models.ReqIndexConstituents: {global, d.constituents},
		models.ReqETFHoldings:       {perSymbol, d.symbolPath("/api/v3/etf-holder/%s", defaultRows)},

		// news
		models.ReqStockNews:   {global, d.news("/api/v3/stock_news", "tickers")},
		models.ReqCryptoNews:  {global, d.news("/api/v4/crypto_news", "symbol")},
		models.ReqForexNews:   {global, d.news("/api/v4/forex_news", "symbol")},
		models.ReqGeneralNews: {global, d.news("/api/v4/general_news", "")},

		models.ReqMarketHours: {global, d.plain("/api/v3/is-the-market-open")},

		models.ReqComprehensiveAsset: {perSymbol, d.comprehensiveAsset},
		models.ReqComprehensiveMacro: {global, d.comprehensiveMacro},
	}
}

// symbolPath fetches a path templated with the symbol and keeps at most
// limit rows (0 keeps all, or the request's own limit when set).
func (d *Dispatcher) symbolPath(format string, limit int) fetchFunc {
	return func(ctx context.Context, c call) (interface{}, error) {
		v, err := d.md.Get(ctx, fmt.Sprintf(format, c.symbol), nil)
		if err != nil {
			return nil, err
		}
		return limitRows(v, orDefault(c.params.Limit, limit)), nil
	}
}

// symbolQuery fetches a path that takes the symbol as a query parameter.
// Paths carrying a %s verb get the symbol there instead.
func (d *Dispatcher) symbolQuery(path string, extra map[string]string) fetchFunc {
	return func(ctx context.Context, c call) (interface{}, error) {
		q := map[string]string{}
		for k, v := range extra {
			q[k] = v
		}
		if c.params.Limit > 0 {
			q["limit"] = strconv.Itoa(c.params.Limit)
		}
		p := path
		if strings.Contains(p, "%s") {
			p = fmt.Sprintf(p, c.symbol)
		} else {
			q["symbol"] = c.symbol
		}
		v, err := d.md.Get(ctx, p, q)
		if err != nil {
			return nil, err
		}
		return limitRows(v, c.params.Limit), nil
	}
}

// statement fetches period-based fundamentals (annual unless asked otherwise).
func (d *Dispatcher) statement(format string) fetchFunc {
	return func(ctx context.Context, c call) (interface{}, error) {
		q := map[string]string{
			"period": orDefaultStr(c.params.Period, "annual"),
			"limit":  strconv.Itoa(orDefault(c.params.Limit, defaultStatementRows)),
		}
		return d.md.Get(ctx, fmt.Sprintf(format, c.symbol), q)
	}
}

// listing fetches a market-wide list, filtered to the requested symbols.
func (d *Dispatcher) listing(path string) fetchFunc {
	return func(ctx context.Context, c call) (interface{}, error) {
		v, err := d.md.Get(ctx, path, nil)
		if err != nil {
			return nil, err
		}
		return limitRows(filterRows(v, c.symbols), orDefault(c.params.Limit, defaultRows)), nil
	}
}

func (d *Dispatcher) plain(path string) fetchFunc {
	return func(ctx context.Context, c call) (interface{}, error) {
		return d.md.Get(ctx, path, nil)
	}
}

func (d *Dispatcher) batchQuote(ctx context.Context, c call) (interface{}, error) {
	return d.md.Get(ctx, "/api/v3/quote/"+strings.Join(c.symbols, ","), nil)
}

func (d *Dispatcher) priceChange(ctx context.Context, c call) (interface{}, error) {
	return d.md.Get(ctx, "/api/v3/stock-price-change/"+strings.Join(c.symbols, ","), nil)
}

func (d *Dispatcher) intraday(ctx context.Context, c call) (interface{}, error) {
	mins := orDefault(c.params.LookbackMinutes, defaultIntradayMins)
	cutoff := c.ref.Add(-time.Duration(mins) * time.Minute)
	// the endpoint takes whole days; one extra day covers the session boundary
	days := mins/(24*60) + 1
	from, to := util.DateRange(c.ref, days)

	interval := orDefaultStr(c.params.Interval, "5min")
	v, err := d.md.Get(ctx, fmt.Sprintf("/api/v3/historical-chart/%s/%s", interval, c.symbol), map[string]string{"from": from, "to": to})
	if err != nil {
		return nil, err
	}
	return limitRows(since(v, cutoff), c.params.Limit), nil
}

// eodRows fetches daily bars covering lookbackDays before the reference date.
func (d *Dispatcher) eodRows(ctx context.Context, c call, lookbackDays int) ([]interface{}, error) {
	from, to := util.DateRange(c.ref, lookbackDays)
	v, err := d.md.Get(ctx, "/api/v3/historical-price-full/"+c.symbol, map[string]string{"from": from, "to": to})
	if err != nil {
		return nil, err
	}
	return rows(v), nil
}

func (d *Dispatcher) eod(ctx context.Context, c call) (interface{}, error) {
	r, err := d.eodRows(ctx, c, orDefault(c.params.LookbackDays, defaultEODDays))
	if err != nil {
		return nil, err
	}
	return limitRows(r, c.params.Limit), nil
}

func (d *Dispatcher) calendar(path string) fetchFunc {
	return func(ctx context.Context, c call) (interface{}, error) {
		// calendars look forward from the reference date, with one day of slack behind
		days := orDefault(c.params.LookbackDays, defaultCalendarDays)
		q := map[string]string{
			"from": c.ref.AddDate(0, 0, -1).Format(util.ProviderDate),
			"to":   c.ref.AddDate(0, 0, days).Format(util.ProviderDate),
		}
		v, err := d.md.Get(ctx, path, q)
		if err != nil {
			return nil, err
		}
		return limitRows(filterRows(v, c.symbols), orDefault(c.params.Limit, 50)), nil
	}
}

func (d *Dispatcher) treasury(ctx context.Context, c call) (interface{}, error) {
	from, to := util.DateRange(c.ref, orDefault(c.params.LookbackDays, 7))
	v, err := d.md.Get(ctx, "/api/v4/treasury", map[string]string{"from": from, "to": to})
	if err != nil {
		return nil, err
	}
	return limitRows(v, c.params.Limit), nil
}

func (d *Dispatcher) economicIndicator(ctx context.Context, c call) (interface{}, error) {
	from, to := util.DateRange(c.ref, orDefault(c.params.LookbackDays, 365))
	q := map[string]string{
		"name": orDefaultStr(c.params.IndicatorName, "GDP"),
		"from": from,
		"to":   to,
	}
	v, err := d.md.Get(ctx, "/api/v4/economic", q)
	if err != nil {
		return nil, err
	}
	return limitRows(v, orDefault(c.params.Limit, 12)), nil
}

var constituentPaths = map[string]string{
	"sp500":    "/api/v3/sp500_constituent",
	"nasdaq":   "/api/v3/nasdaq_constituent",
	"dowjones": "/api/v3/dowjones_constituent",
}

// constituents picks the index from params.indicatorName and filters the
// list to the requested symbols.
func (d *Dispatcher) constituents(ctx context.Context, c call) (interface{}, error) {
	name := strings.ToLower(orDefaultStr(c.params.IndicatorName, "sp500"))
	path, ok := constituentPaths[name]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", name)
	}
	v, err := d.md.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return limitRows(filterRows(v, c.symbols), c.params.Limit), nil
}

// news passes requested symbols to the endpoint's own ticker parameter.
func (d *Dispatcher) news(path, symbolParam string) fetchFunc {
	return func(ctx context.Context, c call) (interface{}, error) {
		q := map[string]string{"limit": strconv.Itoa(orDefault(c.params.Limit, 10))}
		if symbolParam != "" && len(c.symbols) > 0 {
			q[symbolParam] = strings.Join(c.symbols, ",")
		}
		if symbolParam == "" {
			q["page"] = "0"
		}
		v, err := d.md.Get(ctx, path, q)
		if err != nil {
			return nil, err
		}
		return limitRows(v, orDefault(c.params.Limit, 10)), nil
	}
}
