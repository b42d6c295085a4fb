package models

import "time"

// RequestType names one entry in the market-data request catalog.
type RequestType string

const (
	// Quotes
	ReqQuote            RequestType = "quote"
	ReqBatchQuote       RequestType = "batch_quote"
	ReqCryptoQuotes     RequestType = "crypto_quotes"
	ReqForexQuotes      RequestType = "forex_quotes"
	ReqCommodityQuotes  RequestType = "commodity_quotes"
	ReqIndexQuotes      RequestType = "index_quotes"
	ReqETFQuotes        RequestType = "etf_quotes"
	ReqAftermarketQuote RequestType = "aftermarket_quote"
	ReqPriceChange      RequestType = "price_change"

	// Charts
	ReqIntradayChart        RequestType = "intraday_chart"
	ReqHistoricalEOD        RequestType = "historical_eod"
	ReqHistoricalVolatility RequestType = "historical_volatility"

	// Company fundamentals
	ReqCompanyProfile  RequestType = "company_profile"
	ReqKeyMetrics      RequestType = "key_metrics"
	ReqFinancialRatios RequestType = "financial_ratios"
	ReqIncomeStatement RequestType = "income_statement"
	ReqBalanceSheet    RequestType = "balance_sheet"
	ReqCashFlow        RequestType = "cash_flow"
	ReqFinancialGrowth RequestType = "financial_growth"
	ReqDCF             RequestType = "dcf"

	// Calendars
	ReqEarningsCalendar  RequestType = "earnings_calendar"
	ReqDividendCalendar  RequestType = "dividend_calendar"
	ReqIPOCalendar       RequestType = "ipo_calendar"
	ReqSplitCalendar     RequestType = "stock_split_calendar"
	ReqEconomicCalendar  RequestType = "economic_calendar"
	ReqEarningsSurprises RequestType = "earnings_surprises"

	// Analyst coverage
	ReqAnalystEstimates     RequestType = "analyst_estimates"
	ReqPriceTargetConsensus RequestType = "price_target_consensus"
	ReqAnalystRatings       RequestType = "analyst_ratings"
	ReqUpgradesDowngrades   RequestType = "upgrades_downgrades"

	// Macro
	ReqTreasuryRates     RequestType = "treasury_rates"
	ReqEconomicIndicator RequestType = "economic_indicator"
	ReqSectorPerformance RequestType = "sector_performance"
	ReqMarketRiskPremium RequestType = "market_risk_premium"

	// Technical indicators
	ReqTechnicalRSI       RequestType = "technical_rsi"
	ReqTechnicalSMA       RequestType = "technical_sma"
	ReqTechnicalEMA       RequestType = "technical_ema"
	ReqTechnicalATR       RequestType = "technical_atr"
	ReqTechnicalBollinger RequestType = "technical_bollinger"
	ReqTechnicalADX       RequestType = "technical_adx"
	ReqTechnicalWilliams  RequestType = "technical_williams"

	// Market breadth
	ReqMarketGainers RequestType = "market_gainers"
	ReqMarketLosers  RequestType = "market_losers"
	ReqMostActive    RequestType = "most_active"

	// Ownership
	ReqInsiderTrading       RequestType = "insider_trading"
	ReqInstitutionalHolders RequestType = "institutional_holders"

	// Constituents
	ReqIndexConstituents RequestType = "index_constituents"
	ReqETFHoldings       RequestType = "etf_holdings"

	// News feeds
	ReqStockNews   RequestType = "stock_news"
	ReqCryptoNews  RequestType = "crypto_news"
	ReqForexNews   RequestType = "forex_news"
	ReqGeneralNews RequestType = "general_news"

	ReqMarketHours RequestType = "market_hours"

	// Composites fan out to several of the above in parallel.
	ReqComprehensiveAsset RequestType = "comprehensive_asset"
	ReqComprehensiveMacro RequestType = "comprehensive_macro"
)

// IsPrice reports whether the request type returns market prices.
func (t RequestType) IsPrice() bool {
	switch t {
	case ReqQuote, ReqBatchQuote, ReqCryptoQuotes, ReqForexQuotes, ReqCommodityQuotes,
		ReqIndexQuotes, ReqETFQuotes, ReqAftermarketQuote, ReqPriceChange,
		ReqIntradayChart, ReqHistoricalEOD, ReqComprehensiveAsset:
		return true
	}
	return false
}

// DataRequest is one declarative data need. Symbols are optional for
// global request types and required for per-instrument ones.
type DataRequest struct {
	Type    RequestType   `json:"type"`
	Symbols []string      `json:"symbols,omitempty"`
	Params  RequestParams `json:"params,omitempty"`
}

type RequestParams struct {
	Interval        string `json:"interval,omitempty"`
	LookbackMinutes int    `json:"lookbackMinutes,omitempty"`
	LookbackDays    int    `json:"lookbackDays,omitempty"`
	Period          string `json:"period,omitempty"`
	Limit           int    `json:"limit,omitempty"`
	IndicatorName   string `json:"indicatorName,omitempty"`
	PeriodLength    int    `json:"periodLength,omitempty"`
	Timeframe       string `json:"timeframe,omitempty"`
}

// DataError records one failed request or symbol inside a pack.
type DataError struct {
	Type    RequestType `json:"type"`
	Symbol  string      `json:"symbol,omitempty"`
	Message string      `json:"message"`
}

// CollectedPack is the result of one dispatcher run. It is built fresh per
// pipeline run and not modified after it is handed to the executor stage.
type CollectedPack struct {
	GeneratedAt  time.Time                   `json:"generatedAt"`
	ByType       map[RequestType]interface{} `json:"byType"`
	Errors       []DataError                 `json:"errors"`
	RequestCount int                         `json:"requestCount"`
	SuccessCount int                         `json:"successCount"`
}
