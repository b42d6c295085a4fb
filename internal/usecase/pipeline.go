package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"NewsDesk/internal/domain/models"
	drepo "NewsDesk/internal/domain/repository"
	dservice "NewsDesk/internal/domain/service"
	"NewsDesk/internal/service/llm"
	"NewsDesk/internal/service/symbols"
	"NewsDesk/pkg/config"
	"NewsDesk/pkg/logger"
	"NewsDesk/pkg/util"
)

var (
	// ErrEmptyBody rejects an item before any network call.
	ErrEmptyBody = errors.New("news body is empty")
	// ErrMalformedOutput marks model output that is not the expected shape.
	ErrMalformedOutput = errors.New("malformed model output")
)

// ParseError is a fatal per-item failure to parse one stage's output.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s output: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrMalformedOutput, e.Err} }

// Options controls one pipeline run.
type Options struct {
	ModelTier            string
	IncludeMarketContext bool
	SkipExecutor         bool
	UseDispatcher        bool
	// MarketContext, when set, is used as-is instead of fetching.
	MarketContext *models.MarketContext
}

// catalog is implemented by dispatchers that can list their request types.
type catalog interface {
	Types() []models.RequestType
}

// Pipeline runs the strategist and executor stages for one news item.
type Pipeline struct {
	chat       drepo.ChatModel
	dispatcher dservice.DataDispatcher
	marketCtx  dservice.MarketContextProvider
	tiers      map[string]config.TierConfig
	quality    QualityConfig
	metrics    drepo.Metrics
	log        *logger.Logger
	now        func() time.Time
}

// NewPipeline wires the stages. dispatcher and marketCtx may be nil.
func NewPipeline(
	chat drepo.ChatModel,
	dispatcher dservice.DataDispatcher,
	marketCtx dservice.MarketContextProvider,
	tiers map[string]config.TierConfig,
	quality QualityConfig,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		chat:       chat,
		dispatcher: dispatcher,
		marketCtx:  marketCtx,
		tiers:      tiers,
		quality:    quality,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

// MarketContext fetches a snapshot when a provider is configured.
func (p *Pipeline) MarketContext(ctx context.Context) *models.MarketContext {
	if p.marketCtx == nil {
		return nil
	}
	snap := p.marketCtx.Fetch(ctx)
	return &snap
}

// ResolveTier checks a tier name against the configured tiers.
func (p *Pipeline) ResolveTier(name string) (llm.Tier, error) {
	return llm.ResolveTier(p.tiers, name)
}

// Run analyses one item. Only an empty body, an unknown tier, a failed model
// call or unparsable model output fail the run; everything else degrades.
func (p *Pipeline) Run(ctx context.Context, news models.NewsInput, opts Options) (*models.AnalysisPipelineResult, error) {
	if strings.TrimSpace(news.Body) == "" {
		return nil, ErrEmptyBody
	}
	tier, err := p.ResolveTier(opts.ModelTier)
	if err != nil {
		return nil, err
	}

	start := p.now()
	log := p.log.With(logger.String("news_id", news.ID), logger.String("tier", tier.Name))

	var mctx *models.MarketContext
	switch {
	case opts.MarketContext != nil:
		snap := *opts.MarketContext
		mctx = &snap
	case opts.IncludeMarketContext:
		mctx = p.MarketContext(ctx)
	}

	// strategist
	stratStart := p.now()
	raw, err := p.chat.Generate(ctx, drepo.ChatRequest{
		Stage:       models.StageStrategist,
		Model:       tier.StrategistModel,
		System:      strategistSystem(p.requestTypes()),
		User:        strategistUser(news, mctx),
		Temperature: tier.StrategistTemperature,
		MaxTokens:   tier.StrategistMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("strategist: %w", err)
	}
	var strategy models.StrategistOutput
	if err := parseStage(models.StageStrategist, raw, &strategy, "informationNature"); err != nil {
		log.Warn("strategist output rejected", logger.String("raw", util.Truncate(raw, 300)), logger.Error(err))
		return nil, err
	}
	strategy.FillEmptyLists()
	stratMs := p.now().Sub(stratStart).Milliseconds()

	warnings := ValidateStrategy(&strategy, p.quality)
	EnsureAdviceBan(&strategy)

	result := &models.AnalysisPipelineResult{
		NewsID:        news.ID,
		Strategy:      strategy,
		MarketContext: mctx,
		Meta: models.ResultMeta{
			ModelTier:       tier.Name,
			StrategistModel: tier.StrategistModel,
		},
	}

	if opts.SkipExecutor {
		sc := StrategistConfidence(&strategy)
		result.QualityMetrics = models.QualityMetrics{
			StrategistConfidence: sc,
			OverallQuality:       sc,
			Warnings:             nonNil(warnings),
		}
		result.Meta.SkippedExecutor = true
		p.finish(result, start, stratMs, 0, 0)
		log.Info("strategist-only run complete", logger.Int("warnings", len(warnings)))
		return result, nil
	}

	// data
	var pack *models.CollectedPack
	var dataMs int64
	if opts.UseDispatcher && p.dispatcher != nil {
		if reqs := DataRequests(&strategy); len(reqs) > 0 {
			dataStart := p.now()
			collected := p.dispatcher.Execute(ctx, reqs, dservice.DispatchOptions{
				AllowedSymbols: allowedSymbols(&strategy, news),
				ReferenceDate:  referenceDate(news, p.now()),
			})
			pack = &collected
			dataMs = p.now().Sub(dataStart).Milliseconds()
			log.Debug("data collected",
				logger.Int("requests", collected.RequestCount),
				logger.Int("succeeded", collected.SuccessCount),
			)
		}
	}

	// executor
	execStart := p.now()
	raw, err = p.chat.Generate(ctx, drepo.ChatRequest{
		Stage:       models.StageExecutor,
		Model:       tier.ExecutorModel,
		System:      executorSystemPrompt,
		User:        executorUser(news, &strategy, mctx, pack),
		Temperature: tier.ExecutorTemperature,
		MaxTokens:   tier.ExecutorMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}
	var analysis models.ExecutorOutput
	if err := parseStage(models.StageExecutor, raw, &analysis, "executiveSummary", "assetImpacts"); err != nil {
		log.Warn("executor output rejected", logger.String("raw", util.Truncate(raw, 300)), logger.Error(err))
		return nil, err
	}
	execMs := p.now().Sub(execStart).Milliseconds()

	warnings = append(warnings, CapConviction(&strategy, &analysis)...)
	warnings = append(warnings, ValidateAnalysis(&strategy, &analysis, p.quality)...)

	result.Analysis = analysis
	result.DataPack = pack
	result.QualityMetrics = Quality(&strategy, &analysis, warnings, p.quality)
	result.Meta.ExecutorModel = tier.ExecutorModel
	p.finish(result, start, stratMs, dataMs, execMs)

	if p.metrics != nil {
		p.metrics.RecordQuality(result.QualityMetrics.OverallQuality)
	}
	log.Info("analysis complete",
		logger.Float64("quality", result.QualityMetrics.OverallQuality),
		logger.Int("warnings", len(warnings)),
		logger.Int64("total_ms", result.Timing.TotalMs),
	)
	return result, nil
}

func (p *Pipeline) finish(r *models.AnalysisPipelineResult, start time.Time, stratMs, dataMs, execMs int64) {
	end := p.now()
	r.Timing = models.Timing{
		StrategistMs: stratMs,
		DataMs:       dataMs,
		ExecutorMs:   execMs,
		TotalMs:      end.Sub(start).Milliseconds(),
	}
	r.Meta.CompletedAt = end.UTC()
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_total", end.Sub(start).Seconds())
	}
}

func (p *Pipeline) requestTypes() []models.RequestType {
	if c, ok := p.dispatcher.(catalog); ok {
		return c.Types()
	}
	return nil
}

// parseStage extracts the JSON object from raw model text and decodes it.
// The object must carry at least one of the required top-level keys.
func parseStage(stage, raw string, dst interface{}, required ...string) error {
	obj, err := llm.ExtractJSON(raw)
	if err != nil {
		return &ParseError{Stage: stage, Err: err}
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &keys); err != nil {
		return &ParseError{Stage: stage, Err: err}
	}
	found := len(required) == 0
	for _, k := range required {
		if _, ok := keys[k]; ok {
			found = true
			break
		}
	}
	if !found {
		return &ParseError{Stage: stage, Err: fmt.Errorf("missing %s", strings.Join(required, " or "))}
	}
	if err := json.Unmarshal([]byte(obj), dst); err != nil {
		return &ParseError{Stage: stage, Err: err}
	}
	return nil
}

// DataRequests collects the typed requests a plan declares. Nothing is
// fetched unless at least one fmpRequest exists; then every data need
// without one gets a plain quote request.
func DataRequests(s *models.StrategistOutput) []models.DataRequest {
	var typed, quotes []models.DataRequest
	for _, need := range s.RequiredData.DataRequests {
		if need.FmpRequest != nil && need.FmpRequest.Type != "" {
			req := *need.FmpRequest
			if len(req.Symbols) == 0 && need.Symbol != "" && perInstrument(req.Type) {
				req.Symbols = []string{need.Symbol}
			}
			typed = append(typed, req)
			continue
		}
		sym := need.TradingViewSymbol
		if sym == "" {
			sym = need.Symbol
		}
		if sym != "" {
			quotes = append(quotes, models.DataRequest{Type: models.ReqQuote, Symbols: []string{sym}})
		}
	}
	if len(typed) == 0 {
		return nil
	}
	return append(typed, quotes...)
}

// perInstrument reports whether a request type takes the need's symbol when
// the request names none.
func perInstrument(t models.RequestType) bool {
	switch t {
	case models.ReqEconomicCalendar, models.ReqTreasuryRates, models.ReqEconomicIndicator,
		models.ReqSectorPerformance, models.ReqMarketRiskPremium, models.ReqMarketHours,
		models.ReqGeneralNews, models.ReqComprehensiveMacro, models.ReqMarketGainers,
		models.ReqMarketLosers, models.ReqMostActive, models.ReqIPOCalendar:
		return false
	}
	return true
}

// allowedSymbols bounds the dispatcher to what the plan named plus the
// item's own tickers.
func allowedSymbols(s *models.StrategistOutput, news models.NewsInput) map[string]struct{} {
	named := make([]string, 0, len(s.RequiredData.DataRequests)*2)
	for _, need := range s.RequiredData.DataRequests {
		named = append(named, need.Symbol, need.TradingViewSymbol)
	}
	return symbols.AllowSet(named, news.Tickers)
}

func referenceDate(news models.NewsInput, now time.Time) time.Time {
	if news.PublishedAt != nil && !news.PublishedAt.IsZero() && news.PublishedAt.Before(now) {
		return *news.PublishedAt
	}
	return now
}
