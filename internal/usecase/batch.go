package usecase

import (
	"context"
	"fmt"
	"sync"

	"NewsDesk/internal/domain/models"
	"NewsDesk/internal/service/llm"
	"NewsDesk/pkg/logger"
)

// BatchOptions applies Options to every item. Concurrency above 1 runs that
// many items at once; results keep input order either way.
type BatchOptions struct {
	Options
	Concurrency int
}

type itemOutcome struct {
	result *models.AnalysisPipelineResult
	err    error
}

// RunBatch analyses items one pass each. A failing item is logged, left out
// of the results and counted; it never stops the batch.
func (p *Pipeline) RunBatch(ctx context.Context, items []models.NewsInput, opts BatchOptions) models.BatchResult {
	started := p.now()
	if opts.ModelTier == "" {
		opts.ModelTier = llm.DefaultTier
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	// One snapshot per batch, copied into each run.
	if opts.MarketContext == nil && opts.IncludeMarketContext {
		opts.MarketContext = p.MarketContext(ctx)
	}

	outcomes := make([]itemOutcome, len(items))
	if opts.Concurrency == 1 {
		for i := range items {
			outcomes[i] = p.runItem(ctx, items[i], opts.Options)
		}
	} else {
		sem := make(chan struct{}, opts.Concurrency)
		var wg sync.WaitGroup
		for i := range items {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				outcomes[i] = p.runItem(ctx, items[i], opts.Options)
			}(i)
		}
		wg.Wait()
	}

	out := models.BatchResult{
		Results: make([]models.AnalysisPipelineResult, 0, len(items)),
		Stats:   models.BatchStats{Total: len(items), FailedIDs: []string{}},
	}
	for i, o := range outcomes {
		if o.err != nil {
			out.Stats.Failed++
			out.Stats.FailedIDs = append(out.Stats.FailedIDs, items[i].ID)
			continue
		}
		out.Results = append(out.Results, *o.result)
	}
	out.Stats = p.batchStats(out.Results, out.Stats)

	finished := p.now()
	out.Meta = models.BatchMeta{
		StartedAt:     started.UTC(),
		FinishedAt:    finished.UTC(),
		DurationMs:    finished.Sub(started).Milliseconds(),
		ModelTier:     opts.ModelTier,
		ItemCount:     len(items),
		Concurrency:   opts.Concurrency,
		MarketContext: opts.MarketContext,
	}
	p.log.Info("batch complete",
		logger.Int("total", out.Stats.Total),
		logger.Int("succeeded", out.Stats.Succeeded),
		logger.Int("failed", out.Stats.Failed),
		logger.Int64("duration_ms", out.Meta.DurationMs),
	)
	return out
}

func (p *Pipeline) runItem(ctx context.Context, item models.NewsInput, opts Options) (o itemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o = itemOutcome{err: fmt.Errorf("panic: %v", r)}
		}
		outcome := "ok"
		if o.err != nil {
			outcome = "failed"
			p.log.Error("batch item failed", logger.String("news_id", item.ID), logger.Error(o.err))
		}
		if p.metrics != nil {
			p.metrics.RecordItem(outcome)
		}
	}()
	res, err := p.Run(ctx, item, opts)
	return itemOutcome{result: res, err: err}
}

func (p *Pipeline) batchStats(results []models.AnalysisPipelineResult, s models.BatchStats) models.BatchStats {
	s.Succeeded = len(results)
	if s.Succeeded == 0 {
		return s
	}
	var strat, exec, total, quality float64
	for i := range results {
		r := &results[i]
		switch r.Analysis.ExecutiveSummary.OverallSentiment {
		case models.SentimentBullish:
			s.Bullish++
		case models.SentimentBearish:
			s.Bearish++
		case models.SentimentNeutral:
			s.Neutral++
		case models.SentimentMixed:
			s.Mixed++
		}
		if p.tradeable(r) {
			s.Tradeable++
		}
		if r.Analysis.Confidence.Overall >= p.quality.HighConfidence {
			s.HighConfidence++
		}
		if r.Strategy.EpistemicAssessment.IncrementalInformationScore < p.quality.LowIncrementalInfo {
			s.LowIncrementalInfo++
		}
		strat += float64(r.Timing.StrategistMs)
		exec += float64(r.Timing.ExecutorMs)
		total += float64(r.Timing.TotalMs)
		quality += r.QualityMetrics.OverallQuality
	}
	n := float64(s.Succeeded)
	s.AvgStrategistMs = strat / n
	s.AvgExecutorMs = exec / n
	s.AvgTotalMs = total / n
	s.AvgQuality = round3(quality / n)
	return s
}

// tradeable: a clean result with at least one directional call of enough
// conviction.
func (p *Pipeline) tradeable(r *models.AnalysisPipelineResult) bool {
	if len(r.QualityMetrics.Warnings) > 0 {
		return false
	}
	for _, ai := range r.Analysis.AssetImpacts {
		if ai.Direction != models.DirectionNeutral && ai.Direction != "" && ai.Conviction >= p.quality.TradeableMinConviction {
			return true
		}
	}
	return false
}
