package usecase

import (
	"context"
	"fmt"
	"time"

	"NewsDesk/internal/domain/models"
	drepo "NewsDesk/internal/domain/repository"
	"NewsDesk/pkg/config"
)

// ResultProcessor routes finished analyses to the configured sink.
type ResultProcessor struct {
	pub     drepo.ResultPublisher
	store   drepo.ResultStorage
	metrics drepo.Metrics
	backend string
}

// NewResultProcessor creates a new ResultProcessor instance. pub or store may
// be nil when the backend does not use them.
func NewResultProcessor(
	pub drepo.ResultPublisher,
	store drepo.ResultStorage,
	metrics drepo.Metrics,
	backend string,
) *ResultProcessor {
	if backend == "" {
		backend = config.SinkNone
	}
	return &ResultProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Backend returns the configured sink name.
func (p *ResultProcessor) Backend() string { return p.backend }

// Process sends a single result to the configured backend.
func (p *ResultProcessor) Process(ctx context.Context, r *models.AnalysisPipelineResult) error {
	if r == nil {
		return fmt.Errorf("result is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case config.SinkNone:
		return nil
	case config.SinkKafka:
		err = p.pub.Publish(ctx, r)
	case config.SinkClickHouse:
		err = p.store.Store(ctx, r)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("sink")
		return fmt.Errorf("process result %s: %w", r.NewsID, err)
	}

	p.metrics.RecordResultSent(p.backend)
	p.metrics.RecordLatency("sink", time.Since(start).Seconds())
	return nil
}

// ProcessBatch sends every result of a batch in one call.
func (p *ResultProcessor) ProcessBatch(ctx context.Context, results []models.AnalysisPipelineResult) error {
	if len(results) == 0 || p.backend == config.SinkNone {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case config.SinkKafka:
		err = p.pub.PublishBatch(ctx, results)
	case config.SinkClickHouse:
		err = p.store.StoreBatch(ctx, results)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("sink_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for range results {
		p.metrics.RecordResultSent(p.backend)
	}
	p.metrics.RecordLatency("sink_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *ResultProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
