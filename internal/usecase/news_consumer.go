package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"NewsDesk/internal/domain/models"
	drepo "NewsDesk/internal/domain/repository"
	pkgkafka "NewsDesk/pkg/kafka"
)

// sinkAttempts bounds delivery of a finished result before the message is
// sent to the DLQ.
const sinkAttempts = 3

// NewsConsumer runs the pipeline for each NewsInput message read from Kafka
// and hands the result to the sink.
type NewsConsumer struct {
	topic       string
	pipeline    *Pipeline
	sink        *ResultProcessor
	opts        Options
	metrics     drepo.Metrics
	sinkBackoff time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewNewsConsumer(topic string, pipeline *Pipeline, sink *ResultProcessor, opts Options, metrics drepo.Metrics) *NewsConsumer {
	return &NewsConsumer{
		topic:       topic,
		pipeline:    pipeline,
		sink:        sink,
		opts:        opts,
		metrics:     metrics,
		sinkBackoff: 500 * time.Millisecond,
		sleep:       sleepCtx,
	}
}

func (h *NewsConsumer) Topic() string { return h.topic }

// Handle decodes one message. An empty body is dropped without error since
// retrying cannot fix it. Pipeline failures go back to the consumer's retry
// and DLQ path. Sink failures are retried here so the pipeline never runs
// twice for one message.
func (h *NewsConsumer) Handle(ctx context.Context, b []byte) error {
	var news models.NewsInput
	if err := json.Unmarshal(b, &news); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: %w", pkgkafka.ErrPermanent, err)
	}

	start := time.Now()
	res, err := h.pipeline.Run(ctx, news, h.opts)
	if err != nil {
		h.metrics.RecordItem("failed")
		if errors.Is(err, ErrEmptyBody) {
			h.metrics.RecordError("consumer_empty_body")
			return nil
		}
		if errors.Is(err, ErrMalformedOutput) {
			return fmt.Errorf("%w: %w", pkgkafka.ErrPermanent, err)
		}
		return err
	}
	h.metrics.RecordItem("ok")
	h.metrics.RecordLatency("consumer_item", time.Since(start).Seconds())

	if h.sink == nil {
		return nil
	}
	return h.deliver(ctx, res)
}

func (h *NewsConsumer) deliver(ctx context.Context, res *models.AnalysisPipelineResult) error {
	var err error
	for attempt := 0; attempt < sinkAttempts; attempt++ {
		if attempt > 0 {
			if serr := h.sleep(ctx, h.sinkBackoff<<(attempt-1)); serr != nil {
				return fmt.Errorf("%w: %w", pkgkafka.ErrPermanent, err)
			}
		}
		if err = h.sink.Process(ctx, res); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %w", pkgkafka.ErrPermanent, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ pkgkafka.MessageHandler = (*NewsConsumer)(nil)
