package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"NewsDesk/internal/domain/models"
	"NewsDesk/pkg/config"
	pkgkafka "NewsDesk/pkg/kafka"
	"NewsDesk/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewsConsumerHandle(t *testing.T) {
	chat := stagedChat(mustJSON(t, plan()), mustJSON(t, decision()))
	sink := &memorySink{}
	h := NewNewsConsumer("news", newTestPipeline(chat, nil, nil),
		NewResultProcessor(sink, nil, metrics.Nop{}, config.SinkKafka), Options{}, metrics.Nop{})

	assert.Equal(t, "news", h.Topic())

	b, err := json.Marshal(news("k1"))
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))
	assert.Equal(t, []string{"k1"}, sink.published)
}

func TestNewsConsumerFailureClasses(t *testing.T) {
	t.Run("bad json is permanent", func(t *testing.T) {
		h := NewNewsConsumer("news", newTestPipeline(stagedChat("", ""), nil, nil), nil, Options{}, metrics.Nop{})
		err := h.Handle(context.Background(), []byte("{not json"))
		assert.ErrorIs(t, err, pkgkafka.ErrPermanent)
	})

	t.Run("empty body is dropped", func(t *testing.T) {
		chat := stagedChat("", "")
		h := NewNewsConsumer("news", newTestPipeline(chat, nil, nil), nil, Options{}, metrics.Nop{})
		b, _ := json.Marshal(models.NewsInput{ID: "e1"})
		assert.NoError(t, h.Handle(context.Background(), b))
		assert.Zero(t, chat.calls(""))
	})

	t.Run("malformed output is permanent", func(t *testing.T) {
		h := NewNewsConsumer("news", newTestPipeline(stagedChat("nope", ""), nil, nil), nil, Options{}, metrics.Nop{})
		b, _ := json.Marshal(news("m1"))
		err := h.Handle(context.Background(), b)
		assert.ErrorIs(t, err, pkgkafka.ErrPermanent)
		assert.ErrorIs(t, err, ErrMalformedOutput)
	})

	t.Run("upstream failure is retryable", func(t *testing.T) {
		h := NewNewsConsumer("news", newTestPipeline(failingOn(t, "for r1."), nil, nil), nil, Options{}, metrics.Nop{})
		b, _ := json.Marshal(news("r1"))
		err := h.Handle(context.Background(), b)
		assert.ErrorIs(t, err, errUpstream)
		assert.NotErrorIs(t, err, pkgkafka.ErrPermanent)
	})
}

type flakyPublisher struct {
	fails    int
	attempts int
	sent     []string
}

func (f *flakyPublisher) Publish(_ context.Context, r *models.AnalysisPipelineResult) error {
	f.attempts++
	if f.attempts <= f.fails {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, r.NewsID)
	return nil
}

func (f *flakyPublisher) PublishBatch(context.Context, []models.AnalysisPipelineResult) error {
	return nil
}

func (f *flakyPublisher) Close() error { return nil }

func TestNewsConsumerRetriesSinkWithoutRerunningPipeline(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		chat := stagedChat(mustJSON(t, plan()), mustJSON(t, decision()))
		pub := &flakyPublisher{fails: 2}
		h := NewNewsConsumer("news", newTestPipeline(chat, nil, nil),
			NewResultProcessor(pub, nil, metrics.Nop{}, config.SinkKafka), Options{}, metrics.Nop{})
		var waits []time.Duration
		h.sleep = func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}

		b, _ := json.Marshal(news("s1"))
		require.NoError(t, h.Handle(context.Background(), b))
		assert.Equal(t, []string{"s1"}, pub.sent)
		assert.Equal(t, 3, pub.attempts)
		assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, waits)
		assert.Equal(t, 2, chat.calls(""))
	})

	t.Run("gives up as permanent", func(t *testing.T) {
		chat := stagedChat(mustJSON(t, plan()), mustJSON(t, decision()))
		pub := &flakyPublisher{fails: 100}
		h := NewNewsConsumer("news", newTestPipeline(chat, nil, nil),
			NewResultProcessor(pub, nil, metrics.Nop{}, config.SinkKafka), Options{}, metrics.Nop{})
		h.sleep = func(context.Context, time.Duration) error { return nil }

		b, _ := json.Marshal(news("s2"))
		err := h.Handle(context.Background(), b)
		assert.ErrorIs(t, err, pkgkafka.ErrPermanent)
		assert.Contains(t, err.Error(), "broker unavailable")
		assert.Equal(t, sinkAttempts, pub.attempts)
		assert.Equal(t, 2, chat.calls(""))
	})
}
