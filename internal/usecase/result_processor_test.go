package usecase

import (
	"context"
	"testing"

	"NewsDesk/internal/domain/models"
	"NewsDesk/pkg/config"
	"NewsDesk/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	published []string
	stored    []string
	batches   int
	closed    bool
	err       error
}

func (m *memorySink) Publish(_ context.Context, r *models.AnalysisPipelineResult) error {
	m.published = append(m.published, r.NewsID)
	return m.err
}

func (m *memorySink) PublishBatch(_ context.Context, rs []models.AnalysisPipelineResult) error {
	m.batches++
	for _, r := range rs {
		m.published = append(m.published, r.NewsID)
	}
	return m.err
}

func (m *memorySink) Init(context.Context) error   { return nil }
func (m *memorySink) Health(context.Context) error { return nil }

func (m *memorySink) Store(_ context.Context, r *models.AnalysisPipelineResult) error {
	m.stored = append(m.stored, r.NewsID)
	return m.err
}

func (m *memorySink) StoreBatch(_ context.Context, rs []models.AnalysisPipelineResult) error {
	m.batches++
	for _, r := range rs {
		m.stored = append(m.stored, r.NewsID)
	}
	return m.err
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func TestResultProcessorRoutesByBackend(t *testing.T) {
	results := []models.AnalysisPipelineResult{{NewsID: "a"}, {NewsID: "b"}}

	t.Run("kafka", func(t *testing.T) {
		sink := &memorySink{}
		p := NewResultProcessor(sink, nil, metrics.Nop{}, config.SinkKafka)
		require.NoError(t, p.Process(context.Background(), &results[0]))
		require.NoError(t, p.ProcessBatch(context.Background(), results))
		assert.Equal(t, []string{"a", "a", "b"}, sink.published)
		assert.Equal(t, 1, sink.batches)
	})

	t.Run("clickhouse", func(t *testing.T) {
		sink := &memorySink{}
		p := NewResultProcessor(nil, sink, metrics.Nop{}, config.SinkClickHouse)
		require.NoError(t, p.ProcessBatch(context.Background(), results))
		assert.Equal(t, []string{"a", "b"}, sink.stored)
		p.Close()
		assert.True(t, sink.closed)
	})

	t.Run("none", func(t *testing.T) {
		p := NewResultProcessor(nil, nil, metrics.Nop{}, "")
		assert.Equal(t, config.SinkNone, p.Backend())
		assert.NoError(t, p.Process(context.Background(), &results[0]))
		assert.NoError(t, p.ProcessBatch(context.Background(), results))
	})
}

func TestResultProcessorErrors(t *testing.T) {
	p := NewResultProcessor(&memorySink{err: errUpstream}, nil, metrics.Nop{}, config.SinkKafka)
	err := p.Process(context.Background(), &models.AnalysisPipelineResult{NewsID: "x"})
	assert.ErrorIs(t, err, errUpstream)
	assert.Error(t, p.Process(context.Background(), nil))

	bad := NewResultProcessor(nil, nil, metrics.Nop{}, "s3")
	assert.Error(t, bad.Process(context.Background(), &models.AnalysisPipelineResult{}))
}
