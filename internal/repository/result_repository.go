package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"NewsDesk/internal/domain/models"
	"NewsDesk/internal/domain/repository"
	pkgkafka "NewsDesk/pkg/kafka"
)

const resultColumns = "completed_at, news_id, model_tier, strategist_model, executor_model, " +
	"classification, should_move, incremental_info, overall_sentiment, overall_confidence, " +
	"strategist_confidence, executor_adherence, overall_quality, warning_count, " +
	"strategist_ms, data_ms, executor_ms, total_ms, strategy_json, analysis_json, warnings_json"

const resultPlaceholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

// ResultsSchema returns the idempotent DDL for the results table.
func ResultsSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	completed_at DateTime64(3, 'UTC'),
	news_id String,
	model_tier LowCardinality(String),
	strategist_model LowCardinality(String),
	executor_model LowCardinality(String),
	classification LowCardinality(String),
	should_move UInt8,
	incremental_info Float64,
	overall_sentiment LowCardinality(String),
	overall_confidence Float64,
	strategist_confidence Float64,
	executor_adherence Float64,
	overall_quality Float64,
	warning_count UInt16,
	strategist_ms UInt32,
	data_ms UInt32,
	executor_ms UInt32,
	total_ms UInt32,
	strategy_json String,
	analysis_json String,
	warnings_json String
) ENGINE = ReplacingMergeTree(completed_at)
PARTITION BY toYYYYMM(completed_at)
ORDER BY (news_id)`, table)}
}

// ClickHouseStorage implements ResultStorage for ClickHouse.
type ClickHouseStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseStorage creates ClickHouse storage.
func NewClickHouseStorage(db *sql.DB, table string) repository.ResultStorage {
	return &ClickHouseStorage{db: db, table: table}
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	for _, stmt := range ResultsSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) Store(ctx context.Context, r *models.AnalysisPipelineResult) error {
	args, err := resultRow(r)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, resultColumns, resultPlaceholders)
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

// StoreBatch inserts results with multi-row VALUES to reduce round-trips.
func (s *ClickHouseStorage) StoreBatch(ctx context.Context, results []models.AnalysisPipelineResult) error {
	if len(results) == 0 {
		return nil
	}
	const chunkSize = 200
	for start := 0; start < len(results); start += chunkSize {
		end := start + chunkSize
		if end > len(results) {
			end = len(results)
		}

		values := make([]string, 0, end-start)
		var args []interface{}
		for i := start; i < end; i++ {
			row, err := resultRow(&results[i])
			if err != nil {
				return err
			}
			values = append(values, resultPlaceholders)
			args = append(args, row...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, resultColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // Managed by pkg
}

// resultRow flattens a result into the column order of resultColumns.
func resultRow(r *models.AnalysisPipelineResult) ([]interface{}, error) {
	strategy, err := json.Marshal(r.Strategy)
	if err != nil {
		return nil, fmt.Errorf("marshal strategy: %w", err)
	}
	analysis, err := json.Marshal(r.Analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	warnings, err := json.Marshal(r.QualityMetrics.Warnings)
	if err != nil {
		return nil, fmt.Errorf("marshal warnings: %w", err)
	}
	var shouldMove uint8
	if r.Strategy.MarketImpactLogic.ShouldMoveMarkets {
		shouldMove = 1
	}
	return []interface{}{
		r.Meta.CompletedAt,
		r.NewsID,
		r.Meta.ModelTier,
		r.Meta.StrategistModel,
		r.Meta.ExecutorModel,
		string(r.Strategy.InformationNature.Classification),
		shouldMove,
		r.Strategy.EpistemicAssessment.IncrementalInformationScore,
		string(r.Analysis.ExecutiveSummary.OverallSentiment),
		r.Analysis.Confidence.Overall,
		r.QualityMetrics.StrategistConfidence,
		r.QualityMetrics.ExecutorAdherence,
		r.QualityMetrics.OverallQuality,
		uint16(len(r.QualityMetrics.Warnings)),
		uint32(r.Timing.StrategistMs),
		uint32(r.Timing.DataMs),
		uint32(r.Timing.ExecutorMs),
		uint32(r.Timing.TotalMs),
		string(strategy),
		string(analysis),
		string(warnings),
	}, nil
}

// KafkaPublisher implements ResultPublisher for Kafka. Messages are keyed by
// news id so re-analyses of one item land on one partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, r *models.AnalysisPipelineResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.NewsID), r)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, results []models.AnalysisPipelineResult) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(results))
	for i := range results {
		msgs[i] = pkgkafka.Message{Key: []byte(results[i].NewsID), Value: &results[i]}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// PublishMessage lets the log collector ship digests through the same
// producer.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ repository.ResultPublisher = (*KafkaPublisher)(nil)
