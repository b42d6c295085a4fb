package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	llmCalls     *prometheus.CounterVec
	dataRequests *prometheus.CounterVec
	items        *prometheus.CounterVec
	quality      prometheus.Histogram
	resultsSent  *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg. Tests pass a fresh
// registry to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsdesk_operation_duration_seconds",
				Help:    "Duration of pipeline stages and upstream calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"operation"},
		),
		llmCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_llm_calls_total",
				Help: "Model calls by stage, model and outcome",
			},
			[]string{"stage", "model", "outcome"},
		),
		dataRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_data_requests_total",
				Help: "Dispatcher requests by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		items: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_items_total",
				Help: "News items processed by outcome",
			},
			[]string{"outcome"},
		),
		quality: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "newsdesk_quality_score",
				Help:    "Overall quality score of completed analyses",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		resultsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_results_sent_total",
				Help: "Results handed to a sink backend",
			},
			[]string{"backend"},
		),
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordLLMCall counts one model call.
func (r *Recorder) RecordLLMCall(stage, model, outcome string) {
	r.llmCalls.WithLabelValues(stage, model, outcome).Inc()
}

// RecordDataRequest counts one dispatcher handler run.
func (r *Recorder) RecordDataRequest(reqType, outcome string) {
	r.dataRequests.WithLabelValues(reqType, outcome).Inc()
}

// RecordItem counts one processed news item.
func (r *Recorder) RecordItem(outcome string) {
	r.items.WithLabelValues(outcome).Inc()
}

// RecordQuality observes an overall quality score.
func (r *Recorder) RecordQuality(score float64) {
	r.quality.Observe(score)
}

// RecordResultSent counts a result delivered to a sink.
func (r *Recorder) RecordResultSent(backend string) {
	r.resultsSent.WithLabelValues(backend).Inc()
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordError(string)                   {}
func (Nop) RecordLatency(string, float64)        {}
func (Nop) RecordLLMCall(string, string, string) {}
func (Nop) RecordDataRequest(string, string)     {}
func (Nop) RecordItem(string)                    {}
func (Nop) RecordQuality(float64)                {}
func (Nop) RecordResultSent(string)              {}
