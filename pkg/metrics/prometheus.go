package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	articlesFetched *prometheus.CounterVec
	articlesStored  *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	stackDepth      *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		articlesFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspull_articles_fetched_total",
				Help: "Total number of articles returned by providers",
			},
			[]string{"source", "symbol"},
		),
		articlesStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspull_articles_stored_total",
				Help: "Total number of articles newly staged",
			},
			[]string{"source", "symbol"},
		),
		duplicates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspull_duplicates_total",
				Help: "Total number of articles skipped as duplicates",
			},
			[]string{"source", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newspull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		stackDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "newspull_stack_depth",
				Help: "Live entries in a symbol's news stack",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newspull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetched counts articles a provider returned.
func (r *Recorder) RecordFetched(source, symbol string, n int) {
	r.articlesFetched.WithLabelValues(source, symbol).Add(float64(n))
}

// RecordStored counts articles newly staged.
func (r *Recorder) RecordStored(source, symbol string, n int) {
	r.articlesStored.WithLabelValues(source, symbol).Add(float64(n))
}

// RecordDuplicates counts articles skipped as duplicates.
func (r *Recorder) RecordDuplicates(source, symbol string, n int) {
	r.duplicates.WithLabelValues(source, symbol).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordStackDepth records the live entry count for a symbol.
func (r *Recorder) RecordStackDepth(symbol string, depth int) {
	r.stackDepth.WithLabelValues(symbol).Set(float64(depth))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
