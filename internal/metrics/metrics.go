package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ccsuggest_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ccsuggest_api_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Model metrics
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ccsuggest_predictions_total",
			Help: "Total number of predict calls by outcome",
		},
		[]string{"outcome"}, // "ok", "schema_mismatch", "no_model"
	)

	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ccsuggest_training_runs_total",
			Help: "Total number of dataset build + fit runs by result",
		},
		[]string{"trigger", "result"}, // trigger: "bootstrap", "retrain", "cli"
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ccsuggest_training_duration_seconds",
			Help:    "Duration of dataset build + fit in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	DatasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ccsuggest_dataset_rows",
			Help: "Rows in the dataset of the served model",
		},
	)

	ModelFeatures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ccsuggest_model_features",
			Help: "Feature columns expected by the served model",
		},
	)

	ModelLoadedTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ccsuggest_model_loaded_timestamp_seconds",
			Help: "Unix time at which the served model was swapped in",
		},
	)
)

// Training results.
const (
	ResultSuccess    = "success"
	ResultValidation = "validation_error"
	ResultError      = "error"
)

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordTraining records one training run.
func RecordTraining(trigger, result string, duration time.Duration) {
	TrainingRuns.WithLabelValues(trigger, result).Inc()
	TrainingDuration.Observe(duration.Seconds())
}

// RecordPrediction counts a predict call.
func RecordPrediction(outcome string) {
	PredictionsTotal.WithLabelValues(outcome).Inc()
}

// SetServedModel updates gauges after a model swap.
func SetServedModel(rows, features int, at time.Time) {
	DatasetRows.Set(float64(rows))
	ModelFeatures.Set(float64(features))
	ModelLoadedTimestamp.Set(float64(at.Unix()))
}
