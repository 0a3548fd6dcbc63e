package server

import "github.com/prometheus/client_golang/prometheus"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalguard_predictions_total",
			Help: "Predictions served, by result.",
		},
		[]string{"result"},
	)
	predictionRisk = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vitalguard_prediction_risk_score",
			Help:    "Distribution of served risk scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	validationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitalguard_validation_failures_total",
			Help: "Rejected prediction requests, by field.",
		},
		[]string{"field"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(predictionsTotal)
	prometheus.MustRegister(predictionRisk)
	prometheus.MustRegister(validationFailuresTotal)
}
