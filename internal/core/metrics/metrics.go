// Package metrics defines the Prometheus metrics mailscore exports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scoring metrics
var (
	RulesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailscore_rules_loaded",
			Help: "Number of score rules in the active store",
		},
	)

	MessagesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailscore_messages_scored_total",
			Help: "Total number of messages scored",
		},
	)

	ThresholdActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailscore_threshold_actions_total",
			Help: "Total number of threshold actions fired",
		},
		[]string{"action"},
	)

	RescoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailscore_rescore_duration_seconds",
			Help:    "Duration of full mailbox rescores in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PatternErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailscore_pattern_errors_total",
			Help: "Total number of patterns rejected by the compiler",
		},
		[]string{"source"},
	)
)

// API metrics
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailscore_requests_total",
			Help: "Total number of scoring API requests",
		},
		[]string{"method", "code"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailscore_request_duration_seconds",
			Help:    "Duration of scoring API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
