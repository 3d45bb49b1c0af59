// Package metrics provides Prometheus metrics for imgfit.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transform outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeUnsupported = "unsupported"
	OutcomeNotFound    = "not_found"
	OutcomePassthrough = "passthrough"
)

var (
	// TransformsTotal counts matched requests by outcome.
	TransformsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgfit",
			Name:      "transforms_total",
			Help:      "Total number of scale requests by outcome",
		},
		[]string{"outcome"},
	)

	// TransformDuration measures decode, resize, encode and crop time.
	TransformDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "imgfit",
			Name:      "transform_duration_seconds",
			Help:      "Duration of image transforms in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// PostCropTotal counts post-crop passes by result.
	PostCropTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgfit",
			Name:      "postcrop_total",
			Help:      "Total number of post-crop passes by result",
		},
		[]string{"result"},
	)
)

// RecordTransform records a completed transform.
func RecordTransform(outcome string, seconds float64) {
	TransformsTotal.WithLabelValues(outcome).Inc()
	TransformDuration.Observe(seconds)
}

// RecordOutcome records a matched request that never reached the engine.
func RecordOutcome(outcome string) {
	TransformsTotal.WithLabelValues(outcome).Inc()
}

// RecordPostCrop records a post-crop attempt.
func RecordPostCrop(result string) {
	PostCropTotal.WithLabelValues(result).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
