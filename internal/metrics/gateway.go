package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Gateway outcome labels.
const (
	OutcomeSuccess       = "success"
	OutcomeUnavailable   = "unavailable"
	OutcomeNotConfigured = "not_configured"
	OutcomeNotApplicable = "not_applicable"
	OutcomeThrottled     = "throttled"
)

// Inference gateway Prometheus metrics, labelled by capability
// (image_embedding, text_embedding, caption).
var (
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardex",
			Name:      "gateway_requests_total",
			Help:      "Total number of inference gateway calls by outcome",
		},
		[]string{"capability", "outcome"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cardex",
			Name:      "gateway_request_duration_seconds",
			Help:      "Inference gateway call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"capability"},
	)

	QueryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardex",
			Name:      "query_vector_cache_total",
			Help:      "Text query vector cache lookups",
		},
		[]string{"result"}, // hit / miss
	)
)

// ObserveGateway records one gateway call. Duration is only observed for calls
// that reached the network.
func ObserveGateway(capability, outcome string, d time.Duration) {
	GatewayRequestsTotal.WithLabelValues(capability, outcome).Inc()
	if d > 0 {
		GatewayRequestDuration.WithLabelValues(capability).Observe(d.Seconds())
	}
}
