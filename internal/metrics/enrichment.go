package metrics

import "github.com/prometheus/client_golang/prometheus"

// Enrichment pipeline Prometheus metrics.
var (
	EnrichmentItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardex",
			Name:      "enrichment_items_total",
			Help:      "Batch items processed by final status",
		},
		[]string{"status"}, // ok / skipped / rejected / error
	)

	EnrichmentFieldsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardex",
			Name:      "enrichment_fields_total",
			Help:      "Derived fields attached to persisted records",
		},
		[]string{"field"},
	)

	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardex",
			Name:      "intake_batches_total",
			Help:      "Batch artifacts handled by outcome",
		},
		[]string{"outcome"}, // processed / noop / failed
	)
)

var domainMetricsRegistered bool

// RegisterDomainMetrics registers gateway and enrichment metrics. Must be called once from main.
func RegisterDomainMetrics() {
	if domainMetricsRegistered {
		return
	}
	prometheus.MustRegister(GatewayRequestsTotal)
	prometheus.MustRegister(GatewayRequestDuration)
	prometheus.MustRegister(QueryCacheTotal)
	prometheus.MustRegister(EnrichmentItemsTotal)
	prometheus.MustRegister(EnrichmentFieldsTotal)
	prometheus.MustRegister(BatchesTotal)
	domainMetricsRegistered = true
}
