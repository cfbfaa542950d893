package cardex

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded per call.
const (
	outcomeOK        = "ok"
	outcomeNoMatch   = "no_match"
	outcomeRejected  = "rejected"
	outcomeUpstream  = "upstream"
	outcomeServer    = "server"
	outcomeTransport = "transport"
)

type clientMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardex",
		Subsystem: "client",
		Name:      "calls_total",
		Help:      "API calls made by the client, by operation and outcome.",
	}, []string{"operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cardex",
		Subsystem: "client",
		Name:      "call_duration_seconds",
		Help:      "Round-trip time of client API calls.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	var err error
	if calls, err = adopt(reg, calls); err != nil {
		return nil, err
	}
	if latency, err = adopt(reg, latency); err != nil {
		return nil, err
	}
	return &clientMetrics{calls: calls, latency: latency}, nil
}

// adopt registers c, returning the collector already registered under the
// same descriptor when another client got there first.
func adopt[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var dup prometheus.AlreadyRegisteredError
	if !errors.As(err, &dup) {
		return c, fmt.Errorf("cardex: register metric: %w", err)
	}
	existing, ok := dup.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("cardex: metric registered as %T", dup.ExistingCollector)
	}
	return existing, nil
}

// outcome classifies a call result for metrics and log levels.
func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return outcomeTransport
	}
	switch {
	case errors.Is(err, ErrNoMatch):
		return outcomeNoMatch
	case errors.Is(err, ErrUpstream):
		return outcomeUpstream
	case apiErr.Status >= 500:
		return outcomeServer
	default:
		return outcomeRejected
	}
}

// tracker records one metric sample and one log line per call. A nil
// tracker does nothing.
type tracker struct {
	log     *slog.Logger
	metrics *clientMetrics
}

func newTracker(log *slog.Logger, reg prometheus.Registerer) (*tracker, error) {
	t := &tracker{log: log}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		t.metrics = m
	}
	return t, nil
}

// begin starts timing op. The returned func must be called with the
// call's final error.
func (t *tracker) begin(op string) func(error) {
	if t == nil {
		return func(error) {}
	}
	start := time.Now()
	return func(err error) {
		elapsed := time.Since(start)
		result := outcome(err)

		if t.metrics != nil {
			t.metrics.calls.WithLabelValues(op, result).Inc()
			t.metrics.latency.WithLabelValues(op).Observe(elapsed.Seconds())
		}
		if t.log == nil {
			return
		}
		attrs := []any{"op", op, "outcome", result, "elapsed", elapsed}
		switch result {
		case outcomeOK, outcomeNoMatch:
			t.log.Debug("cardex call", attrs...)
		default:
			t.log.Warn("cardex call failed", append(attrs, "error", err)...)
		}
	}
}
