package cardex

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option customizes a Client created by New.
type Option func(*settings)

type settings struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	registerer prometheus.Registerer
}

func (s *settings) client() *http.Client {
	if s.httpClient != nil {
		return s.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

// WithHTTPClient replaces the default client, which times out after
// one minute.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// WithTimeout keeps the default transport but changes its timeout.
// It has no effect when WithHTTPClient is also given.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if s.httpClient == nil && d > 0 {
			s.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithAPIKey authenticates every request with a Bearer token.
func WithAPIKey(key string) Option {
	return func(s *settings) { s.apiKey = key }
}

// WithLogger logs one line per call: debug on success or no match, warn
// otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithPrometheus records call counts and latencies on reg.
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}
