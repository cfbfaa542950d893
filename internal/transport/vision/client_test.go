package vision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterDomainMetrics()
	os.Exit(m.Run())
}

func TestVectorizeImageURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/computervision/retrieval:vectorizeImage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("model-version"); got != DefaultModelVersion {
			t.Errorf("model-version = %q", got)
		}
		if got := r.URL.Query().Get("api-version"); got != DefaultAPIVersion {
			t.Errorf("api-version = %q", got)
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "vision-key" {
			t.Errorf("missing subscription key header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		var body struct {
			URL string `json:"url"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.URL != "https://assets.example/base1/58/high.png" {
			t.Errorf("url = %q", body.URL)
		}
		_, _ = w.Write([]byte(`{"modelVersion":"2022-04-11","vector":[0.25,-0.5,1]}`))
	}))
	defer server.Close()

	c := New(&Config{Endpoint: server.URL + "/", Key: "vision-key"})
	vec, err := c.VectorizeImageURL(context.Background(), "https://assets.example/base1/58/high.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.25 || vec[1] != -0.5 {
		t.Errorf("vector = %v, want values as received", vec)
	}
}

func TestVectorizeImage_Bytes(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/octet-stream" {
			t.Errorf("content type = %q, want octet-stream default", r.Header.Get("Content-Type"))
		}
		got, _ := io.ReadAll(r.Body)
		if string(got) != string(payload) {
			t.Errorf("body = %v", got)
		}
		_, _ = w.Write([]byte(`{"vector":[1]}`))
	}))
	defer server.Close()

	c := New(&Config{Endpoint: server.URL, Key: "k"})
	if _, err := c.VectorizeImage(context.Background(), payload, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVectorize_NotConfigured(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer server.Close()

	before := testutil.ToFloat64(metrics.GatewayRequestsTotal.WithLabelValues(capability, metrics.OutcomeNotConfigured))

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no endpoint", Config{Key: "k"}},
		{"no key", Config{Endpoint: server.URL}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(&tc.cfg)
			_, err := c.VectorizeImageURL(context.Background(), "https://x")
			if !errors.Is(err, domain.ErrNotConfigured) || !errors.Is(err, domain.ErrUnavailable) {
				t.Errorf("expected not configured + unavailable, got %v", err)
			}
			if c.HealthCheck(context.Background()) == nil {
				t.Error("health check should fail when unconfigured")
			}
		})
	}
	if calls != 0 {
		t.Errorf("made %d network calls without configuration", calls)
	}

	after := testutil.ToFloat64(metrics.GatewayRequestsTotal.WithLabelValues(capability, metrics.OutcomeNotConfigured))
	if after-before != 2 {
		t.Errorf("not_configured counter delta = %f, want 2", after-before)
	}
}

func TestVectorize_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":{"code":"InternalServerError"}}`, http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"vector":`))
		}},
		{"empty vector", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"vector":[]}`))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			c := New(&Config{Endpoint: server.URL, Key: "k"})
			_, err := c.VectorizeImage(context.Background(), []byte("img"), "image/png")
			if !errors.Is(err, domain.ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
			if errors.Is(err, domain.ErrNotConfigured) {
				t.Error("remote failure must not look like missing configuration")
			}
		})
	}
}

func TestVectorize_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := New(&Config{Endpoint: server.URL, Key: "k", Timeout: 50 * time.Millisecond})
	_, err := c.VectorizeImageURL(context.Background(), "https://x")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on timeout, got %v", err)
	}
}
