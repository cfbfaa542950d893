package cardex

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative"} {
		if _, err := New(u); err == nil {
			t.Errorf("New(%q) should fail", u)
		}
	}
}

func TestTextSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-search" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "dark charizard & co" {
			t.Errorf("q = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k1" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"base1-4","name":"Charizard","score":0.21},{"id":"b"}]`)
	}, WithAPIKey("k1"))

	cards, err := c.TextSearch(context.Background(), "dark charizard & co")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 2 || cards[0].Name != "Charizard" || cards[0].Score == nil || *cards[0].Score != 0.21 {
		t.Errorf("cards = %+v", cards)
	}
	if cards[1].Score != nil {
		t.Error("second card should have no score")
	}
}

func TestTextSearch_EmptyQuery(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) { calls++ })
	if _, err := c.TextSearch(context.Background(), "  "); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
	if calls != 0 {
		t.Error("blank query should not reach the server")
	}
}

func TestImageSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/image-search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "jpegbytes" || hdr.Filename != "photo.jpg" {
			t.Errorf("file = %q (%s)", data, hdr.Filename)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("content type = %q", ct)
		}
		_, _ = io.WriteString(w, `[]`)
	})

	cards, err := c.ImageSearch(context.Background(), strings.NewReader("jpegbytes"), "photo.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cards == nil || len(cards) != 0 {
		t.Errorf("cards = %#v, want empty non-nil slice", cards)
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		sentinel error
		code     string
	}{
		{http.StatusBadRequest, `{"code":"missing-file","message":"no file in request"}`, ErrBadRequest, "missing-file"},
		{http.StatusUnauthorized, `{"code":"unauthorized","message":"invalid api key"}`, ErrUnauthorized, "unauthorized"},
		{http.StatusNotFound, `{"code":"no-match","message":"no matching cards"}`, ErrNoMatch, "no-match"},
		{http.StatusBadGateway, `{"code":"vectorization-failed","message":"x"}`, ErrUpstream, "vectorization-failed"},
		{http.StatusInternalServerError, `{"code":"store-query","message":"x"}`, ErrServer, "store-query"},
		{http.StatusServiceUnavailable, `upstream connect error`, ErrServer, ""},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := c.TextSearch(context.Background(), "pikachu")
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("err = %v, want %v", err, tc.sentinel)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err %T is not *APIError", err)
			}
			if apiErr.Status != tc.status || apiErr.Code != tc.code {
				t.Errorf("apiErr = %+v", apiErr)
			}
			if tc.sentinel != ErrNoMatch && errors.Is(err, ErrNoMatch) {
				t.Error("unexpected ErrNoMatch match")
			}
		})
	}
}

func TestDecodeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"not":"an array"}`)
	})
	if _, err := c.TextSearch(context.Background(), "x"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestWithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "none":
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "no-match"})
		case "boom":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = io.WriteString(w, `[{"id":"a"}]`)
		}
	}, WithPrometheus(reg), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, _ = c.TextSearch(context.Background(), "pikachu")
	_, _ = c.TextSearch(context.Background(), "none")
	_, _ = c.TextSearch(context.Background(), "boom")

	for outcome, want := range map[string]float64{outcomeOK: 1, outcomeNoMatch: 1, outcomeUpstream: 1} {
		got := testutil.ToFloat64(c.track.metrics.calls.WithLabelValues("search.text", outcome))
		if got != want {
			t.Errorf("calls{outcome=%s} = %v, want %v", outcome, got, want)
		}
	}

	// A second client on the same registry reuses the collectors.
	c2, err := New("http://localhost", WithPrometheus(reg))
	if err != nil {
		t.Fatalf("second client: %v", err)
	}
	if c2.track.metrics.calls != c.track.metrics.calls {
		t.Error("second client should share the registered counter")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, outcomeOK},
		{&APIError{Status: http.StatusNotFound}, outcomeNoMatch},
		{&APIError{Status: http.StatusBadGateway}, outcomeUpstream},
		{&APIError{Status: http.StatusInternalServerError}, outcomeServer},
		{&APIError{Status: http.StatusBadRequest}, outcomeRejected},
		{&APIError{Status: http.StatusUnauthorized}, outcomeRejected},
		{errors.New("dial tcp: refused"), outcomeTransport},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestTracker_NilSafe(t *testing.T) {
	var tr *tracker
	tr.begin("noop")(nil)
}

func TestWithTimeout(t *testing.T) {
	c, err := New("http://localhost", WithTimeout(3*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if c.http.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", c.http.Timeout)
	}

	custom := &http.Client{}
	c, err = New("http://localhost", WithHTTPClient(custom), WithTimeout(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if c.http != custom || custom.Timeout != 0 {
		t.Error("WithTimeout must not override an explicit client")
	}

	c, _ = New("http://localhost")
	if c.http.Timeout != defaultTimeout {
		t.Errorf("default timeout = %v", c.http.Timeout)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus string
		wantErr    bool
	}{
		{"ok", http.StatusOK, `{"status":"ok","checks":{"store":"ok"}}`, "ok", false},
		{"degraded", http.StatusOK, `{"status":"degraded","checks":{"store":"ok","vision":"error"}}`, "degraded", false},
		{"down", http.StatusServiceUnavailable, `{"status":"error","checks":{"store":"error"}}`, "error", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			h, err := c.Health(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if h.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", h.Status, tt.wantStatus)
			}
			if tt.wantErr && !errors.Is(err, ErrServer) {
				t.Errorf("expected ErrServer, got %v", err)
			}
		})
	}
}
