package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/logger"
	"github.com/kailas-cloud/cardex/internal/metrics"
)

const (
	capability = "image_embedding"

	// DefaultAPIVersion is the Computer Vision retrieval API version.
	DefaultAPIVersion = "2024-02-01"
	// DefaultModelVersion is the multimodal embedding model version.
	DefaultModelVersion = "2022-04-11"
	// DefaultTimeout bounds a single vectorize call.
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 512
)

// Config holds Azure AI Vision settings.
type Config struct {
	Endpoint     string
	Key          string
	APIVersion   string
	ModelVersion string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client vectorizes images through the Azure AI Vision retrieval API.
type Client struct {
	endpoint     string
	key          string
	apiVersion   string
	modelVersion string
	http         *http.Client
	logger       *zap.Logger
}

// New creates a vision client. An empty endpoint or key is accepted:
// every call then fails with domain.ErrNotConfigured.
func New(cfg *Config) *Client {
	c := &Client{
		endpoint:     strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		key:          strings.TrimSpace(cfg.Key),
		apiVersion:   cfg.APIVersion,
		modelVersion: cfg.ModelVersion,
		http:         cfg.HTTPClient,
		logger:       cfg.Logger,
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.modelVersion == "" {
		c.modelVersion = DefaultModelVersion
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Configured reports whether endpoint and key are set.
func (c *Client) Configured() bool {
	return c.endpoint != "" && c.key != ""
}

// VectorizeImageURL embeds the image served at imageURL.
func (c *Client) VectorizeImageURL(ctx context.Context, imageURL string) ([]float32, error) {
	body, err := json.Marshal(struct {
		URL string `json:"url"`
	}{URL: imageURL})
	if err != nil {
		return nil, fmt.Errorf("marshal vision request: %w", err)
	}
	return c.vectorize(ctx, body, "application/json")
}

// VectorizeImage embeds raw image bytes. An empty content type is sent as
// application/octet-stream.
func (c *Client) VectorizeImage(ctx context.Context, data []byte, contentType string) ([]float32, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.vectorize(ctx, data, contentType)
}

// HealthCheck reports whether the gateway is configured. No request is made:
// the retrieval API has no free probe endpoint.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.Configured() {
		return fmt.Errorf("vision: %w", domain.ErrNotConfigured)
	}
	return nil
}

func (c *Client) vectorize(ctx context.Context, body []byte, contentType string) ([]float32, error) {
	log := logger.FromContextOr(ctx, c.logger)

	if !c.Configured() {
		metrics.ObserveGateway(capability, metrics.OutcomeNotConfigured, 0)
		log.Error("vision not configured (endpoint/key)")
		return nil, fmt.Errorf("vision: %w: %w", domain.ErrUnavailable, domain.ErrNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(), bytes.NewReader(body))
	if err != nil {
		metrics.ObserveGateway(capability, metrics.OutcomeUnavailable, 0)
		return nil, fmt.Errorf("vision build request: %w: %w", domain.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	start := time.Now()
	vec, err := c.do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.ObserveGateway(capability, metrics.OutcomeUnavailable, duration)
		log.Warn("vision vectorize failed", zap.Error(err), zap.Duration("duration", duration))
		return nil, err
	}
	metrics.ObserveGateway(capability, metrics.OutcomeSuccess, duration)
	return vec, nil
}

func (c *Client) do(req *http.Request) ([]float32, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request: %w: %w", domain.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("vision API error %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(detail)), domain.ErrUnavailable)
	}

	var payload struct {
		Vector []float32 `json:"vector"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("vision decode response: %w: %w", domain.ErrUnavailable, err)
	}
	if len(payload.Vector) == 0 {
		return nil, fmt.Errorf("vision empty vector: %w", domain.ErrUnavailable)
	}
	return payload.Vector, nil
}

func (c *Client) requestURL() string {
	q := url.Values{}
	q.Set("model-version", c.modelVersion)
	q.Set("api-version", c.apiVersion)
	return c.endpoint + "/computervision/retrieval:vectorizeImage?" + q.Encode()
}
