package cardex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client calls the cardex retrieval API.
type Client struct {
	baseURL string
	http    *http.Client
	apiKey  string
	track   *tracker
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cardex: invalid base url %q", baseURL)
	}

	var cfg settings
	for _, apply := range opts {
		apply(&cfg)
	}

	track, err := newTracker(cfg.logger, cfg.registerer)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    cfg.client(),
		apiKey:  cfg.apiKey,
		track:   track,
	}, nil
}

// TextSearch finds cards matching a free-text query.
// Returns an error matching ErrNoMatch when nothing is found.
func (c *Client) TextSearch(ctx context.Context, query string) (cards []Card, err error) {
	done := c.track.begin("search.text")
	defer func() { done(err) }()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrBadRequest)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/text-search?q="+url.QueryEscape(query), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("cardex: build request: %w", err)
	}
	return c.doCards(req)
}

// ImageSearch uploads an image and returns the matching card, if any.
// An empty result means no catalog card is similar enough.
func (c *Client) ImageSearch(
	ctx context.Context, image io.Reader, filename, contentType string,
) (cards []Card, err error) {
	done := c.track.begin("search.image")
	defer func() { done(err) }()

	if filename == "" {
		filename = "image"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("cardex: create part: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("cardex: read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("cardex: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image-search", &body)
	if err != nil {
		return nil, fmt.Errorf("cardex: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.doCards(req)
}

// Health reports the service status. A degraded service answers 200 and
// is returned without error; a 503 yields the report and an APIError.
func (c *Client) Health(ctx context.Context) (h HealthStatus, err error) {
	done := c.track.begin("health")
	defer func() { done(err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("cardex: build request: %w", err)
	}
	resp, err := c.send(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if decodeErr := json.NewDecoder(resp.Body).Decode(&h); decodeErr != nil && resp.StatusCode == http.StatusOK {
		return HealthStatus{}, fmt.Errorf("cardex: decode health: %w", decodeErr)
	}
	if resp.StatusCode != http.StatusOK {
		return h, &APIError{Status: resp.StatusCode, Code: h.Status}
	}
	return h, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cardex: %s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

func (c *Client) doCards(req *http.Request) ([]Card, error) {
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var cards []Card
	if err := json.NewDecoder(resp.Body).Decode(&cards); err != nil {
		return nil, fmt.Errorf("cardex: decode response: %w", err)
	}
	if cards == nil {
		cards = []Card{}
	}
	return cards, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(data) > 0 {
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil && !errors.Is(jsonErr, io.EOF) {
			apiErr.Message = strings.TrimSpace(string(data))
		}
	}
	return apiErr
}
