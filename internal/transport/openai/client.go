package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/domain"
)

// DefaultTimeout bounds a single Azure OpenAI call.
const DefaultTimeout = 30 * time.Second

// Config holds Azure OpenAI settings for one deployment.
type Config struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Deployment string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func (c *Config) configured() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.APIKey) != ""
}

// newAzureClient builds a go-openai client routed to a single Azure deployment.
// Returns nil when endpoint or key is missing.
func newAzureClient(cfg *Config, defaultVersion string) *openai.Client {
	if !cfg.configured() {
		return nil
	}
	clientCfg := openai.DefaultAzureConfig(strings.TrimSpace(cfg.APIKey), strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"))
	clientCfg.APIVersion = cfg.APIVersion
	if clientCfg.APIVersion == "" {
		clientCfg.APIVersion = defaultVersion
	}
	deployment := cfg.Deployment
	clientCfg.AzureModelMapperFunc = func(string) string { return deployment }

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	clientCfg.HTTPClient = httpClient

	return openai.NewClientWithConfig(clientCfg)
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// parseAPIError extracts a readable error from the API response.
// All errors are wrapped with domain.ErrUnavailable: the gateway never
// distinguishes auth, rate-limit or transport failures for its callers.
func parseAPIError(prefix string, err error) error {
	wrap := domain.ErrUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractMessage(reqErr.Body); detail != "" {
			return fmt.Errorf("%s API error %d: %s: %w", prefix, reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("%s API error %d: %w", prefix, reqErr.HTTPStatusCode, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w", prefix, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("%s request failed: %w: %w", prefix, wrap, err)
}

// extractMessage reads error.message from an Azure error body.
func extractMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Error.Message
	}
	return ""
}
