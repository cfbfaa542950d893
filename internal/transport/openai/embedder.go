package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/logger"
	"github.com/kailas-cloud/cardex/internal/metrics"
)

const (
	embeddingCapability = "text_embedding"

	// DefaultEmbeddingAPIVersion is the Azure OpenAI API version for embeddings.
	DefaultEmbeddingAPIVersion = "2023-05-15"
	// DefaultEmbeddingDeployment is the text embedding deployment name.
	DefaultEmbeddingDeployment = "text-embedding-ada-002"
)

// Embedder vectorizes text through an Azure OpenAI embedding deployment.
type Embedder struct {
	client     *openai.Client
	deployment string
	logger     *zap.Logger
}

// NewEmbedder creates a text embedder. Missing endpoint or key yields an
// embedder whose calls fail with domain.ErrNotConfigured.
func NewEmbedder(cfg *Config) *Embedder {
	c := *cfg
	if c.Deployment == "" {
		c.Deployment = DefaultEmbeddingDeployment
	}
	return &Embedder{
		client:     newAzureClient(&c, DefaultEmbeddingAPIVersion),
		deployment: c.Deployment,
		logger:     loggerOrNop(cfg.Logger),
	}
}

// VectorizeText implements domain.TextEmbedder. The vector is returned as received.
func (e *Embedder) VectorizeText(ctx context.Context, text string) ([]float32, error) {
	log := logger.FromContextOr(ctx, e.logger)

	if e.client == nil {
		metrics.ObserveGateway(embeddingCapability, metrics.OutcomeNotConfigured, 0)
		log.Error("text embedding not configured (endpoint/key)")
		return nil, fmt.Errorf("embedding: %w: %w", domain.ErrUnavailable, domain.ErrNotConfigured)
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.deployment),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		err = parseAPIError("embedding", err)
		metrics.ObserveGateway(embeddingCapability, metrics.OutcomeUnavailable, duration)
		log.Warn("text embedding failed", zap.Error(err), zap.Duration("duration", duration))
		return nil, err
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.ObserveGateway(embeddingCapability, metrics.OutcomeUnavailable, duration)
		log.Warn("text embedding returned no vector")
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrUnavailable)
	}

	metrics.ObserveGateway(embeddingCapability, metrics.OutcomeSuccess, duration)
	return resp.Data[0].Embedding, nil
}

// HealthCheck verifies configuration and API reachability via ListModels.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, e.client, "embedding")
}

func healthCheck(ctx context.Context, client *openai.Client, name string) error {
	if client == nil {
		return fmt.Errorf("%s: %w", name, domain.ErrNotConfigured)
	}
	if _, err := client.ListModels(ctx); err != nil {
		return fmt.Errorf("%s list models: %w", name, err)
	}
	return nil
}
