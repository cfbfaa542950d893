package search

import (
	"context"

	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
)

// Repository is the record store contract for retrieval.
type Repository interface {
	FindAllTokens(ctx context.Context, tokens []string, limit int) ([]domcard.Card, error)
	NearestByImage(ctx context.Context, vec []float32, k int) ([]domcard.Hit, error)
	NearestByCaption(ctx context.Context, vec []float32, k int) ([]domcard.Hit, error)
}

// ImageEmbedder vectorizes uploaded image bytes.
type ImageEmbedder interface {
	VectorizeImage(ctx context.Context, data []byte, contentType string) ([]float32, error)
}

// TextEmbedder vectorizes a free-text query.
type TextEmbedder interface {
	VectorizeText(ctx context.Context, text string) ([]float32, error)
}
