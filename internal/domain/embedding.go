package domain

import "context"

// ImageEmbedder vectorizes images, either by reference or by raw bytes.
type ImageEmbedder interface {
	VectorizeImageURL(ctx context.Context, url string) ([]float32, error)
	VectorizeImage(ctx context.Context, data []byte, contentType string) ([]float32, error)
}

// TextEmbedder vectorizes free text.
type TextEmbedder interface {
	VectorizeText(ctx context.Context, text string) ([]float32, error)
}

// Captioner describes an image in natural language.
// Returns ErrNotApplicable when the image is not in-scope artwork.
type Captioner interface {
	Caption(ctx context.Context, imageURL string) (string, error)
}

// HealthChecker verifies capability availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
