package inference

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/cardex/internal/domain"
	"github.com/kailas-cloud/cardex/internal/metrics"
)

// Throttle paces calls to a provider. A nil *Throttle never waits.
type Throttle struct {
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewThrottle allows rps calls per second with the given burst.
// rps <= 0 disables pacing.
func NewThrottle(rps float64, burst int, logger *zap.Logger) *Throttle {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(limit, burst), logger: logger}
}

// wait blocks for a token. A cancelled or expired context maps to
// domain.ErrUnavailable: the call is dropped, never retried.
func (t *Throttle) wait(ctx context.Context, capability string) error {
	if t == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		metrics.ObserveGateway(capability, metrics.OutcomeThrottled, 0)
		t.logger.Warn("gateway call dropped by throttle",
			zap.String("capability", capability), zap.Error(err))
		return fmt.Errorf("%s throttled: %w: %w", capability, domain.ErrUnavailable, err)
	}
	return nil
}

// ImageEmbedder paces an image embedding gateway.
type ImageEmbedder struct {
	inner    domain.ImageEmbedder
	throttle *Throttle
}

// NewImageEmbedder wraps inner with throttle.
func NewImageEmbedder(inner domain.ImageEmbedder, throttle *Throttle) *ImageEmbedder {
	return &ImageEmbedder{inner: inner, throttle: throttle}
}

// VectorizeImageURL implements domain.ImageEmbedder.
func (e *ImageEmbedder) VectorizeImageURL(ctx context.Context, url string) ([]float32, error) {
	if err := e.throttle.wait(ctx, "image_embedding"); err != nil {
		return nil, err
	}
	return e.inner.VectorizeImageURL(ctx, url) //nolint:wrapcheck // decorator
}

// VectorizeImage implements domain.ImageEmbedder.
func (e *ImageEmbedder) VectorizeImage(ctx context.Context, data []byte, contentType string) ([]float32, error) {
	if err := e.throttle.wait(ctx, "image_embedding"); err != nil {
		return nil, err
	}
	return e.inner.VectorizeImage(ctx, data, contentType) //nolint:wrapcheck // decorator
}

// TextEmbedder paces a text embedding gateway.
type TextEmbedder struct {
	inner    domain.TextEmbedder
	throttle *Throttle
}

// NewTextEmbedder wraps inner with throttle.
func NewTextEmbedder(inner domain.TextEmbedder, throttle *Throttle) *TextEmbedder {
	return &TextEmbedder{inner: inner, throttle: throttle}
}

// VectorizeText implements domain.TextEmbedder.
func (e *TextEmbedder) VectorizeText(ctx context.Context, text string) ([]float32, error) {
	if err := e.throttle.wait(ctx, "text_embedding"); err != nil {
		return nil, err
	}
	return e.inner.VectorizeText(ctx, text) //nolint:wrapcheck // decorator
}

// Captioner paces a captioning gateway.
type Captioner struct {
	inner    domain.Captioner
	throttle *Throttle
}

// NewCaptioner wraps inner with throttle.
func NewCaptioner(inner domain.Captioner, throttle *Throttle) *Captioner {
	return &Captioner{inner: inner, throttle: throttle}
}

// Caption implements domain.Captioner.
func (c *Captioner) Caption(ctx context.Context, imageURL string) (string, error) {
	if err := c.throttle.wait(ctx, "caption"); err != nil {
		return "", err
	}
	return c.inner.Caption(ctx, imageURL) //nolint:wrapcheck // decorator
}
