package intake

import (
	"context"

	dombatch "github.com/kailas-cloud/cardex/internal/domain/batch"
	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
)

// Source lists, reads and acknowledges batch artifacts.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, name string) ([]byte, error)
	Ack(ctx context.Context, name string) error
}

// Enricher runs the enrichment pipeline over parsed items.
type Enricher interface {
	Enrich(ctx context.Context, items []domcard.Parsed) (dombatch.Summary, error)
}
