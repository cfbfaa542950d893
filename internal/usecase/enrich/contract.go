package enrich

import (
	"context"

	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
)

// RecordStore persists enriched records.
type RecordStore interface {
	Ping(ctx context.Context) error
	Upsert(ctx context.Context, rec *domcard.Record) error
}
