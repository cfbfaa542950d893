package card

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain"
	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
)

// Default embedding sizes: Azure Vision multimodal and text-embedding-ada-002.
const (
	DefaultImageDimensions   = 1024
	DefaultCaptionDimensions = 1536
)

// HNSW graph parameters used when the index is built with db.VectorHNSW.
const (
	hnswM           = 16
	hnswEFConstruct = 200
)

// store is the consumer interface for card documents (ISP).
type store interface {
	Ping(ctx context.Context) error
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo stores one JSON document per card under <database>:<container>:<id>.
type Repo struct {
	store      store
	prefix     string
	index      string
	imageDim   int
	captionDim int
	algorithm  db.VectorAlgorithm
}

// New creates a card repository for the given logical database and container.
func New(s store, database, container string) *Repo {
	prefix := fmt.Sprintf("%s:%s:", database, container)
	return &Repo{
		store:      s,
		prefix:     prefix,
		index:      prefix + "idx",
		imageDim:   DefaultImageDimensions,
		captionDim: DefaultCaptionDimensions,
		algorithm:  db.VectorFlat,
	}
}

// WithDimensions overrides the vector sizes used when creating the index.
// Non-positive values keep the defaults.
func (r *Repo) WithDimensions(image, caption int) *Repo {
	if image > 0 {
		r.imageDim = image
	}
	if caption > 0 {
		r.captionDim = caption
	}
	return r
}

// WithAlgorithm selects the vector index algorithm. Unknown values keep FLAT.
func (r *Repo) WithAlgorithm(algo db.VectorAlgorithm) *Repo {
	if algo == db.VectorHNSW {
		r.algorithm = algo
	}
	return r
}

// IndexName returns the FT index backing this repository.
func (r *Repo) IndexName() string { return r.index }

// Ping checks store connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// EnsureIndex creates the search index. An existing index is accepted as is.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := r.indexDefinition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", r.index, err)
	}
	return nil
}

// RecreateIndex drops the search index and builds it again with the current
// dimensions and algorithm. Stored documents are kept and re-indexed by the store.
// Reports whether a previous index existed.
func (r *Repo) RecreateIndex(ctx context.Context) (bool, error) {
	existed, err := r.store.IndexExists(ctx, r.index)
	if err != nil {
		return false, fmt.Errorf("probe index %s: %w", r.index, err)
	}
	if existed {
		if err := r.store.DropIndex(ctx, r.index); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return true, fmt.Errorf("drop index %s: %w", r.index, err)
		}
	}
	return existed, r.EnsureIndex(ctx)
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	b := db.NewIndex(r.index).
		Prefix(r.prefix).
		NoStopwords().
		Text("$." + domcard.FieldSearchText).As(domcard.FieldSearchText)
	b = r.vectorField(b, domcard.FieldImageVector, r.imageDim)
	b = r.vectorField(b, domcard.FieldCaptionVector, r.captionDim)
	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index %s: %w", r.index, err)
	}
	return def, nil
}

func (r *Repo) vectorField(b *db.IndexBuilder, field string, dim int) *db.IndexBuilder {
	if r.algorithm == db.VectorHNSW {
		return b.VectorHNSW("$."+field, dim, db.DistanceCosine, hnswM, hnswEFConstruct).As(field)
	}
	return b.VectorFlat("$."+field, dim, db.DistanceCosine).As(field)
}

// Upsert writes the whole record, replacing any previous document with the same id.
func (r *Repo) Upsert(ctx context.Context, rec *domcard.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("upsert: empty id: %w", domain.ErrValidation)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}
	key := r.key(rec.ID)
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

// Get returns the stored record by id.
func (r *Repo) Get(ctx context.Context, id string) (domcard.Record, error) {
	key := r.key(id)
	raw, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domcard.Record{}, domain.ErrRecordNotFound
		}
		return domcard.Record{}, fmt.Errorf("json.get %s: %w", key, err)
	}
	return parseJSONGetResult(raw)
}

// FindAllTokens returns cards whose search text contains every token.
func (r *Repo) FindAllTokens(ctx context.Context, tokens []string, limit int) ([]domcard.Card, error) {
	res, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.index,
		Field:        domcard.FieldSearchText,
		Terms:        tokens,
		Limit:        limit,
		ReturnFields: []string{"$"},
		Verbatim:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("search text %s: %w", r.index, err)
	}

	cards := make([]domcard.Card, 0, len(res.Entries))
	for _, e := range res.Entries {
		rec, ok := decodeEntry(e)
		if !ok {
			continue
		}
		cards = append(cards, rec.Card())
	}
	return cards, nil
}

// NearestByImage returns up to k cards closest to vec by image embedding.
func (r *Repo) NearestByImage(ctx context.Context, vec []float32, k int) ([]domcard.Hit, error) {
	return r.nearest(ctx, domcard.FieldImageVector, vec, k)
}

// NearestByCaption returns up to k cards closest to vec by caption embedding.
func (r *Repo) NearestByCaption(ctx context.Context, vec []float32, k int) ([]domcard.Hit, error) {
	return r.nearest(ctx, domcard.FieldCaptionVector, vec, k)
}

func (r *Repo) nearest(ctx context.Context, field string, vec []float32, k int) ([]domcard.Hit, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		Field:        field,
		Vector:       vec,
		K:            k,
		ReturnFields: []string{"$"},
	})
	if err != nil {
		return nil, fmt.Errorf("knn %s on %s: %w", field, r.index, err)
	}

	hits := make([]domcard.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		rec, ok := decodeEntry(e)
		if !ok {
			continue
		}
		hits = append(hits, domcard.Hit{Card: rec.Card(), Distance: e.Score})
	}
	return hits, nil
}

func (r *Repo) key(id string) string {
	return r.prefix + id
}
