// Package embcache memoizes query vectors in the key-value store so a
// repeated text search skips the embedding gateway.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/cardex/internal/db"
	"github.com/kailas-cloud/cardex/internal/domain"
)

// KeyPrefix namespaces cached query vectors.
const KeyPrefix = "cardex:query_vec:"

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DefaultCallTimeout bounds a shared upstream call.
const DefaultCallTimeout = 30 * time.Second

// Embedder wraps a TextEmbedder with a read-through cache. Concurrent
// misses for the same query share one upstream call, which outlives the
// cancellation of any single caller.
type Embedder struct {
	next        domain.TextEmbedder
	kv          kv
	ttl         time.Duration
	callTimeout time.Duration
	lookups     *prometheus.CounterVec
	log         *zap.Logger
	flight      singleflight.Group
}

// New returns a caching Embedder. lookups takes a "result" label of hit or
// miss and may be nil. A zero ttl stores entries without expiry.
func New(next domain.TextEmbedder, store kv, lookups *prometheus.CounterVec, ttl time.Duration, log *zap.Logger) *Embedder {
	return &Embedder{next: next, kv: store, ttl: ttl, callTimeout: DefaultCallTimeout, lookups: lookups, log: log}
}

// WithCallTimeout changes the deadline of the shared upstream call.
// Non-positive values are ignored.
func (e *Embedder) WithCallTimeout(d time.Duration) *Embedder {
	if d > 0 {
		e.callTimeout = d
	}
	return e
}

// Key maps a query to its cache key. The text is hashed exactly as it will
// be embedded, so differently cased queries get their own vectors.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// VectorizeText serves the vector from the cache when possible. Cache
// failures are logged and never returned.
func (e *Embedder) VectorizeText(ctx context.Context, text string) ([]float32, error) {
	key := Key(text)
	if vec, ok := e.load(ctx, key); ok {
		e.count("hit")
		return vec, nil
	}
	e.count("miss")

	v, err, _ := e.flight.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.callTimeout)
		defer cancel()
		vec, err := e.next.VectorizeText(callCtx, text)
		if err != nil {
			return nil, err
		}
		e.save(callCtx, key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	return v.([]float32), nil
}

func (e *Embedder) load(ctx context.Context, key string) ([]float32, bool) {
	blob, err := e.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil, false
	case err != nil:
		e.log.Warn("query vector cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case len(blob) == 0:
		return nil, false
	}

	vec, err := db.DecodeVector(blob)
	if err != nil {
		e.log.Warn("query vector cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (e *Embedder) save(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := e.kv.SetWithTTL(ctx, key, db.EncodeVector(vec), e.ttl); err != nil {
		e.log.Warn("query vector cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (e *Embedder) count(result string) {
	if e.lookups != nil {
		e.lookups.WithLabelValues(result).Inc()
	}
}
