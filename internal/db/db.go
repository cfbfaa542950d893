// Package db defines the record store contract: plain keys, JSON documents and
// FT indexes searched by text or vector. internal/db/redis implements it.
package db

import (
	"context"
	"time"
)

// Store is everything the composition root needs from a store. Consumers
// declare their own narrower interfaces.
type Store interface {
	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()

	KVStore
	JSONStore
	IndexManager
	Searcher
}

// KVStore holds opaque values, used for caches.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// JSONStore holds JSON documents, one per key.
type JSONStore interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
}

// IndexManager creates and removes FT indexes. Dropping an index keeps the documents.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher queries FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchText(ctx context.Context, q *TextQuery) (*SearchResult, error)
}
