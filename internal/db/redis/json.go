package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cardex/internal/db"
)

// JSONSet writes data at path of the document under key. Path "$" replaces the whole document.
func (s *Store) JSONSet(ctx context.Context, key, path string, data []byte) error {
	cmd := s.b().JsonSet().Key(key).Path(path).Value(rueidis.BinaryString(data)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return nil
}

// JSONGet reads the document under key, restricted to paths when given.
// A missing key yields db.ErrKeyNotFound.
func (s *Store) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	cmd := s.b().JsonGet().Key(key).Path(paths...).Build()
	raw, err := s.do(ctx, cmd).ToString()
	switch {
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	case err != nil:
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	case raw == "":
		return nil, db.ErrKeyNotFound
	}
	return []byte(raw), nil
}
