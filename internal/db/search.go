package db

import (
	"fmt"
	"strings"
)

// DistanceField is the alias under which KNN queries return the vector distance.
const DistanceField = "__distance"

// KNNQuery is the input for vector similarity search over one vector field.
// Entries come back ordered by ascending distance; Score holds the raw distance.
type KNNQuery struct {
	IndexName    string
	Field        string
	Vector       []float32
	K            int
	ReturnFields []string
}

// Validate reports a missing or non-positive parameter as ErrInvalidQuery.
func (q *KNNQuery) Validate() error {
	switch {
	case q.IndexName == "":
		return fmt.Errorf("%w: index name is required", ErrInvalidQuery)
	case q.Field == "":
		return fmt.Errorf("%w: vector field is required", ErrInvalidQuery)
	case len(q.Vector) == 0:
		return fmt.Errorf("%w: vector is required", ErrInvalidQuery)
	case q.K <= 0:
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidQuery, q.K)
	}
	return nil
}

// TextQuery is the input for a conjunctive full-text search: every term must
// be present in Field.
type TextQuery struct {
	IndexName    string
	Field        string
	Terms        []string
	Limit        int
	ReturnFields []string
	Verbatim     bool // disable stemming so terms match whole tokens only
}

// Validate reports a missing parameter, a non-positive limit or an
// all-blank term list as ErrInvalidQuery.
func (q *TextQuery) Validate() error {
	switch {
	case q.IndexName == "":
		return fmt.Errorf("%w: index name is required", ErrInvalidQuery)
	case q.Field == "":
		return fmt.Errorf("%w: text field is required", ErrInvalidQuery)
	case q.Limit <= 0:
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidQuery, q.Limit)
	case len(q.NonBlankTerms()) == 0:
		return fmt.Errorf("%w: at least one term is required", ErrInvalidQuery)
	}
	return nil
}

// NonBlankTerms returns the trimmed terms, dropping empty ones.
func (q *TextQuery) NonBlankTerms() []string {
	out := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
