package db

import (
	"fmt"
	"strings"
)

// DistanceMetric is the distance a vector field is searched by.
type DistanceMetric string

// Supported distance metrics.
const (
	DistanceCosine DistanceMetric = "COSINE" // 1 - cosine similarity, in [0, 2]
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
)

// VectorAlgorithm is the structure a vector field is indexed with.
type VectorAlgorithm string

// Supported vector algorithms.
const (
	VectorFlat VectorAlgorithm = "FLAT" // exact, brute force
	VectorHNSW VectorAlgorithm = "HNSW" // approximate graph
)

// FieldKind separates full-text fields from vector fields.
type FieldKind int

// Field kinds.
const (
	FieldText FieldKind = iota
	FieldVector
)

// VectorParams configures a FieldVector. Elements are always FLOAT32.
type VectorParams struct {
	Algorithm   VectorAlgorithm
	Dim         int
	Distance    DistanceMetric
	M           int // HNSW only, 0 = server default
	EFConstruct int // HNSW only, 0 = server default
}

// IndexField is one schema entry of a JSON index: Path is the JSONPath of
// the indexed value, Alias the attribute queries refer to.
type IndexField struct {
	Path   string
	Alias  string
	Kind   FieldKind
	Vector VectorParams
}

// Attribute returns the name the field is queried by.
func (f *IndexField) Attribute() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Path
}

// IndexDefinition describes an FT index over JSON documents under Prefixes.
type IndexDefinition struct {
	Name        string
	Prefixes    []string
	NoStopwords bool // STOPWORDS 0: common words stay searchable
	Fields      []IndexField
}

// Validate reports the first structural problem, wrapped in ErrInvalidIndex.
func (idx *IndexDefinition) Validate() error {
	if !validIdentifier(idx.Name) {
		return fmt.Errorf("%w: name %q must match [a-zA-Z0-9_:-]+", ErrInvalidIndex, idx.Name)
	}
	if len(idx.Fields) == 0 {
		return fmt.Errorf("%w: %s has no fields", ErrInvalidIndex, idx.Name)
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Path == "" {
			return fmt.Errorf("%w: field %d has no path", ErrInvalidIndex, i)
		}
		attr := f.Attribute()
		if _, dup := seen[attr]; dup {
			return fmt.Errorf("%w: duplicate attribute %s", ErrInvalidIndex, attr)
		}
		seen[attr] = struct{}{}

		switch f.Kind {
		case FieldText:
		case FieldVector:
			if f.Vector.Dim <= 0 {
				return fmt.Errorf("%w: vector %s needs a positive dimension", ErrInvalidIndex, attr)
			}
		default:
			return fmt.Errorf("%w: field %s has unknown kind %d", ErrInvalidIndex, attr, f.Kind)
		}
	}
	return nil
}

func validIdentifier(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '_', r == ':', r == '-':
			return false
		}
		return true
	}) < 0
}
