package db

import (
	"errors"
	"strconv"
	"strings"
)

// IndexBuilder assembles an IndexDefinition field by field:
//
//	db.NewIndex("cards:pokemon:idx").
//		Prefix("cards:pokemon:").
//		NoStopwords().
//		Text("$.searchText").As("searchText").
//		VectorFlat("$.imageVector", 1024, db.DistanceCosine).As("imageVector").
//		Build()
type IndexBuilder struct {
	def IndexDefinition
	err error
}

// NewIndex starts a JSON index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix restricts the index to keys starting with one of prefixes.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// NoStopwords keeps every token searchable, including common words.
func (b *IndexBuilder) NoStopwords() *IndexBuilder {
	b.def.NoStopwords = true
	return b
}

// Text adds a full-text field.
func (b *IndexBuilder) Text(path string) *IndexBuilder {
	return b.field(IndexField{Path: path, Kind: FieldText})
}

// VectorFlat adds an exact (brute force) vector field.
func (b *IndexBuilder) VectorFlat(path string, dim int, distance DistanceMetric) *IndexBuilder {
	return b.field(IndexField{Path: path, Kind: FieldVector, Vector: VectorParams{
		Algorithm: VectorFlat,
		Dim:       dim,
		Distance:  distance,
	}})
}

// VectorHNSW adds an approximate vector field with graph degree m and build-time ef.
func (b *IndexBuilder) VectorHNSW(path string, dim int, distance DistanceMetric, m, efConstruct int) *IndexBuilder {
	return b.field(IndexField{Path: path, Kind: FieldVector, Vector: VectorParams{
		Algorithm:   VectorHNSW,
		Dim:         dim,
		Distance:    distance,
		M:           m,
		EFConstruct: efConstruct,
	}})
}

// As names the most recently added field.
func (b *IndexBuilder) As(alias string) *IndexBuilder {
	n := len(b.def.Fields)
	if n == 0 {
		if b.err == nil {
			b.err = errors.New("As(" + alias + ") called before any field")
		}
		return b
	}
	b.def.Fields[n-1].Alias = alias
	return b
}

func (b *IndexBuilder) field(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build returns a validated copy of the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if b.err != nil {
		return nil, errors.Join(ErrInvalidIndex, b.err)
	}
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	def.Prefixes = append([]string(nil), b.def.Prefixes...)
	def.Fields = append([]IndexField(nil), b.def.Fields...)
	return &def, nil
}

// String renders the definition roughly as FT.CREATE, for logs.
func (idx *IndexDefinition) String() string {
	var sb strings.Builder
	sb.WriteString("FT.CREATE " + idx.Name + " ON JSON")
	if len(idx.Prefixes) > 0 {
		sb.WriteString(" PREFIX " + strings.Join(idx.Prefixes, " "))
	}
	if idx.NoStopwords {
		sb.WriteString(" STOPWORDS 0")
	}
	sb.WriteString(" SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		sb.WriteString(" " + f.Path)
		if f.Alias != "" {
			sb.WriteString(" AS " + f.Alias)
		}
		switch f.Kind {
		case FieldText:
			sb.WriteString(" TEXT")
		case FieldVector:
			sb.WriteString(" VECTOR " + string(f.Vector.Algorithm) + " DIM " + strconv.Itoa(f.Vector.Dim))
		}
	}
	return sb.String()
}
