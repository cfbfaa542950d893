package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cardex/internal/db"
)

// ftSearch collects the arguments of one FT.SEARCH call.
type ftSearch struct {
	index    string
	query    string
	verbatim bool
	fields   []string
	sortAsc  string
	limit    int
	params   map[string]string
}

func (f *ftSearch) args() []string {
	args := []string{f.index, f.query}
	if f.verbatim {
		args = append(args, "VERBATIM")
	}
	if len(f.fields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(f.fields)))
		args = append(args, f.fields...)
	}
	if f.sortAsc != "" {
		args = append(args, "SORTBY", f.sortAsc, "ASC")
	}
	args = append(args, "LIMIT", "0", strconv.Itoa(f.limit))
	if len(f.params) > 0 {
		args = append(args, "PARAMS", strconv.Itoa(2*len(f.params)))
		for name, value := range f.params {
			args = append(args, name, value)
		}
	}
	return append(args, "DIALECT", "2")
}

func (s *Store) ftSearch(ctx context.Context, f *ftSearch) ([]rueidis.RedisMessage, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(f.args()...).Build()
	reply, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return reply, nil
}

// SearchKNN returns the q.K nearest neighbours of q.Vector in q.Field,
// closest first. Score carries the raw distance.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	f := &ftSearch{
		index:   q.IndexName,
		query:   fmt.Sprintf("*=>[KNN %d @%s $BLOB AS %s]", q.K, q.Field, db.DistanceField),
		sortAsc: db.DistanceField,
		limit:   q.K,
		params:  map[string]string{"BLOB": vectorToBytes(q.Vector)},
	}
	if len(q.ReturnFields) > 0 {
		f.fields = append(append(f.fields, q.ReturnFields...), db.DistanceField)
	}

	reply, err := s.ftSearch(ctx, f)
	if err != nil {
		return nil, err
	}
	return decodeSearchReply(reply, db.DistanceField)
}

// SearchText returns documents whose q.Field contains every term.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	terms := queryTerms(q.NonBlankTerms())
	if len(terms) == 0 {
		return &db.SearchResult{}, nil
	}

	reply, err := s.ftSearch(ctx, &ftSearch{
		index:    q.IndexName,
		query:    "@" + q.Field + ":(" + strings.Join(terms, " ") + ")",
		verbatim: q.Verbatim,
		fields:   q.ReturnFields,
		limit:    q.Limit,
	})
	if err != nil {
		return nil, err
	}
	return decodeSearchReply(reply, "")
}

// decodeSearchReply reads the RESP2 shape
// [total, key1, [f1, v1, ...], key2, [...], ...]. When scoreField is set,
// its value moves from Fields into Score.
func decodeSearchReply(reply []rueidis.RedisMessage, scoreField string) (*db.SearchResult, error) {
	res := &db.SearchResult{}
	if len(reply) == 0 {
		return res, nil
	}

	total, err := reply[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("search reply total: %w", err)
	}
	res.Total = int(total)

	for rest := reply[1:]; len(rest) >= 2; rest = rest[2:] {
		key, err := rest[0].ToString()
		if err != nil {
			continue
		}
		pairs, err := rest[1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: fieldMap(pairs)}
		if scoreField != "" {
			if raw, ok := entry.Fields[scoreField]; ok {
				if v, err := strconv.ParseFloat(raw, 64); err == nil {
					entry.Score = v
				}
				delete(entry.Fields, scoreField)
			}
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for ; len(pairs) >= 2; pairs = pairs[2:] {
		name, nameErr := pairs[0].ToString()
		value, valueErr := pairs[1].ToString()
		if nameErr == nil && valueErr == nil {
			m[name] = value
		}
	}
	return m
}

// isSeparator mirrors the index tokenizer: any rune other than a letter,
// digit or underscore splits a token.
func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

// queryTerms splits each term the way stored text was tokenized, so "ho-oh"
// requires both "ho" and "oh". Terms made only of separators vanish.
func queryTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		for _, piece := range strings.FieldsFunc(strings.ToLower(t), isSeparator) {
			out = append(out, escapeQuery(piece))
		}
	}
	return out
}

// escapeQuery backslash-escapes separator runes so a piece is read as one
// literal token.
func escapeQuery(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isSeparator(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func vectorToBytes(v []float32) string {
	return string(db.EncodeVector(v))
}
