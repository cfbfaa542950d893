package redis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/cardex/internal/db"
)

func TestSearchKNN_Success(t *testing.T) {
	s, c := mockStore(t)

	var sent []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			sent = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("cards:pokemon:a"),
			mock.RedisArray(
				mock.RedisString("$"), mock.RedisString(`{"id":"a"}`),
				mock.RedisString("__distance"), mock.RedisString("0.05"),
			),
			mock.RedisString("cards:pokemon:b"),
			mock.RedisArray(
				mock.RedisString("$"), mock.RedisString(`{"id":"b"}`),
				mock.RedisString("__distance"), mock.RedisString("0.3"),
			),
		)))

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "cards:pokemon:idx",
		Field:        "imageVector",
		Vector:       []float32{0.1, 0.2},
		K:            10,
		ReturnFields: []string{"$"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[0].Score != 0.05 {
		t.Errorf("score = %v, want raw distance 0.05", result.Entries[0].Score)
	}
	if _, ok := result.Entries[0].Fields[db.DistanceField]; ok {
		t.Error("distance field should be stripped from Fields")
	}
	if result.Entries[1].Fields["$"] != `{"id":"b"}` {
		t.Errorf("unexpected payload %q", result.Entries[1].Fields["$"])
	}

	cmd := strings.Join(sent, " ")
	for _, want := range []string{
		"*=>[KNN 10 @imageVector $BLOB AS __distance]",
		"RETURN 2 $ __distance",
		"SORTBY __distance ASC",
		"LIMIT 0 10",
		"DIALECT 2",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("command missing %q: %s", want, cmd)
		}
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	s, c := mockStore(t)

	c.EXPECT().
		Do(gomock.Any(), commandIs("FT.SEARCH")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx", Field: "v", Vector: []float32{1}, K: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(result.Entries))
	}
}

func TestSearchKNN_Error(t *testing.T) {
	s, c := mockStore(t)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx", Field: "v", Vector: []float32{1}, K: 5,
	})
	if dbOp(err) != db.OpSearch {
		t.Errorf("expected FT.SEARCH db.Error, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	tests := []struct {
		name string
		q    db.KNNQuery
	}{
		{"no index", db.KNNQuery{Field: "v", Vector: []float32{1}, K: 1}},
		{"no field", db.KNNQuery{IndexName: "i", Vector: []float32{1}, K: 1}},
		{"no vector", db.KNNQuery{IndexName: "i", Field: "v", K: 1}},
		{"zero k", db.KNNQuery{IndexName: "i", Field: "v", Vector: []float32{1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.SearchKNN(context.Background(), &tc.q); !errors.Is(err, db.ErrInvalidQuery) {
				t.Errorf("err = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestSearchText_Success(t *testing.T) {
	s, c := mockStore(t)

	var sent []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			sent = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("cards:pokemon:base1-58"),
			mock.RedisArray(mock.RedisString("$"), mock.RedisString(`{"id":"base1-58"}`)),
		)))

	result, err := s.SearchText(context.Background(), &db.TextQuery{
		IndexName:    "cards:pokemon:idx",
		Field:        "searchText",
		Terms:        []string{"pikachu", "base"},
		Limit:        100,
		ReturnFields: []string{"$"},
		Verbatim:     true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Key != "cards:pokemon:base1-58" {
		t.Fatalf("unexpected entries: %+v", result.Entries)
	}

	cmd := strings.Join(sent, " ")
	for _, want := range []string{"@searchText:(pikachu base)", "VERBATIM", "RETURN 1 $", "LIMIT 0 100"} {
		if !strings.Contains(cmd, want) {
			t.Errorf("command missing %q: %s", want, cmd)
		}
	}
}

func TestSearchText_Validation(t *testing.T) {
	s := &Store{}
	tests := []struct {
		name string
		q    db.TextQuery
	}{
		{"no index", db.TextQuery{Field: "f", Terms: []string{"a"}, Limit: 1}},
		{"no field", db.TextQuery{IndexName: "i", Terms: []string{"a"}, Limit: 1}},
		{"no terms", db.TextQuery{IndexName: "i", Field: "f", Limit: 1}},
		{"blank terms", db.TextQuery{IndexName: "i", Field: "f", Terms: []string{" "}, Limit: 1}},
		{"zero limit", db.TextQuery{IndexName: "i", Field: "f", Terms: []string{"a"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.SearchText(context.Background(), &tc.q); !errors.Is(err, db.ErrInvalidQuery) {
				t.Errorf("err = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"ho-oh"}, "ho oh"},
		{[]string{"mr.", "mime"}, "mr mime"},
		{[]string{"Farfetch'd"}, "farfetch d"},
		{[]string{"porygon-z", "base"}, "porygon z base"},
		{[]string{"flabébé", "base_1"}, "flabébé base_1"},
		{[]string{"!!", "--"}, ""},
	}
	for _, tt := range tests {
		if got := strings.Join(queryTerms(tt.in), " "); got != tt.want {
			t.Errorf("queryTerms(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeQuery(t *testing.T) {
	if got := escapeQuery(`a.b c`); got != `a\.b\ c` {
		t.Errorf("escapeQuery = %q", got)
	}
	if got := escapeQuery("flabébé"); got != "flabébé" {
		t.Errorf("letters must pass through, got %q", got)
	}
}

func TestSearchText_SplitsPunctuatedTerms(t *testing.T) {
	s, c := mockStore(t)

	var sent []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			sent = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	_, err := s.SearchText(context.Background(), &db.TextQuery{
		IndexName: "cards:pokemon:idx",
		Field:     "searchText",
		Terms:     []string{"Ho-Oh"},
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sent) < 3 || sent[2] != "@searchText:(ho oh)" {
		t.Errorf("query = %q, want %q", sent, "@searchText:(ho oh)")
	}
}

func TestSearchText_OnlySeparatorsSkipsServer(t *testing.T) {
	s, _ := mockStore(t)
	res, err := s.SearchText(context.Background(), &db.TextQuery{
		IndexName: "idx", Field: "searchText", Terms: []string{"&", "..."}, Limit: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Errorf("entries = %+v", res.Entries)
	}
}

func TestFTSearchArgs(t *testing.T) {
	f := &ftSearch{
		index:    "idx",
		query:    "@f:(a)",
		verbatim: true,
		fields:   []string{"$"},
		sortAsc:  "d",
		limit:    3,
		params:   map[string]string{"BLOB": "xx"},
	}
	got := strings.Join(f.args(), " ")
	want := "idx @f:(a) VERBATIM RETURN 1 $ SORTBY d ASC LIMIT 0 3 PARAMS 2 BLOB xx DIALECT 2"
	if got != want {
		t.Errorf("args = %q\nwant   %q", got, want)
	}

	minimal := strings.Join((&ftSearch{index: "idx", query: "*", limit: 1}).args(), " ")
	if minimal != "idx * LIMIT 0 1 DIALECT 2" {
		t.Errorf("minimal args = %q", minimal)
	}
}

func TestDecodeSearchReply_BadTotal(t *testing.T) {
	_, err := decodeSearchReply([]rueidis.RedisMessage{mock.RedisString("x")}, "")
	if err == nil {
		t.Error("expected error for non-integer total")
	}
}
