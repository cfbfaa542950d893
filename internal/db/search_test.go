package db

import (
	"errors"
	"slices"
	"testing"
)

func TestKNNQuery_Validate(t *testing.T) {
	ok := KNNQuery{IndexName: "i", Field: "v", Vector: []float32{1}, K: 1}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid query rejected: %v", err)
	}

	bad := ok
	bad.K = -1
	if err := bad.Validate(); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestTextQuery_NonBlankTerms(t *testing.T) {
	q := TextQuery{Terms: []string{" pikachu ", "", "  ", "base"}}
	if got := q.NonBlankTerms(); !slices.Equal(got, []string{"pikachu", "base"}) {
		t.Errorf("NonBlankTerms = %q", got)
	}

	q = TextQuery{IndexName: "i", Field: "f", Limit: 5, Terms: []string{"\t"}}
	if err := q.Validate(); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("blank terms: err = %v, want ErrInvalidQuery", err)
	}
}
