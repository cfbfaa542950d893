package db

import (
	"slices"
	"testing"
)

func TestVectorCodec(t *testing.T) {
	in := []float32{0, -1.5, 3.25}
	b := EncodeVector(in)
	if len(b) != 12 {
		t.Fatalf("encoded %d bytes, want 12", len(b))
	}
	out, err := DecodeVector(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(in, out) {
		t.Errorf("decoded %v, want %v", out, in)
	}

	// 1.0 is 00 00 80 3f little-endian.
	one := EncodeVector([]float32{1})
	if one[2] != 0x80 || one[3] != 0x3f {
		t.Errorf("unexpected encoding % x", one)
	}

	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
