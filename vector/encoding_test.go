package vector

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeEmbedding_RoundTrip(t *testing.T) {
	orig := []float32{0.0, 1.5, -2.25, 3.75}

	b, err := EncodeEmbedding(orig)
	if err != nil {
		t.Fatalf("EncodeEmbedding failed: %v", err)
	}
	if len(b) != 16 {
		t.Fatalf("blob length = %d, want 16", len(b))
	}
	decoded, err := DecodeEmbedding(b)
	if err != nil {
		t.Fatalf("DecodeEmbedding failed: %v", err)
	}
	for i := range orig {
		if got, want := decoded[i], orig[i]; got != want {
			t.Fatalf("decoded[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestEncodeEmbedding_EmptyIsNull(t *testing.T) {
	b, err := EncodeEmbedding(nil)
	if err != nil || b != nil {
		t.Fatalf("EncodeEmbedding(nil) = %v, %v; want nil, nil", b, err)
	}
	vec, err := DecodeEmbedding(nil)
	if err != nil || vec != nil {
		t.Fatalf("DecodeEmbedding(nil) = %v, %v; want nil, nil", vec, err)
	}
}

func TestEmbeddingRejectsInvalid(t *testing.T) {
	if _, err := EncodeEmbedding([]float32{1, float32(math.NaN())}); !errors.Is(err, ErrInvalidEmbedding) {
		t.Fatalf("EncodeEmbedding(NaN) err = %v, want ErrInvalidEmbedding", err)
	}
	if _, err := EncodeEmbedding([]float32{float32(math.Inf(1))}); !errors.Is(err, ErrInvalidEmbedding) {
		t.Fatalf("EncodeEmbedding(+Inf) err = %v, want ErrInvalidEmbedding", err)
	}
	if _, err := DecodeEmbedding([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidEmbedding) {
		t.Fatalf("DecodeEmbedding(3 bytes) err = %v, want ErrInvalidEmbedding", err)
	}
}
