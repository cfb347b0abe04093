package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidEmbedding is returned for embeddings that cannot be stored or
// compared.
var ErrInvalidEmbedding = errors.New("vector: invalid embedding")

// EncodeEmbedding encodes an embedding as a BLOB of little-endian IEEE 754
// float32 values without a length prefix; the dimension is derived from the
// BLOB size on decode. A nil or empty embedding encodes to a nil BLOB so it is
// stored as NULL.
func EncodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	if err := Validate(vec); err != nil {
		return nil, err
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b, nil
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not a multiple of 4", ErrInvalidEmbedding, len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// Validate rejects embeddings holding NaN or infinite components.
func Validate(vec []float32) error {
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrInvalidEmbedding, i, v)
		}
	}
	return nil
}
