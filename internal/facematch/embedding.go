package facematch

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Embeddings travel between the store, the CLI and the roster import as
// base64 of little-endian float32s. The encoding round-trips byte-for-byte,
// so a decoded embedding compares bit-identical to the original.

// EncodeEmbedding serializes an embedding into a storage-safe string.
func EncodeEmbedding(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeEmbedding deserializes an embedding and validates its dimension.
// Pass dim <= 0 to skip the dimension check.
func DecodeEmbedding(s string, dim int) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("decode embedding: %d bytes is not a float32 sequence", len(buf))
	}

	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}

	if dim > 0 && len(v) != dim {
		return nil, fmt.Errorf("decode embedding: expected %d dimensions, got %d", dim, len(v))
	}
	return v, nil
}
