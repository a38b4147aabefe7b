package memory

import (
	"encoding/binary"
	"math"
)

// EncodeVector packs an embedding as little-endian float64 bytes for storage.
func EncodeVector(v []float64) []byte {
	if len(v) == 0 {
		return nil
	}
	out := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(f))
	}
	return out
}

// DecodeVector is the inverse of EncodeVector. A truncated or empty payload
// decodes to nil.
func DecodeVector(b []byte) []float64 {
	if len(b) == 0 || len(b)%8 != 0 {
		return nil
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched dimensions or zero-magnitude vectors yield 0, never an error.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
