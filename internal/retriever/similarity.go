package retriever

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, or 0 if
// either vector is empty or zero. Vectors of unequal length are compared on
// their common prefix.
func CosineSimilarity(a, b []float32) float64 {
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	if length == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := 0; i < length; i++ {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
