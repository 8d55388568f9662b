// Package similarity scores embedding vectors against each other.
package similarity

import "math"

// Cosine returns dot(a,b) / (|a|*|b|) computed in float64.
// ok is false when the vectors differ in length or either has zero magnitude;
// such pairs have no defined similarity and must not be ranked.
func Cosine(a, b []float32) (score float64, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}

	score = dot / (math.Sqrt(na) * math.Sqrt(nb))
	// rounding can push |score| a hair past 1
	return math.Max(-1, math.Min(1, score)), true
}
