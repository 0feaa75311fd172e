// Package vector holds the similarity math used to search the question corpus.
package vector

import (
	"errors"
	"math"
)

var (
	ErrEmptyVector       = errors.New("vectors cannot be empty")
	ErrDimensionMismatch = errors.New("vectors must have the same dimension")
)

// CosineSimilarity returns the cosine of the angle between a and b. A zero
// vector has similarity 0 with everything.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// Best scans candidates and returns the index and score of the one most
// similar to query. Candidates that cannot be compared (empty or of another
// dimension) are skipped. Index is -1 when nothing was comparable.
func Best(query []float32, candidates [][]float32) (int, float32) {
	best, bestScore := -1, float32(0)
	for i, c := range candidates {
		score, err := CosineSimilarity(query, c)
		if err != nil {
			continue
		}
		if best == -1 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}
