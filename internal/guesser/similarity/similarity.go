// Package similarity implements cosine similarity and nearest-neighbor
// selection over the trained document matrix.
package similarity

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/retrieval-systems/tfidf-guesser/pkg/errors"
)

// Cosine returns the cosine similarity of a and b: their dot product divided
// by the product of their Euclidean norms. When either vector has zero norm
// there is no direction to compare, so the result is defined as 0. Iteration
// is bounded by the shorter slice.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Match pairs a matrix row index with its similarity score.
type Match struct {
	Row   int
	Score float64
}

// FindBestMatch scans every row of matrix and returns the index and score of
// the one most similar to query. Ties resolve to the lowest row index. A
// zero-row matrix fails with the empty-corpus error.
func FindBestMatch(query []float64, matrix [][]float64) (int, float64, error) {
	if len(matrix) == 0 {
		return 0, 0, fmt.Errorf("similarity search over zero rows: %w", apperrors.ErrEmptyCorpus)
	}
	bestRow := 0
	bestScore := Cosine(query, matrix[0])
	for row := 1; row < len(matrix); row++ {
		if score := Cosine(query, matrix[row]); score > bestScore {
			bestRow = row
			bestScore = score
		}
	}
	return bestRow, bestScore, nil
}

// TopMatches returns up to n matches ordered by score descending, row index
// ascending. The same tie rule as FindBestMatch, applied pairwise.
func TopMatches(query []float64, matrix [][]float64, n int) ([]Match, error) {
	if len(matrix) == 0 {
		return nil, fmt.Errorf("similarity search over zero rows: %w", apperrors.ErrEmptyCorpus)
	}
	matches := make([]Match, len(matrix))
	for row := range matrix {
		matches[row] = Match{Row: row, Score: Cosine(query, matrix[row])}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Row < matches[j].Row
	})
	if n > 0 && len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}
