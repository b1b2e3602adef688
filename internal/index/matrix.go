package index

import (
	"fmt"

	"github.com/hyperjump/eiga/internal/features"
	"github.com/hyperjump/eiga/internal/models"
)

// MinMovies is the smallest corpus that can produce a neighbour.
const MinMovies = 2

// SimilarityMatrix is a dense, symmetric N×N matrix of cosine similarities.
// It is never modified after construction.
type SimilarityMatrix struct {
	n    int
	data []float64
}

// BuildMatrix computes pairwise cosine similarity between all feature rows.
// The upper triangle is computed and mirrored, so the result is exactly symmetric.
func BuildMatrix(fm *features.Matrix) (*SimilarityMatrix, error) {
	n := fm.Len()
	if n < MinMovies {
		return nil, &models.InsufficientDataError{Movies: n, Min: MinMovies}
	}
	m := &SimilarityMatrix{n: n, data: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s := CosineSimilarity(fm.Rows[i], fm.Rows[j])
			m.data[i*n+j] = s
			m.data[j*n+i] = s
		}
	}
	return m, nil
}

// NewSimilarityMatrix builds a matrix from rows, e.g. when loading a persisted artifact.
// Every row must have exactly len(rows) entries.
func NewSimilarityMatrix(rows [][]float64) (*SimilarityMatrix, error) {
	n := len(rows)
	m := &SimilarityMatrix{n: n, data: make([]float64, n*n)}
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), n)
		}
		copy(m.data[i*n:(i+1)*n], row)
	}
	return m, nil
}

// Size returns N.
func (m *SimilarityMatrix) Size() int {
	return m.n
}

// At returns M[i][j].
func (m *SimilarityMatrix) At(i, j int) float64 {
	return m.data[i*m.n+j]
}

// Row returns a copy of row i.
func (m *SimilarityMatrix) Row(i int) []float64 {
	out := make([]float64, m.n)
	copy(out, m.row(i))
	return out
}

func (m *SimilarityMatrix) row(i int) []float64 {
	return m.data[i*m.n : (i+1)*m.n]
}
