// Package index builds the pairwise similarity matrix and serves nearest-title queries.
package index

import "github.com/hyperjump/eiga/internal/features"

// CosineSimilarity returns dot(a, b) / (|a| |b|), or 0 when either vector is zero.
func CosineSimilarity(a, b features.Vector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return a.Dot(b) / (na * nb)
}
