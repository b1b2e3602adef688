package models

import (
	"fmt"
	"strings"
)

const (
	// DefaultK is the number of recommendations returned when a request does not set K.
	DefaultK = 5
	// MaxK caps K when the caller does not configure a different limit.
	MaxK = 100
)

// RecommendRequest asks for the K titles most similar to Title.
type RecommendRequest struct {
	Title string `json:"title"`
	K     int    `json:"k,omitempty"`
}

// Validate ensures the request has a title and normalizes K into [1, maxK].
// defaultK and maxK fall back to DefaultK and MaxK when not positive.
func (r *RecommendRequest) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	if maxK <= 0 {
		maxK = MaxK
	}
	if r.K <= 0 {
		r.K = defaultK
	}
	if r.K > maxK {
		r.K = maxK
	}
	return nil
}
