package recommend

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/eiga/internal/models"
)

type suggestion struct {
	title    string
	distance int
	position int
}

// maxSuggestDistance scales the accepted edit distance with the query length.
func maxSuggestDistance(query string) int {
	return max(2, utf8.RuneCountInString(query)/3)
}

// SuggestTitles returns up to n catalog titles close to query, nearest first.
// Comparison ignores case and surrounding whitespace; a title containing the query
// counts as distance 1. Ties keep catalog order.
func SuggestTitles(query string, titles []models.TitleEntry, n int) []string {
	if n <= 0 {
		return nil
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	limit := maxSuggestDistance(q)
	seen := make(map[string]struct{})
	var found []suggestion
	for pos, t := range titles {
		if _, dup := seen[t.Title]; dup {
			continue
		}
		cand := strings.ToLower(t.Title)
		if diff := utf8.RuneCountInString(cand) - utf8.RuneCountInString(q); diff > limit || -diff > limit {
			// Too long or short to be a typo, but may still contain the query.
			if !strings.Contains(cand, q) {
				continue
			}
		}
		d := LevenshteinDistance(q, cand)
		if d > 1 && strings.Contains(cand, q) {
			d = 1
		}
		if d > limit {
			continue
		}
		seen[t.Title] = struct{}{}
		found = append(found, suggestion{title: t.Title, distance: d, position: pos})
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].distance < found[j].distance
	})
	if len(found) > n {
		found = found[:n]
	}
	out := make([]string, len(found))
	for i, s := range found {
		out[i] = s.title
	}
	return out
}
