package core

import (
	"slices"
	"strings"
)

// SearchResult represents a retrieved memory item with a relevance score.
type SearchResult struct {
	ID      string
	Content string
	OwnerID string
	Score   float64
}

// SortResults orders results by score desc, then ID asc.
func SortResults(results []SearchResult) {
	slices.SortStableFunc(results, func(a, b SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
}

// FilterOwner drops every result that does not belong to ownerID.
func FilterOwner(results []SearchResult, ownerID string) []SearchResult {
	out := results[:0]
	for _, r := range results {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}

	return out
}

// Contents extracts the content strings in result order.
func Contents(results []SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Content)
	}

	return out
}
