// Package store persists scored links keyed by absolute URL.
package store

import (
	"context"
	"strings"

	"github.com/mfenderov/hvlinks/pkg/models"
)

// Store is a keyed link table.
//
// Upsert inserts each link or overwrites the type, score, and keywords of
// the existing record with the same URL. Within one batch the last
// occurrence of a URL wins. A batch is applied atomically.
//
// Query returns links scoring at least minScore, ordered by URL. A non-empty
// keyword further restricts results to links whose stored keywords contain
// it, ignoring case.
type Store interface {
	Upsert(ctx context.Context, links []models.Link) error
	Query(ctx context.Context, minScore float64, keyword string) ([]models.Link, error)
	Close() error
}

// JoinKeywords encodes keywords for storage. Keywords must not contain commas;
// the pipeline splits them before scoring.
func JoinKeywords(keywords []string) string {
	return strings.Join(keywords, ",")
}

// SplitKeywords decodes stored keywords. The empty string decodes to an empty slice.
func SplitKeywords(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}

// matchesKeyword reports whether the stored keyword string contains keyword, ignoring case.
func matchesKeyword(joined, keyword string) bool {
	if keyword == "" {
		return true
	}
	return strings.Contains(strings.ToLower(joined), strings.ToLower(keyword))
}
