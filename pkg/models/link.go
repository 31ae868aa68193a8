package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// LinkType classifies a link by the resource it points at.
type LinkType string

const (
	LinkTypeDocument LinkType = "document"
	LinkTypeWebpage  LinkType = "webpage"
)

// Link is a persisted, URL-keyed relevance record.
type Link struct {
	URL            string   `json:"url"`
	Type           LinkType `json:"type"`
	RelevanceScore float64  `json:"relevance_score"`
	Keywords       []string `json:"keywords"`
}

// ScrapeRequest asks for the links of a single page to be scored and stored.
type ScrapeRequest struct {
	URL      string   `json:"url"`
	Keywords []string `json:"keywords"`
	UseGPT   bool     `json:"use_gpt"` // reserved, not consulted when scraping
}

// ScrapeResult summarizes a completed scrape.
type ScrapeResult struct {
	LinksProcessed int    `json:"links_processed"`
	Snapshot       string `json:"snapshot,omitempty"` // archive prefix, empty when archiving is off
}

// LinkQuery selects stored links and optionally re-scores them with the language model.
type LinkQuery struct {
	MinScore float64 `json:"min_score"`
	Keyword  string  `json:"keyword,omitempty"`
	UseGPT   bool    `json:"use_gpt"`
}

// LinkID creates a deterministic ID from a link URL.
// The ID is a SHA-256 hash (first 16 chars) of the URL.
func LinkID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
