package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestLink_JSONFieldNames(t *testing.T) {
	link := Link{
		URL:            "http://example.org/budget2024.pdf",
		Type:           LinkTypeDocument,
		RelevanceScore: 1.0,
		Keywords:       []string{"budget"},
	}

	data, err := json.Marshal(link)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	jsonStr := string(data)
	expectedFields := []string{`"url"`, `"type":"document"`, `"relevance_score"`, `"keywords":["budget"]`}
	for _, field := range expectedFields {
		if !strings.Contains(jsonStr, field) {
			t.Errorf("JSON should contain %s, got: %s", field, jsonStr)
		}
	}
}

func TestLinkID(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"simple URL", "https://example.com/docs"},
		{"document URL", "https://example.com/files/report.pdf"},
		{"URL with query", "https://example.com/docs?page=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := LinkID(tt.url)

			if id != LinkID(tt.url) {
				t.Errorf("ID should be deterministic for %q", tt.url)
			}
			if len(id) != 16 {
				t.Errorf("ID length should be 16, got %d", len(id))
			}
		})
	}
}

func TestLinkID_UniqueForDifferentURLs(t *testing.T) {
	id1 := LinkID("https://example.com/page1")
	id2 := LinkID("https://example.com/page2")

	if id1 == id2 {
		t.Errorf("Different URLs should generate different IDs: %q", id1)
	}
}
