package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mfenderov/hvlinks/pkg/models"
	bolt "go.etcd.io/bbolt"
)

var linksBucket = []byte("links")

// boltRecord is the stored value; the URL is the key.
type boltRecord struct {
	Type           models.LinkType `json:"type"`
	RelevanceScore float64         `json:"relevance_score"`
	Keywords       string          `json:"keywords"`
}

// Bolt is a Store backed by an embedded bbolt file.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the link database at path.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for link store: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open link store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(linksBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Upsert writes the batch in a single transaction.
func (s *Bolt) Upsert(ctx context.Context, links []models.Link) error {
	if len(links) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(linksBucket)
		for _, link := range links {
			value, err := json.Marshal(boltRecord{
				Type:           link.Type,
				RelevanceScore: link.RelevanceScore,
				Keywords:       JoinKeywords(link.Keywords),
			})
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", link.URL, err)
			}
			if err := b.Put([]byte(link.URL), value); err != nil {
				return fmt.Errorf("failed to put %s: %w", link.URL, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert links: %w", err)
	}
	return nil
}

// Query scans the bucket in key order, which is ascending URL.
func (s *Bolt) Query(ctx context.Context, minScore float64, keyword string) ([]models.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	links := []models.Link{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(linksBucket).ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode %s: %w", k, err)
			}
			if rec.RelevanceScore < minScore || !matchesKeyword(rec.Keywords, keyword) {
				return nil
			}
			links = append(links, models.Link{
				URL:            string(k),
				Type:           rec.Type,
				RelevanceScore: rec.RelevanceScore,
				Keywords:       SplitKeywords(rec.Keywords),
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	return links, nil
}

// Close closes the database file.
func (s *Bolt) Close() error {
	return s.db.Close()
}

var _ Store = (*Bolt)(nil)
