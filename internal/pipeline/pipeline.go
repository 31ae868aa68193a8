// Package pipeline runs the scrape, score, and store flow and answers link queries.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mfenderov/hvlinks/internal/extract"
	"github.com/mfenderov/hvlinks/internal/metrics"
	"github.com/mfenderov/hvlinks/internal/processor"
	"github.com/mfenderov/hvlinks/internal/relevance"
	"github.com/mfenderov/hvlinks/internal/scraper"
	"github.com/mfenderov/hvlinks/internal/storage"
	"github.com/mfenderov/hvlinks/internal/store"
	"github.com/mfenderov/hvlinks/pkg/models"
)

// Archive keeps a copy of each scraped page.
type Archive interface {
	PutSnapshot(ctx context.Context, prefix string, page []byte, contentType string, meta storage.SnapshotMetadata) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithArchive enables best-effort snapshots of scraped pages.
func WithArchive(a Archive) Option {
	return func(p *Pipeline) { p.archive = a }
}

// WithMetrics records scrape outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline orchestrates fetching, extraction, scoring, and persistence.
type Pipeline struct {
	store     store.Store
	scraper   *scraper.Scraper
	estimator *relevance.Estimator
	archive   Archive          // nil if archiving disabled
	metrics   *metrics.Metrics // nil if metrics disabled
	now       func() time.Time
}

// New creates a Pipeline. A nil estimator scores every query-time
// estimate as degraded.
func New(s store.Store, sc *scraper.Scraper, est *relevance.Estimator, opts ...Option) *Pipeline {
	if est == nil {
		est = relevance.NewEstimator(relevance.EstimatorConfig{}, sc, nil, nil)
	}
	p := &Pipeline{
		store:     s,
		scraper:   sc,
		estimator: est,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Scrape fetches one page, scores each of its anchors against the request
// keywords, and upserts the results. A fetch failure is returned wrapping
// the *scraper.FetchError.
func (p *Pipeline) Scrape(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResult, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.Keywords = splitCommas(req.Keywords)
	slog.Info("scraping", "url", req.URL, "keywords", req.Keywords, "use_gpt", req.UseGPT)

	base, err := url.Parse(req.URL)
	if err != nil {
		p.metrics.ObserveScrape("fetch_error", 0)
		return nil, fmt.Errorf("failed to fetch URL: %w", &scraper.FetchError{URL: req.URL, Err: err})
	}

	page, err := p.scraper.Fetch(ctx, req.URL)
	if err != nil {
		p.metrics.ObserveScrape("fetch_error", 0)
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	anchors, err := extract.Links(string(page.Body), base)
	if err != nil {
		p.metrics.ObserveScrape("extract_error", 0)
		return nil, fmt.Errorf("failed to extract links: %w", err)
	}

	links := make([]models.Link, len(anchors))
	for i, a := range anchors {
		matched, score := relevance.ScoreLexical(a.Href, req.Keywords)
		if matched == nil {
			matched = []string{}
		}
		links[i] = models.Link{
			URL:            a.URL,
			Type:           a.Type,
			RelevanceScore: score,
			Keywords:       matched,
		}
	}

	if len(links) > 0 {
		if err := p.store.Upsert(ctx, links); err != nil {
			p.metrics.ObserveScrape("store_error", 0)
			return nil, fmt.Errorf("failed to save links: %w", err)
		}
	}

	result := &models.ScrapeResult{LinksProcessed: len(links)}
	if p.archive != nil {
		result.Snapshot = p.snapshot(ctx, base, page, req, links)
	}

	p.metrics.ObserveScrape("ok", len(links))
	slog.Info("scrape completed", "url", req.URL, "links", len(links))
	return result, nil
}

// splitCommas breaks comma-bearing keywords apart, since stored keyword
// lists are comma-joined.
func splitCommas(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		for part := range strings.SplitSeq(kw, ",") {
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// snapshot archives the page and returns its prefix, or "" if archiving failed.
func (p *Pipeline) snapshot(ctx context.Context, base *url.URL, page *scraper.Page, req models.ScrapeRequest, links []models.Link) string {
	now := p.now()
	prefix := storage.SnapshotPrefix(base.Host, now)

	linkURLs := make([]string, len(links))
	for i, l := range links {
		linkURLs[i] = l.URL
	}

	meta := storage.SnapshotMetadata{
		SourceURL:      req.URL,
		Title:          processor.ExtractTitle(string(page.Body)),
		Timestamp:      now.UTC().Format(time.RFC3339),
		LinksProcessed: len(links),
		Keywords:       req.Keywords,
		Links:          linkURLs,
	}

	if err := p.archive.PutSnapshot(ctx, prefix, page.Body, page.ContentType, meta); err != nil {
		slog.Warn("failed to archive page", "url", req.URL, "error", err)
		return ""
	}
	slog.Debug("page archived", "url", req.URL, "prefix", prefix)
	return prefix
}

// Query returns stored links matching q. With UseGPT each link's score is
// replaced, in the response only, by the estimator's average for the link's
// stored keywords. Links are estimated one at a time.
func (p *Pipeline) Query(ctx context.Context, q models.LinkQuery) ([]models.Link, error) {
	links, err := p.store.Query(ctx, q.MinScore, q.Keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}

	if !q.UseGPT {
		return links, nil
	}

	for i := range links {
		est := p.estimator.Estimate(ctx, links[i].URL, links[i].Keywords)
		links[i].RelevanceScore = est.Average
	}
	return links, nil
}
