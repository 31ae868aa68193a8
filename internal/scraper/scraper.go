package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/mfenderov/hvlinks/internal/metrics"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
// Some servers reject requests from default HTTP clients.
const DefaultUserAgent = "Mozilla/5.0 (compatible; hvlinks/1.0)"

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 5 * time.Second

// Config holds fetcher configuration.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Metrics   *metrics.Metrics // optional
}

// Page is the raw result of a successful fetch.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// FetchError reports a page that could not be retrieved: an invalid URL,
// a transport failure or timeout, or a non-success HTTP status.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Scraper fetches single pages. It never follows links.
type Scraper struct {
	config Config
}

// New creates a new Scraper with the given configuration.
func New(config Config) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	return &Scraper{config: config}
}

// Timeout returns the per-fetch timeout.
func (s *Scraper) Timeout() time.Duration {
	return s.config.Timeout
}

// Fetch issues one GET for pageURL and returns the response body.
// Any failure is returned as a *FetchError.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	start := time.Now()
	defer func() { s.config.Metrics.ObserveFetch(time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.AllowURLRevisit(),
		colly.UserAgent(s.config.UserAgent),
		colly.StdlibContext(ctx),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(s.config.Timeout)

	var (
		page       *Page
		statusCode int
		aborted    bool
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			slog.Debug("fetch cancelled", "url", r.URL.String())
			r.Abort()
			aborted = true
		}
	})

	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	slog.Debug("fetching page", "url", pageURL, "timeout", s.config.Timeout)

	if err := c.Visit(pageURL); err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: statusCode, Err: err}
	}

	if aborted {
		return nil, &FetchError{URL: pageURL, Err: ctx.Err()}
	}
	if page == nil {
		return nil, &FetchError{URL: pageURL, StatusCode: statusCode, Err: errors.New("no response received")}
	}
	if page.StatusCode < http.StatusOK || page.StatusCode >= http.StatusMultipleChoices {
		return nil, &FetchError{URL: pageURL, StatusCode: page.StatusCode, Err: errors.New(http.StatusText(page.StatusCode))}
	}

	slog.Debug("fetched page", "url", page.URL, "content_type", page.ContentType, "size", len(page.Body))
	return page, nil
}
