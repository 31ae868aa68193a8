package relevance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mfenderov/hvlinks/internal/llm"
	"github.com/mfenderov/hvlinks/internal/metrics"
	"github.com/mfenderov/hvlinks/internal/processor"
	"github.com/mfenderov/hvlinks/internal/scraper"
)

// Estimator defaults.
const (
	DefaultFetchTimeout    = 5 * time.Second
	DefaultMaxContentChars = 3000
)

// EstimateStatus tags an Estimate.
type EstimateStatus int

const (
	EstimateOK EstimateStatus = iota
	EstimateDegraded
)

func (s EstimateStatus) String() string {
	if s == EstimateDegraded {
		return "degraded"
	}
	return "ok"
}

// Estimate is the outcome of scoring one page against a set of keywords.
// A degraded estimate carries BaseScore for Average and Max, no per-keyword
// scores, and the Cause of the degradation.
type Estimate struct {
	Status  EstimateStatus
	Average float64
	Max     float64
	Scores  map[string]float64
	Cause   error
}

// Degraded reports whether the model could not produce usable scores.
func (e Estimate) Degraded() bool {
	return e.Status == EstimateDegraded
}

func degraded(cause error) Estimate {
	return Estimate{
		Status:  EstimateDegraded,
		Average: BaseScore,
		Max:     BaseScore,
		Scores:  map[string]float64{},
		Cause:   cause,
	}
}

// PageFetcher retrieves a page for content analysis.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*scraper.Page, error)
}

// EstimatorConfig holds estimator configuration.
type EstimatorConfig struct {
	FetchTimeout    time.Duration
	MaxContentChars int
	Metrics         *metrics.Metrics // optional
}

// Estimator asks a language model how relevant a page is to each keyword.
type Estimator struct {
	config  EstimatorConfig
	fetcher PageFetcher
	model   llm.Completer
	content *processor.Processor
}

// ErrNoModel is the cause of estimates made without a configured model.
var ErrNoModel = errors.New("no language model configured")

// ErrNoKeywords is the cause of estimates requested without keywords.
var ErrNoKeywords = errors.New("no keywords to score")

// NewEstimator creates an Estimator. A nil model yields degraded estimates;
// a nil content processor defaults to plain text extraction.
func NewEstimator(config EstimatorConfig, fetcher PageFetcher, model llm.Completer, content *processor.Processor) *Estimator {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}
	if config.MaxContentChars <= 0 {
		config.MaxContentChars = DefaultMaxContentChars
	}
	if content == nil {
		content = processor.New(processor.ModeText)
	}
	return &Estimator{
		config:  config,
		fetcher: fetcher,
		model:   model,
		content: content,
	}
}

// Estimate scores the page at pageURL against keywords. It never fails:
// every problem yields a degraded estimate.
func (e *Estimator) Estimate(ctx context.Context, pageURL string, keywords []string) Estimate {
	est := e.estimate(ctx, pageURL, keywords)
	if est.Degraded() {
		slog.Warn("Relevance estimate degraded", "url", pageURL, "error", est.Cause)
	}
	e.config.Metrics.ObserveEstimate(est.Degraded())
	return est
}

func (e *Estimator) estimate(ctx context.Context, pageURL string, keywords []string) Estimate {
	keywords = nonBlank(keywords)
	if len(keywords) == 0 {
		return degraded(ErrNoKeywords)
	}
	if e.model == nil {
		return degraded(ErrNoModel)
	}

	content := e.pageContent(ctx, pageURL)

	answer, err := e.model.Complete(ctx, buildPrompt(pageURL, keywords, content))
	if err != nil {
		return degraded(fmt.Errorf("model call failed: %w", err))
	}
	slog.Debug("Model answer", "url", pageURL, "answer", answer)

	scores, err := parseScores(answer)
	if err != nil {
		return degraded(err)
	}

	var sum, highest float64
	for _, s := range scores {
		sum += s
		if s > highest {
			highest = s
		}
	}

	return Estimate{
		Status:  EstimateOK,
		Average: sum / float64(len(scores)),
		Max:     highest,
		Scores:  scores,
	}
}

// pageContent returns readable page text, or "" when the page cannot be
// fetched or processed. The model then judges by URL alone.
func (e *Estimator) pageContent(ctx context.Context, pageURL string) string {
	if e.fetcher == nil {
		return ""
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
	defer cancel()

	page, err := e.fetcher.Fetch(fetchCtx, pageURL)
	if err != nil {
		slog.Debug("Content fetch failed, scoring by URL", "url", pageURL, "error", err)
		return ""
	}

	text, err := e.content.Readable(pageURL, page.ContentType, string(page.Body), e.config.MaxContentChars)
	if err != nil {
		slog.Debug("Content processing failed, scoring by URL", "url", pageURL, "error", err)
		return ""
	}
	return text
}

func buildPrompt(pageURL string, keywords []string, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the relevance of the following webpage to the given keywords: %q.\n\n", strings.Join(keywords, ", "))
	b.WriteString(`If webpage content is available, use it to determine the main topic and its connection to each keyword. Otherwise, base the relevance on the URL structure.

For each keyword, return a relevance score between 0 and 1 based on the following guidelines:
- 0.0: Completely unrelated
- 0.2: Slightly related (keyword appears but seems incidental)
- 0.5: Somewhat relevant (keyword appears, but topic is broader)
- 0.8: Highly relevant (webpage strongly focuses on keyword)
- 1.0: Directly relevant (keyword is the main subject)

Return only a flat JSON object with keyword-score pairs and nothing else. Example format:
{"keyword1": 0.8, "keyword2": 0.3}

`)
	fmt.Fprintf(&b, "URL: %s\n", pageURL)
	if content != "" {
		fmt.Fprintf(&b, "\nWebpage Content:\n%s\n", content)
	}
	return b.String()
}

// parseScores decodes the model answer into per-keyword scores clamped to [0, 1].
func parseScores(answer string) (map[string]float64, error) {
	raw := stripFences(answer)

	var scores map[string]float64
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil, fmt.Errorf("failed to parse model answer: %w", err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("model answer has no scores")
	}

	for k, v := range scores {
		scores[k] = min(max(v, 0), 1)
	}
	return scores, nil
}

// stripFences removes a surrounding ``` code fence, with or without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}

func nonBlank(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
