package relevance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mfenderov/hvlinks/internal/metrics"
	"github.com/mfenderov/hvlinks/internal/processor"
	"github.com/mfenderov/hvlinks/internal/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeCompleter struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

type fakeFetcher struct {
	page *scraper.Page
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*scraper.Page, error) {
	f.urls = append(f.urls, url)
	return f.page, f.err
}

func htmlPage(body string) *scraper.Page {
	return &scraper.Page{StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: []byte(body)}
}

func assertDegraded(t *testing.T, est Estimate) {
	t.Helper()
	if !est.Degraded() {
		t.Fatalf("expected degraded estimate, got %+v", est)
	}
	if est.Average != BaseScore || est.Max != BaseScore {
		t.Errorf("degraded scores = (%v, %v), want (%v, %v)", est.Average, est.Max, BaseScore, BaseScore)
	}
	if len(est.Scores) != 0 {
		t.Errorf("degraded Scores = %v, want empty", est.Scores)
	}
	if est.Cause == nil {
		t.Error("degraded estimate should carry a cause")
	}
}

func TestEstimator_Estimate_OK(t *testing.T) {
	model := &fakeCompleter{answer: `{"budget": 0.8, "finance": 0.4}`}
	fetcher := &fakeFetcher{page: htmlPage(`<html><body><script>x()</script><p>Annual budget overview</p></body></html>`)}
	est := NewEstimator(EstimatorConfig{}, fetcher, model, nil)

	got := est.Estimate(t.Context(), "https://city.gov/budget", []string{"budget", "finance"})

	if got.Degraded() {
		t.Fatalf("unexpected degraded estimate: %v", got.Cause)
	}
	if got.Average < 0.5999 || got.Average > 0.6001 {
		t.Errorf("Average = %v, want 0.6", got.Average)
	}
	if got.Max != 0.8 {
		t.Errorf("Max = %v, want 0.8", got.Max)
	}
	if got.Scores["finance"] != 0.4 {
		t.Errorf("Scores = %v", got.Scores)
	}

	if len(model.prompts) != 1 {
		t.Fatalf("model called %d times, want 1", len(model.prompts))
	}
	prompt := model.prompts[0]
	for _, want := range []string{"budget, finance", "URL: https://city.gov/budget", "Webpage Content:\nAnnual budget overview", "0.8: Highly relevant"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "x()") {
		t.Error("prompt should not contain script content")
	}
}

func TestEstimator_Estimate_FetchFailureScoresByURL(t *testing.T) {
	model := &fakeCompleter{answer: `{"budget": 0.5}`}
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	est := NewEstimator(EstimatorConfig{}, fetcher, model, nil)

	got := est.Estimate(t.Context(), "https://city.gov/budget.pdf", []string{"budget"})

	if got.Degraded() {
		t.Fatalf("fetch failure should not degrade: %v", got.Cause)
	}
	if got.Average != 0.5 {
		t.Errorf("Average = %v, want 0.5", got.Average)
	}
	if strings.Contains(model.prompts[0], "Webpage Content:") {
		t.Error("prompt should omit content section when fetch fails")
	}
}

func TestEstimator_Estimate_TruncatesContent(t *testing.T) {
	model := &fakeCompleter{answer: `{"a": 1}`}
	fetcher := &fakeFetcher{page: htmlPage("<p>" + strings.Repeat("z", 100) + "</p>")}
	est := NewEstimator(EstimatorConfig{MaxContentChars: 10}, fetcher, model, nil)

	est.Estimate(t.Context(), "https://example.com", []string{"a"})

	if !strings.Contains(model.prompts[0], "Webpage Content:\n"+strings.Repeat("z", 10)+"\n") {
		t.Errorf("content not truncated to 10 chars:\n%s", model.prompts[0])
	}
	if strings.Contains(model.prompts[0], strings.Repeat("z", 11)) {
		t.Error("content exceeds limit")
	}
}

func TestEstimator_Estimate_Degraded(t *testing.T) {
	tests := []struct {
		name     string
		model    *fakeCompleter
		keywords []string
		called   bool
	}{
		{"model error", &fakeCompleter{err: errors.New("rate limited")}, []string{"budget"}, true},
		{"invalid json", &fakeCompleter{answer: "Sure! budget is very relevant."}, []string{"budget"}, true},
		{"empty object", &fakeCompleter{answer: "{}"}, []string{"budget"}, true},
		{"non numeric values", &fakeCompleter{answer: `{"budget": "high"}`}, []string{"budget"}, true},
		{"no keywords", &fakeCompleter{answer: `{"x": 1}`}, nil, false},
		{"blank keywords", &fakeCompleter{answer: `{"x": 1}`}, []string{" ", ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := NewEstimator(EstimatorConfig{}, &fakeFetcher{err: errors.New("offline")}, tt.model, nil)
			got := est.Estimate(t.Context(), "https://example.com", tt.keywords)

			assertDegraded(t, got)
			if called := len(tt.model.prompts) > 0; called != tt.called {
				t.Errorf("model called = %v, want %v", called, tt.called)
			}
		})
	}
}

func TestEstimator_Estimate_NoModel(t *testing.T) {
	est := NewEstimator(EstimatorConfig{}, nil, nil, nil)
	got := est.Estimate(t.Context(), "https://example.com", []string{"budget"})

	assertDegraded(t, got)
	if !errors.Is(got.Cause, ErrNoModel) {
		t.Errorf("Cause = %v, want ErrNoModel", got.Cause)
	}
}

func TestEstimator_Estimate_ClampsScores(t *testing.T) {
	model := &fakeCompleter{answer: `{"high": 7, "low": -2}`}
	est := NewEstimator(EstimatorConfig{}, nil, model, nil)

	got := est.Estimate(t.Context(), "https://example.com", []string{"high", "low"})

	if got.Scores["high"] != 1 || got.Scores["low"] != 0 {
		t.Errorf("Scores = %v, want clamped to [0,1]", got.Scores)
	}
	if got.Average != 0.5 || got.Max != 1 {
		t.Errorf("Average/Max = %v/%v, want 0.5/1", got.Average, got.Max)
	}
}

func TestEstimator_Estimate_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	model := &fakeCompleter{answer: `{"a": 0.9}`}
	est := NewEstimator(EstimatorConfig{Metrics: m}, nil, model, nil)

	est.Estimate(t.Context(), "https://example.com", []string{"a"})
	est.Estimate(t.Context(), "https://example.com", nil)

	if got := testutil.ToFloat64(m.Estimates.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok estimates = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Estimates.WithLabelValues("degraded")); got != 1 {
		t.Errorf("degraded estimates = %v, want 1", got)
	}
}

func TestEstimator_Estimate_WithScraper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		w.Write([]byte("# Budget 2024\n\nSpending by department."))
	}))
	defer server.Close()

	model := &fakeCompleter{answer: "```json\n{\"budget\": 0.9}\n```"}
	fetcher := scraper.New(scraper.Config{Timeout: 2 * time.Second})
	est := NewEstimator(EstimatorConfig{FetchTimeout: 2 * time.Second}, fetcher, model, processor.New(processor.ModeMarkdown))

	got := est.Estimate(t.Context(), server.URL+"/budget.md", []string{"budget"})

	if got.Degraded() {
		t.Fatalf("unexpected degraded estimate: %v", got.Cause)
	}
	if got.Average != 0.9 {
		t.Errorf("Average = %v, want 0.9", got.Average)
	}
	if !strings.Contains(model.prompts[0], "# Budget 2024") {
		t.Errorf("markdown content should pass through unchanged:\n%s", model.prompts[0])
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```{\"a\": 1}```", `{"a": 1}`},
		{"  \n```json\n{\"a\": 1,\n\"b\": 2}\n```\n", "{\"a\": 1,\n\"b\": 2}"},
	}

	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
