package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mfenderov/hvlinks/internal/metrics"
	"github.com/mfenderov/hvlinks/internal/pipeline"
	"github.com/mfenderov/hvlinks/internal/scraper"
	"github.com/mfenderov/hvlinks/internal/store"
	"github.com/mfenderov/hvlinks/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

const page = `<html><body>
	<a href="/files/budget2024.pdf">Budget</a>
	<a href="/contact">Contact</a>
</body></html>`

type failingStore struct{}

func (failingStore) Upsert(context.Context, []models.Link) error { return errors.New("disk full") }
func (failingStore) Query(context.Context, float64, string) ([]models.Link, error) {
	return nil, errors.New("disk full")
}
func (failingStore) Close() error { return nil }

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	t.Cleanup(site.Close)
	return site
}

func newTestServer(t *testing.T, s store.Store) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	if s == nil {
		bolt, err := store.OpenBolt(filepath.Join(t.TempDir(), "links.db"))
		if err != nil {
			t.Fatalf("OpenBolt() error = %v", err)
		}
		t.Cleanup(func() { bolt.Close() })
		s = bolt
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sc := scraper.New(scraper.Config{Timeout: 2 * time.Second, Metrics: m})
	p := pipeline.New(s, sc, nil, pipeline.WithMetrics(m))

	server := httptest.NewServer(NewServer(Config{Gatherer: reg}, p).Handler())
	t.Cleanup(server.Close)
	return server, reg
}

func postScrape(t *testing.T, apiURL, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(apiURL+"/scrape", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /scrape error = %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func getLinks(t *testing.T, apiURL, query string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(apiURL + "/links" + query)
	if err != nil {
		t.Fatalf("GET /links error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestServer_ScrapeAndQuery(t *testing.T) {
	site := newSite(t)
	api, _ := newTestServer(t, nil)

	resp, out := postScrape(t, api.URL, `{"url": "`+site.URL+`/", "keywords": ["budget"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, out)
	}
	if out["message"] != "Scraping completed" || out["scraped_links"] != float64(2) {
		t.Errorf("response = %v", out)
	}

	resp, body := getLinks(t, api.URL, "?min_score=1.0")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	var links []models.Link
	if err := json.Unmarshal(body, &links); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(links) != 1 || links[0].URL != site.URL+"/files/budget2024.pdf" || links[0].Type != models.LinkTypeDocument {
		t.Errorf("links = %+v", links)
	}

	_, body = getLinks(t, api.URL, "?keyword=nomatch")
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty result = %s, want []", body)
	}

	_, body = getLinks(t, api.URL, "?keyword=budget&use_gpt=false")
	if !strings.Contains(string(body), `"keywords":["budget"]`) {
		t.Errorf("body = %s", body)
	}
}

func TestServer_Scrape_FetchFailure(t *testing.T) {
	site := newSite(t)
	api, _ := newTestServer(t, nil)

	resp, out := postScrape(t, api.URL, `{"url": "`+site.URL+`/gone", "keywords": []}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	detail, _ := out["detail"].(string)
	if !strings.HasPrefix(detail, "Failed to fetch URL: ") {
		t.Errorf("detail = %q", detail)
	}
}

func TestServer_Scrape_BadRequests(t *testing.T) {
	api, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"missing url", `{"keywords": ["budget"]}`},
		{"blank url", `{"url": "  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postScrape(t, api.URL, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestServer_Links_BadParams(t *testing.T) {
	api, _ := newTestServer(t, nil)

	for _, q := range []string{"?min_score=high", "?use_gpt=maybe"} {
		resp, _ := getLinks(t, api.URL, q)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET /links%s status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestServer_Links_StoreFailure(t *testing.T) {
	api, _ := newTestServer(t, failingStore{})

	resp, _ := getLinks(t, api.URL, "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	api, _ := newTestServer(t, nil)

	resp, err := http.Get(api.URL + "/scrape")
	if err != nil {
		t.Fatalf("GET /scrape error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /scrape status = %d, want 405", resp.StatusCode)
	}

	resp, err = http.Post(api.URL+"/links", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /links error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /links status = %d, want 405", resp.StatusCode)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	site := newSite(t)
	api, _ := newTestServer(t, nil)

	resp, err := http.Get(api.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	postScrape(t, api.URL, `{"url": "`+site.URL+`/", "keywords": ["budget"]}`)

	resp, err = http.Get(api.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{`hvlinks_scrapes_total{result="ok"} 1`, "hvlinks_links_processed_total 2", "hvlinks_fetch_duration_seconds"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"True", true, false},
		{"1", true, false},
		{"yes", true, false},
		{"false", false, false},
		{"0", false, false},
		{"off", false, false},
		{"maybe", false, true},
	}

	for _, tt := range tests {
		got, err := parseBool(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseBool(%q) = %v, %v; want %v, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
