// Package api serves the scrape and link query operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mfenderov/hvlinks/internal/pipeline"
	"github.com/mfenderov/hvlinks/internal/scraper"
	"github.com/mfenderov/hvlinks/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config contains server configuration.
type Config struct {
	Addr     string
	Gatherer prometheus.Gatherer // serves /metrics when set
}

// Server exposes a Pipeline over HTTP.
type Server struct {
	pipeline *pipeline.Pipeline
	gatherer prometheus.Gatherer
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates a new API server.
func NewServer(config Config, p *pipeline.Pipeline) *Server {
	s := &Server{
		pipeline: p,
		gatherer: config.Gatherer,
		mux:      http.NewServeMux(),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // use_gpt queries call the model once per link
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/scrape", s.handleScrape)
	s.mux.HandleFunc("/links", s.handleLinks)
	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.middleware(s.mux)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path != "/health" && r.URL.Path != "/metrics" {
			slog.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scrapeResponse is the body of a successful POST /scrape.
type scrapeResponse struct {
	Message      string `json:"message"`
	ScrapedLinks int    `json:"scraped_links"`
	Snapshot     string `json:"snapshot,omitempty"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := s.pipeline.Scrape(r.Context(), req)
	if err != nil {
		var fetchErr *scraper.FetchError
		if errors.As(err, &fetchErr) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to fetch URL: %v", fetchErr))
			return
		}
		slog.Error("scrape failed", "url", req.URL, "error", err)
		respondError(w, http.StatusInternalServerError, "scrape failed")
		return
	}

	respondJSON(w, http.StatusOK, scrapeResponse{
		Message:      "Scraping completed",
		ScrapedLinks: result.LinksProcessed,
		Snapshot:     result.Snapshot,
	})
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q, err := parseLinkQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	links, err := s.pipeline.Query(r.Context(), q)
	if err != nil {
		slog.Error("link query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to query links")
		return
	}

	respondJSON(w, http.StatusOK, links)
}

func parseLinkQuery(r *http.Request) (models.LinkQuery, error) {
	params := r.URL.Query()
	q := models.LinkQuery{Keyword: params.Get("keyword")}

	if v := params.Get("min_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return q, fmt.Errorf("invalid min_score %q", v)
		}
		q.MinScore = score
	}

	if v := params.Get("use_gpt"); v != "" {
		useGPT, err := parseBool(v)
		if err != nil {
			return q, fmt.Errorf("invalid use_gpt %q", v)
		}
		q.UseGPT = useGPT
	}

	return q, nil
}

// parseBool accepts the usual query-string spellings of a boolean.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on", "t", "y":
		return true, nil
	case "0", "false", "no", "off", "f", "n":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"detail": message,
	})
}
