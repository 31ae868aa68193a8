package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfenderov/hvlinks/internal/config"
	"github.com/mfenderov/hvlinks/internal/elasticsearch"
	"github.com/mfenderov/hvlinks/internal/llm"
	"github.com/mfenderov/hvlinks/internal/metrics"
	"github.com/mfenderov/hvlinks/internal/pipeline"
	"github.com/mfenderov/hvlinks/internal/processor"
	"github.com/mfenderov/hvlinks/internal/relevance"
	"github.com/mfenderov/hvlinks/internal/scraper"
	"github.com/mfenderov/hvlinks/internal/storage"
	"github.com/mfenderov/hvlinks/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// app holds the components every command shares.
type app struct {
	store    store.Store
	pipeline *pipeline.Pipeline
}

// newApp wires the pipeline from configuration. A nil reg leaves metrics unregistered.
func newApp(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*app, error) {
	linkStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New(reg)

	fetcher := scraper.New(scraper.Config{
		Timeout:   cfg.Scraper.Timeout,
		UserAgent: cfg.Scraper.UserAgent,
		Metrics:   m,
	})

	mode, err := processor.ParseMode(cfg.Estimator.ContentMode)
	if err != nil {
		linkStore.Close()
		return nil, err
	}

	estimator := relevance.NewEstimator(relevance.EstimatorConfig{
		FetchTimeout:    cfg.Estimator.FetchTimeout,
		MaxContentChars: cfg.Estimator.MaxContentChars,
		Metrics:         m,
	}, fetcher, newModel(cfg.LLM), processor.New(mode))

	opts := []pipeline.Option{pipeline.WithMetrics(m)}
	if cfg.Storage.Enabled {
		archive, err := openArchive(ctx, cfg.Storage)
		if err != nil {
			linkStore.Close()
			return nil, err
		}
		opts = append(opts, pipeline.WithArchive(archive))
	}

	return &app{
		store:    linkStore,
		pipeline: pipeline.New(linkStore, fetcher, estimator, opts...),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendElasticsearch:
		esClient, err := elasticsearch.New(elasticsearch.Config{
			Addresses: cfg.Elasticsearch.Addresses,
			Index:     cfg.Elasticsearch.Index,
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
		}
		if err := esClient.CreateIndex(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare index: %w", err)
		}
		slog.Debug("using elasticsearch link store", "index", cfg.Elasticsearch.Index)
		return esClient, nil
	default:
		boltStore, err := store.OpenBolt(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		slog.Debug("using bolt link store", "path", cfg.Store.Path)
		return boltStore, nil
	}
}

// newModel returns nil when the model is disabled or cannot be configured;
// estimates are then degraded rather than failing the command.
func newModel(cfg config.LLM) llm.Completer {
	if !cfg.Enabled {
		return nil
	}

	model, err := llm.New(llm.Config{
		Provider:   cfg.Provider,
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		SocketPath: cfg.SocketPath,
	})
	if err != nil {
		slog.Warn("language model unavailable, GPT scores will fall back to defaults", "provider", cfg.Provider, "error", err)
		return nil
	}

	slog.Debug("language model enabled", "provider", cfg.Provider, "model", cfg.Model)
	return model
}

func openArchive(ctx context.Context, cfg config.Storage) (*storage.Client, error) {
	storageClient, err := storage.New(storage.Config{
		Endpoint:        cfg.Endpoint,
		Bucket:          cfg.Bucket,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UseSSL:          cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	if err := storageClient.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}
	return storageClient, nil
}
