// Package llm provides the language model backends used for content scoring.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer answers a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Providers understood by New.
const (
	ProviderOpenAI     = "openai"     // OpenAI API through langchaingo
	ProviderCompatible = "compatible" // any OpenAI-compatible endpoint at BaseURL
	ProviderDMR        = "dmr"        // Docker Model Runner over a unix socket
)

// Config holds language model configuration.
type Config struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	SocketPath string // dmr only
}

// New builds the Completer for the configured provider.
func New(config Config) (Completer, error) {
	switch strings.ToLower(config.Provider) {
	case "", ProviderOpenAI:
		return asCompleter(NewOpenAI(config))
	case ProviderCompatible:
		return asCompleter(NewClient(Config{BaseURL: config.BaseURL, APIKey: config.APIKey, Model: config.Model}))
	case ProviderDMR:
		if config.SocketPath == "" {
			return nil, fmt.Errorf("socket path is required")
		}
		return asCompleter(NewClient(Config{SocketPath: config.SocketPath, Model: config.Model}))
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", config.Provider)
	}
}

// asCompleter keeps a failed constructor from yielding a non-nil interface around a nil pointer.
func asCompleter[T Completer](c T, err error) (Completer, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}

// OpenAI wraps a langchaingo OpenAI model.
type OpenAI struct {
	model llms.Model
}

// NewOpenAI creates an OpenAI-backed Completer.
func NewOpenAI(config Config) (*OpenAI, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	return &OpenAI{model: model}, nil
}

// Complete sends a single prompt and returns the trimmed reply.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	answer, err := llms.GenerateFromSinglePrompt(ctx, o.model, prompt)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
