// Package config loads hvlinks configuration from defaults, a YAML file,
// a .env file, and HVLINKS_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mfenderov/hvlinks/internal/llm"
	"github.com/mfenderov/hvlinks/internal/processor"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendBolt          = "bolt"
	BackendElasticsearch = "elasticsearch"
)

// Config holds all application configuration.
type Config struct {
	Store         Store         `mapstructure:"store"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Scraper       Scraper       `mapstructure:"scraper"`
	Estimator     Estimator     `mapstructure:"estimator"`
	LLM           LLM           `mapstructure:"llm"`
	Storage       Storage       `mapstructure:"storage"`
	Server        Server        `mapstructure:"server"`
	MCP           MCP           `mapstructure:"mcp"`
}

// Store selects the link store backend.
type Store struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"` // bolt only
}

// Elasticsearch holds ES connection configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Scraper holds page fetch configuration.
type Scraper struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Estimator holds content relevance estimation configuration.
type Estimator struct {
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	MaxContentChars int           `mapstructure:"max_content_chars"`
	ContentMode     string        `mapstructure:"content_mode"`
}

// LLM holds language model configuration.
type LLM struct {
	Enabled    bool   `mapstructure:"enabled"`
	Provider   string `mapstructure:"provider"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	SocketPath string `mapstructure:"socket_path"` // dmr only
}

// Storage holds S3/MinIO snapshot archive configuration.
type Storage struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Server holds HTTP API configuration.
type Server struct {
	Addr string `mapstructure:"addr"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Store: Store{
			Backend: BackendBolt,
			Path:    "./data/links.db",
		},
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://localhost:9200"},
			Index:     "hvlinks-links",
		},
		Scraper: Scraper{
			Timeout:   5 * time.Second,
			UserAgent: "Mozilla/5.0 (compatible; hvlinks/1.0)",
		},
		Estimator: Estimator{
			FetchTimeout:    5 * time.Second,
			MaxContentChars: 3000,
			ContentMode:     string(processor.ModeText),
		},
		LLM: LLM{
			Enabled:  true,
			Provider: llm.ProviderOpenAI,
			Model:    "gpt-4",
		},
		Storage: Storage{
			Enabled:         false, // requires a MinIO/S3 endpoint
			Endpoint:        "localhost:9002",
			Bucket:          "hvlinks",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		Server: Server{
			Addr: ":8000",
		},
		MCP: MCP{
			Name:    "hvlinks",
			Version: "1.0.0",
		},
	}
}

// envKeys are the config keys that can be set through HVLINKS_ variables,
// e.g. HVLINKS_STORE_BACKEND -> store.backend.
var envKeys = []string{
	"store.backend",
	"store.path",
	"elasticsearch.addresses",
	"elasticsearch.index",
	"elasticsearch.username",
	"elasticsearch.password",
	"scraper.timeout",
	"scraper.user_agent",
	"estimator.fetch_timeout",
	"estimator.max_content_chars",
	"estimator.content_mode",
	"llm.enabled",
	"llm.provider",
	"llm.base_url",
	"llm.api_key",
	"llm.model",
	"llm.socket_path",
	"storage.enabled",
	"storage.endpoint",
	"storage.bucket",
	"storage.access_key_id",
	"storage.secret_access_key",
	"storage.use_ssl",
	"server.addr",
	"mcp.name",
	"mcp.version",
}

// Load builds the configuration. An empty cfgFile searches ./config,
// /etc/hvlinks, and the working directory for config.yaml; a missing file
// is not an error.
func Load(cfgFile string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Defaults()
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hvlinks")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HVLINKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range envKeys {
		env := "HVLINKS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env); err != nil {
			return cfg, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	// Addresses as comma-separated string from env
	if addrs := os.Getenv("HVLINKS_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the bolt backend")
		}
	case BackendElasticsearch:
		if len(c.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("elasticsearch.addresses is required for the elasticsearch backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if _, err := processor.ParseMode(c.Estimator.ContentMode); err != nil {
		return fmt.Errorf("estimator.content_mode: %w", err)
	}
	if c.Estimator.MaxContentChars < 0 {
		return fmt.Errorf("estimator.max_content_chars must not be negative")
	}
	return nil
}
