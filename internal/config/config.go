// Package config provides configuration loading for ragstore.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file
// and RAGSTORE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidConfig wraps every validation failure returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults mirror a local single-node Qdrant with FastEmbed models.
const (
	DefaultEndpointURL     = "http://localhost:6333"
	DefaultDenseModel      = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultSparseModel     = "Qdrant/bm25"
	DefaultCollectionName  = "default_collection"
	DefaultScrollBatchSize = 100
	DefaultCacheDir        = "local_cache"
	DefaultEmbedding       = "fastembed"
)

// Config holds the complete ragstore configuration.
type Config struct {
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

// VectorStoreConfig describes the backend and the embedding models.
type VectorStoreConfig struct {
	// EndpointURL is where the backend listens, e.g. http://localhost:6333.
	// The REST port is translated to the gRPC port by the client.
	EndpointURL string `koanf:"endpoint_url"`

	// DenseModel selects the dense embedding function.
	DenseModel string `koanf:"dense_model"`

	// EmbeddingProvider runs the dense model locally ("fastembed") or calls a
	// text-embeddings-inference server ("tei") at EmbeddingURL.
	EmbeddingProvider string `koanf:"embedding_provider"`
	EmbeddingURL      string `koanf:"embedding_url"`

	// SparseModel selects the sparse embedding function. Empty disables hybrid search.
	SparseModel string `koanf:"sparse_model"`

	// CollectionName is the logical partition every operation targets.
	CollectionName string `koanf:"collection_name"`

	APIKey          Secret   `koanf:"api_key"`
	DialTimeout     Duration `koanf:"dial_timeout"`
	RequestTimeout  Duration `koanf:"request_timeout"`
	ScrollBatchSize int      `koanf:"scroll_batch_size"`

	// CacheDir is where embedding model files are downloaded.
	CacheDir string `koanf:"cache_dir"`

	// PayloadIndexes replaces the default payload index table when non-empty.
	PayloadIndexes PayloadIndexConfig `koanf:"payload_indexes"`
}

// PayloadIndexConfig lists payload fields to index, grouped by schema type.
type PayloadIndexConfig struct {
	Keyword []string `koanf:"keyword"`
	Integer []string `koanf:"integer"`
}

// IsZero reports whether no fields are listed.
func (p PayloadIndexConfig) IsZero() bool {
	return len(p.Keyword) == 0 && len(p.Integer) == 0
}

// LoggingConfig is the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig controls OTLP export of traces and metrics.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `koanf:"addr"`
}

// Default returns a configuration populated with every default value.
func Default() *Config {
	return &Config{
		VectorStore: VectorStoreConfig{
			EndpointURL:       DefaultEndpointURL,
			DenseModel:        DefaultDenseModel,
			EmbeddingProvider: DefaultEmbedding,
			SparseModel:       DefaultSparseModel,
			CollectionName:    DefaultCollectionName,
			DialTimeout:       Duration(5 * time.Second),
			RequestTimeout:    Duration(30 * time.Second),
			ScrollBatchSize:   DefaultScrollBatchSize,
			CacheDir:          DefaultCacheDir,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			SampleRate:     1.0,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	vs := c.VectorStore
	if vs.EndpointURL == "" {
		errs = append(errs, errors.New("vectorstore.endpoint_url is required"))
	} else if err := validateEndpoint(vs.EndpointURL); err != nil {
		errs = append(errs, err)
	}
	if vs.DenseModel == "" {
		errs = append(errs, errors.New("vectorstore.dense_model is required"))
	}
	switch vs.EmbeddingProvider {
	case "", "fastembed":
	case "tei":
		if vs.EmbeddingURL == "" {
			errs = append(errs, errors.New("vectorstore.embedding_url is required for the tei provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("vectorstore.embedding_provider must be 'fastembed' or 'tei', got %q", vs.EmbeddingProvider))
	}
	if vs.CollectionName == "" {
		errs = append(errs, errors.New("vectorstore.collection_name is required"))
	}
	if vs.ScrollBatchSize < 0 {
		errs = append(errs, fmt.Errorf("vectorstore.scroll_batch_size must be >= 0, got %d", vs.ScrollBatchSize))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// HybridEnabled reports whether a sparse model is configured.
func (c VectorStoreConfig) HybridEnabled() bool {
	return strings.TrimSpace(c.SparseModel) != ""
}

func validateEndpoint(raw string) error {
	if !strings.Contains(raw, "://") {
		// host:port form
		if strings.TrimSpace(raw) == "" || strings.ContainsAny(raw, " /") {
			return fmt.Errorf("vectorstore.endpoint_url %q is not a valid host:port", raw)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("vectorstore.endpoint_url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "grpc", "grpcs":
	default:
		return fmt.Errorf("vectorstore.endpoint_url scheme %q not supported", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("vectorstore.endpoint_url %q has no host", raw)
	}
	return nil
}
