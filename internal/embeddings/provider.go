package embeddings

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/logging"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider type names accepted by New.
const (
	ProviderFastEmbed = "fastembed"
	ProviderTEI       = "tei"
)

// Provider generates dense embeddings.
type Provider interface {
	// EmbedDocuments embeds texts for storage, one vector per text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed" (default) or "tei".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the TEI URL (only used for TEI provider).
	BaseURL string
	// APIKey is sent as a bearer token to TEI when set.
	APIKey config.Secret
	// CacheDir is the model cache directory (only used for FastEmbed).
	CacheDir string
	// ShowProgress enables progress bars for downloads.
	ShowProgress bool
}

// ProviderConfigFromSettings builds a ProviderConfig from the vector store section.
func ProviderConfigFromSettings(s config.VectorStoreConfig) ProviderConfig {
	return ProviderConfig{
		Provider: s.EmbeddingProvider,
		Model:    s.DenseModel,
		BaseURL:  s.EmbeddingURL,
		APIKey:   s.APIKey,
		CacheDir: s.CacheDir,
	}
}

// New creates an embedding provider based on the configuration. The result
// records generation metrics through the global meter provider.
func New(ctx context.Context, cfg ProviderConfig, logger *logging.Logger) (Provider, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}

	var (
		p   Provider
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderFastEmbed, "":
		p, err = NewFastEmbedProvider(ctx, FastEmbedConfig{
			Model:        cfg.Model,
			CacheDir:     cfg.CacheDir,
			ShowProgress: cfg.ShowProgress,
		}, logger)
	case ProviderTEI:
		p, err = NewTEIProvider(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(p, cfg.Model, NewMetrics(logger)), nil
}

// knownDimensions lists the output size of the supported models under both
// their hub names and their FastEmbed names.
var knownDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// ModelDimension returns the dimension of a known model.
func ModelDimension(model string) (int, bool) {
	dim, ok := knownDimensions[model]
	return dim, ok
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := ModelDimension(model); ok {
		return dim
	}
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "base"):
		return 768
	case strings.Contains(m, "large"):
		return 1024
	default:
		return 384
	}
}

// VectorName returns the named dense vector used for model in a collection,
// e.g. "fast-all-minilm-l6-v2" for "sentence-transformers/all-MiniLM-L6-v2".
// Names that already carry the prefix are only lower-cased.
func VectorName(model string) string {
	base := strings.ToLower(path.Base(strings.TrimSpace(model)))
	if strings.HasPrefix(base, "fast-") {
		return base
	}
	return "fast-" + base
}
