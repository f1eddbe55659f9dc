package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	httpserver "github.com/fyrsmithlabs/ragstore/internal/http"
	"github.com/fyrsmithlabs/ragstore/internal/logging"
	"github.com/fyrsmithlabs/ragstore/internal/telemetry"
	"github.com/fyrsmithlabs/ragstore/internal/vectorstore"
)

const shutdownTimeout = 5 * time.Second

// globalOptions are the persistent flags shared by every command. Empty
// values leave the loaded configuration untouched.
type globalOptions struct {
	configPath string
	envFile    string

	endpoint          string
	collection        string
	denseModel        string
	sparseModel       string
	embeddingProvider string
	embeddingURL      string

	logLevel    string
	logFormat   string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "ragstore",
		Short: "Ingest, search and scan a Qdrant vector store",
		Long: `ragstore stores text chunks with dense (and optionally sparse BM25)
embeddings in a Qdrant collection and retrieves them by similarity.

When Qdrant cannot be reached every command still runs and returns empty
results; the reason is logged.`,
		Version:      fmt.Sprintf("%s (%s)", version, gitCommit),
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/ragstore/config.yaml)")
	f.StringVar(&opts.envFile, "env-file", "", "load environment variables from this file (default .env if present)")
	f.StringVar(&opts.endpoint, "url", "", "Qdrant endpoint URL")
	f.StringVar(&opts.collection, "collection", "", "collection name")
	f.StringVar(&opts.denseModel, "embed-model", "", "dense embedding model")
	f.StringVar(&opts.sparseModel, "sparse-model", "", "sparse embedding model; pass an empty string to disable hybrid search")
	f.StringVar(&opts.embeddingProvider, "embedding-provider", "", "dense embedding provider: fastembed or tei")
	f.StringVar(&opts.embeddingURL, "embedding-url", "", "text-embeddings-inference server URL")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	f.StringVar(&opts.logFormat, "log-format", "", "log format: json or console")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /health and /metrics on this address while the command runs")

	cmd.AddCommand(
		newQueryCmd(opts),
		newIngestCmd(opts),
		newScrollCmd(opts),
		newIndexesCmd(opts),
	)
	return cmd
}

// loadConfig reads the env file, the config file and the environment, then
// applies flags the user set.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	if err := loadEnvFile(opts.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	applyOverrides(cfg, opts, cmd.Flags().Changed)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadEnvFile loads path, or .env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func applyOverrides(cfg *config.Config, opts *globalOptions, changed func(string) bool) {
	set := func(flag string, dst *string, v string) {
		if changed(flag) {
			*dst = v
		}
	}
	vs := &cfg.VectorStore
	set("url", &vs.EndpointURL, opts.endpoint)
	set("collection", &vs.CollectionName, opts.collection)
	set("embed-model", &vs.DenseModel, opts.denseModel)
	set("sparse-model", &vs.SparseModel, opts.sparseModel)
	set("embedding-provider", &vs.EmbeddingProvider, opts.embeddingProvider)
	set("embedding-url", &vs.EmbeddingURL, opts.embeddingURL)
	set("log-level", &cfg.Logging.Level, opts.logLevel)
	set("log-format", &cfg.Logging.Format, opts.logFormat)
	set("metrics-addr", &cfg.Metrics.Addr, opts.metricsAddr)
}

// app is everything a command needs, built once per invocation.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
	store  *vectorstore.Store
	ops    *httpserver.Server
}

// setup builds the app. The store is always returned, connected or not.
func setup(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	if tel.IsEnabled() {
		logCfg.Output.OTEL = true
		tel.SetLoggerProvider(global.GetLoggerProvider())
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := tel.Err(); err != nil {
		logger.Warn(ctx, "telemetry export unavailable", zap.Error(err))
	}

	a := &app{cfg: cfg, logger: logger, tel: tel}
	a.store = vectorstore.Connect(ctx, cfg.VectorStore, logger.Named("vectorstore"))

	if cfg.Metrics.Addr != "" {
		ops, err := httpserver.NewServer(a.store, logger.Named("http"), &httpserver.Config{
			Addr:    cfg.Metrics.Addr,
			Version: version,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		a.ops = ops
		go func() {
			if err := ops.Start(); err != nil {
				logger.Warn(ctx, "ops server stopped", zap.Error(err))
			}
		}()
	}
	return a, nil
}

// close releases the store and flushes telemetry and logs.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.ops != nil {
		if err := a.ops.Shutdown(ctx); err != nil {
			a.logger.Warn(ctx, "ops server shutdown failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn(ctx, "closing vector store failed", zap.Error(err))
		}
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// run wraps a command body with setup and teardown.
func run(opts *globalOptions, fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, opts)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), cmd, a, args)
	}
}
