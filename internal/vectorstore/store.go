package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/embeddings"
	"github.com/fyrsmithlabs/ragstore/internal/logging"
	"github.com/fyrsmithlabs/ragstore/internal/qdrant"
	"github.com/fyrsmithlabs/ragstore/internal/sparse"
)

var (
	// ErrNotConnected is the diagnostic of a Store built without a backend client.
	ErrNotConnected = errors.New("vector store not connected")

	// ErrClosed is the diagnostic of a Store after Close.
	ErrClosed = errors.New("vector store closed")
)

// connState is either connected or disconnected.
type connState interface {
	isConnState()
}

type connected struct {
	client qdrant.Client
}

type disconnected struct {
	cause error
}

func (connected) isConnState()    {}
func (disconnected) isConnState() {}

// Store is the vector store over one collection. It is safe for concurrent
// use; no operation holds a lock.
type Store struct {
	state atomic.Pointer[connState]

	dense      embeddings.Provider
	sparse     sparse.Encoder
	denseName  string
	sparseName string

	collection  string
	endpoint    string
	scrollBatch int
	indexes     []PayloadIndex

	logger *logging.Logger
	now    func() time.Time

	// known caches collections seen to exist.
	known sync.Map
}

// Option overrides a collaborator built by Connect.
type Option func(*connectOptions)

type connectOptions struct {
	client qdrant.Client
	dense  embeddings.Provider
	sparse sparse.Encoder
}

// WithClient uses client instead of dialing cfg.EndpointURL.
func WithClient(client qdrant.Client) Option {
	return func(o *connectOptions) { o.client = client }
}

// WithDenseEmbedder uses p instead of loading cfg.DenseModel.
func WithDenseEmbedder(p embeddings.Provider) Option {
	return func(o *connectOptions) { o.dense = p }
}

// WithSparseEncoder uses e instead of loading cfg.SparseModel. It only takes
// effect when cfg.SparseModel is set.
func WithSparseEncoder(e sparse.Encoder) Option {
	return func(o *connectOptions) { o.sparse = e }
}

// Connect dials the backend, checks its health and loads the embedding
// models. It never returns an error: on failure the Store is disconnected
// and Diagnostic returns the cause. A sparse model that cannot be loaded
// only disables hybrid search.
func Connect(ctx context.Context, cfg config.VectorStoreConfig, logger *logging.Logger, opts ...Option) *Store {
	var o connectOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := newStore(cfg, logger)

	client := o.client
	if client == nil {
		ccfg, err := qdrant.ConfigFromSettings(cfg)
		if err != nil {
			s.disconnect(ctx, fmt.Errorf("parsing endpoint: %w", err))
			return s
		}
		grpcClient, err := qdrant.NewGRPCClient(ctx, ccfg, s.logger.Named("qdrant"))
		if err != nil {
			s.disconnect(ctx, fmt.Errorf("connecting to %s: %w", cfg.EndpointURL, err))
			return s
		}
		client = grpcClient
	}

	dense := o.dense
	if dense == nil {
		p, err := embeddings.New(ctx, embeddings.ProviderConfigFromSettings(cfg), s.logger.Named("embeddings"))
		if err != nil {
			_ = client.Close()
			s.disconnect(ctx, fmt.Errorf("loading dense model %q: %w", cfg.DenseModel, err))
			return s
		}
		dense = p
	}
	s.dense = dense

	if cfg.HybridEnabled() {
		enc := o.sparse
		if enc == nil {
			var err error
			enc, err = sparse.New(cfg.SparseModel)
			if err != nil {
				s.logger.Warn(ctx, "sparse model unavailable, hybrid search disabled",
					zap.String("sparse_model", cfg.SparseModel),
					zap.Error(err),
				)
			}
		}
		if enc != nil {
			s.sparse = enc
			s.sparseName = sparse.VectorName(cfg.SparseModel)
		}
	}

	s.connect(ctx, client)
	return s
}

// New builds a Store over existing collaborators. A nil client or dense
// embedder yields a disconnected Store; a nil sparse encoder means dense-only
// search.
func New(client qdrant.Client, dense embeddings.Provider, enc sparse.Encoder, cfg config.VectorStoreConfig, logger *logging.Logger) *Store {
	s := newStore(cfg, logger)
	ctx := context.Background()

	s.dense = dense
	if enc != nil {
		model := cfg.SparseModel
		if model == "" {
			model = enc.Model()
		}
		s.sparse = enc
		s.sparseName = sparse.VectorName(model)
	}

	switch {
	case client == nil:
		s.disconnect(ctx, ErrNotConnected)
	case dense == nil:
		s.disconnect(ctx, fmt.Errorf("%w: dense embedder is required", ErrNotConnected))
	default:
		s.connect(ctx, client)
	}
	return s
}

func newStore(cfg config.VectorStoreConfig, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	collection := cfg.CollectionName
	if collection == "" {
		collection = config.DefaultCollectionName
	}
	denseModel := cfg.DenseModel
	if denseModel == "" {
		denseModel = config.DefaultDenseModel
	}

	indexes := DefaultPayloadIndexes
	if !cfg.PayloadIndexes.IsZero() {
		indexes = payloadIndexesFromConfig(cfg.PayloadIndexes)
	}

	return &Store{
		denseName:   embeddings.VectorName(denseModel),
		collection:  collection,
		endpoint:    cfg.EndpointURL,
		scrollBatch: cfg.ScrollBatchSize,
		indexes:     indexes,
		logger:      logger.With(zap.String("collection", collection)),
		now:         time.Now,
	}
}

func (s *Store) setState(st connState) {
	s.state.Store(&st)
}

func (s *Store) loadState() connState {
	if p := s.state.Load(); p != nil {
		return *p
	}
	return disconnected{cause: ErrNotConnected}
}

func (s *Store) connect(ctx context.Context, client qdrant.Client) {
	s.setState(connected{client: client})
	connectedGauge.Set(1)
	s.logger.Info(ctx, "vector store ready",
		zap.String("endpoint", s.endpoint),
		zap.String("dense_vector", s.denseName),
		zap.Bool("hybrid", s.Hybrid()),
	)
}

func (s *Store) disconnect(ctx context.Context, cause error) {
	s.setState(disconnected{cause: cause})
	connectedGauge.Set(0)
	s.logger.Error(ctx, "vector store unavailable, operations will return empty results",
		zap.String("endpoint", s.endpoint),
		zap.Error(cause),
	)
}

// client returns the backend client, or false after logging when the
// Store is disconnected.
func (s *Store) client(ctx context.Context, op string) (qdrant.Client, bool) {
	switch st := s.loadState().(type) {
	case connected:
		return st.client, true
	case disconnected:
		s.logger.Warn(ctx, "vector store disconnected, skipping operation",
			zap.String("op", op),
			zap.Error(st.cause),
		)
	}
	recordOperation(op, resultDisconnected, 0)
	return nil, false
}

// Connected reports whether the Store has a backend client.
func (s *Store) Connected() bool {
	_, ok := s.loadState().(connected)
	return ok
}

// Diagnostic returns why the Store is disconnected, or nil.
func (s *Store) Diagnostic() error {
	if st, ok := s.loadState().(disconnected); ok {
		return st.cause
	}
	return nil
}

// Hybrid reports whether queries fuse dense and sparse results.
func (s *Store) Hybrid() bool {
	return s.sparse != nil
}

// Collection returns the collection name every operation targets.
func (s *Store) Collection() string {
	return s.collection
}

// Close releases the backend connection and the embedders. Operations after
// Close behave as disconnected. Closing twice is a no-op.
func (s *Store) Close() error {
	prev := s.state.Swap(ptr[connState](disconnected{cause: ErrClosed}))
	connectedGauge.Set(0)

	var errs []error
	if prev != nil {
		switch st := (*prev).(type) {
		case connected:
			errs = append(errs, st.client.Close())
		case disconnected:
			if errors.Is(st.cause, ErrClosed) {
				return nil
			}
		}
	}
	if s.dense != nil {
		errs = append(errs, s.dense.Close())
	}
	if s.sparse != nil {
		errs = append(errs, s.sparse.Close())
	}
	return errors.Join(errs...)
}

func ptr[T any](v T) *T {
	return &v
}
