package qdrant

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/logging"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// GRPCClient implements Client over Qdrant's official Go client.
type GRPCClient struct {
	client *qdrant.Client
	config *ClientConfig
	logger *logging.Logger
	closed atomic.Bool
}

// ClientConfig configures the gRPC client.
type ClientConfig struct {
	// Host is the Qdrant hostname. Default: "localhost".
	Host string

	// Port is the gRPC port, not the REST one. Default: 6334.
	Port int

	UseTLS bool
	APIKey config.Secret

	// MaxMessageSize bounds gRPC messages in both directions. Default: 50MB.
	MaxMessageSize int

	// DialTimeout bounds the initial health check. Default: 5s.
	DialTimeout time.Duration

	// RequestTimeout bounds every call. Default: 30s.
	RequestTimeout time.Duration

	// Distance is used for new dense vectors. Default: Cosine.
	Distance qdrant.Distance
}

// DefaultClientConfig returns defaults for a local instance.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Host:           "localhost",
		Port:           GRPCPort,
		MaxMessageSize: 50 * 1024 * 1024,
		DialTimeout:    5 * time.Second,
		RequestTimeout: 30 * time.Second,
		Distance:       qdrant.Distance_Cosine,
	}
}

// ConfigFromSettings builds a ClientConfig from the vector store settings.
func ConfigFromSettings(s config.VectorStoreConfig) (*ClientConfig, error) {
	ep, err := ParseEndpoint(s.EndpointURL)
	if err != nil {
		return nil, err
	}
	cfg := DefaultClientConfig()
	cfg.Host = ep.Host
	cfg.Port = ep.Port
	cfg.UseTLS = ep.UseTLS
	cfg.APIKey = s.APIKey
	if s.DialTimeout > 0 {
		cfg.DialTimeout = s.DialTimeout.Duration()
	}
	if s.RequestTimeout > 0 {
		cfg.RequestTimeout = s.RequestTimeout.Duration()
	}
	return cfg, nil
}

// ApplyDefaults sets default values for unset fields.
func (c *ClientConfig) ApplyDefaults() {
	defaults := DefaultClientConfig()

	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.Distance == qdrant.Distance_UnknownDistance {
		c.Distance = defaults.Distance
	}
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("invalid max message size: %d (must be > 0)", c.MaxMessageSize)
	}
	if c.RequestTimeout < 0 || c.DialTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// NewGRPCClient connects to Qdrant and checks its health within DialTimeout.
func NewGRPCClient(ctx context.Context, cfg *ClientConfig, logger *logging.Logger) (*GRPCClient, error) {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey.Value(),
		// Version skew is reported by the health check below instead.
		SkipCompatibilityCheck: true,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	c := &GRPCClient{client: client, config: cfg, logger: logger}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	logger.Info(dialCtx, "connecting to qdrant",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Bool("tls", cfg.UseTLS),
		logging.Secret("api_key", cfg.APIKey),
	)

	if err := c.Health(dialCtx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info(dialCtx, "qdrant connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)
	return c, nil
}

func (c *GRPCClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.RequestTimeout)
}

// Health performs a health check on the connection.
func (c *GRPCClient) Health(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	reply, err := c.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	c.logger.Debug(ctx, "qdrant healthy", zap.String("version", reply.GetVersion()))
	return nil
}

// CollectionExists checks whether a collection exists.
func (c *GRPCClient) CollectionExists(ctx context.Context, name string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("checking collection %q: %w", name, err)
	}
	return exists, nil
}

// CreateCollection creates a collection with the named vectors in schema.
func (c *GRPCClient) CreateCollection(ctx context.Context, schema CollectionSchema) error {
	if c.closed.Load() {
		return ErrClosed
	}
	req, err := buildCreateCollection(schema, c.config.Distance)
	if err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.CreateCollection(ctx, req); err != nil {
		return fmt.Errorf("creating collection %q: %w", schema.Name, err)
	}
	c.logger.Info(ctx, "collection created",
		zap.String("collection", schema.Name),
		zap.String("dense_vector", schema.DenseName),
		zap.Uint64("dense_size", schema.DenseSize),
		zap.String("sparse_vector", schema.SparseName),
	)
	return nil
}

// Upsert inserts or replaces points and waits for the write.
func (c *GRPCClient) Upsert(ctx context.Context, collection string, points []*Point) error {
	if c.closed.Load() {
		return ErrClosed
	}
	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qp, err := toQdrantPoint(p)
		if err != nil {
			return fmt.Errorf("point %s: %w", IDString(p.ID), err)
		}
		qpoints[i] = qp
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points into %q: %w", len(points), collection, err)
	}
	return nil
}

// Query runs a dense or fused hybrid query.
func (c *GRPCClient) Query(ctx context.Context, req *QueryRequest) ([]*ScoredPoint, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.client.Query(ctx, buildQueryPoints(req))
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", req.Collection, err)
	}

	points := make([]*ScoredPoint, len(res))
	for i, r := range res {
		points[i] = fromScoredPoint(r)
	}
	return points, nil
}

// Scroll reads one page starting at req.Cursor.
func (c *GRPCClient) Scroll(ctx context.Context, req *ScrollRequest) (*ScrollPage, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, next, err := c.client.ScrollAndOffset(ctx, buildScrollPoints(req))
	if err != nil {
		return nil, fmt.Errorf("scrolling %q: %w", req.Collection, err)
	}

	page := &ScrollPage{
		Points: make([]*RetrievedPoint, len(res)),
		Next:   NewCursor(next),
	}
	for i, r := range res {
		page.Points[i] = fromRetrievedPoint(r)
	}
	c.logger.Trace(ctx, "scroll page",
		zap.String("collection", req.Collection),
		zap.Stringer("cursor", req.Cursor),
		zap.Int("points", len(res)),
	)
	return page, nil
}

// CreatePayloadIndex creates a payload index on field and waits for it.
func (c *GRPCClient) CreatePayloadIndex(ctx context.Context, collection, field string, kind IndexKind) error {
	if c.closed.Load() {
		return ErrClosed
	}
	ft, err := kind.fieldType()
	if err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err = c.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		FieldName:      field,
		FieldType:      ft.Enum(),
	})
	if err != nil {
		return fmt.Errorf("indexing %s field %q: %w", kind, field, err)
	}
	return nil
}

// Close closes the connection. Later calls return ErrClosed.
func (c *GRPCClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

var _ Client = (*GRPCClient)(nil)
