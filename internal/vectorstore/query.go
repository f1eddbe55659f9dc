package vectorstore

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/qdrant"
)

// DefaultQueryLimit is used when Query is given a non-positive limit.
const DefaultQueryLimit = 5

const opQuery = "query"

// QueryOption configures a single Query call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	threshold *float32
	filter    *qdrant.Filter
}

// WithScoreThreshold makes the backend drop hits scoring below t.
func WithScoreThreshold(t float32) QueryOption {
	return func(o *queryOptions) { o.threshold = &t }
}

// WithFilter restricts hits to points matching f. The filter is sent as is.
func WithFilter(f *qdrant.Filter) QueryOption {
	return func(o *queryOptions) { o.filter = f }
}

// Query returns up to limit chunks similar to text, best first as ranked by
// the backend. In hybrid mode the backend fuses a dense and a sparse
// prefetch; a query with no sparse terms, such as one made only of
// stopwords, runs dense-only. Failures are logged and return nil.
func (s *Store) Query(ctx context.Context, text string, limit int, opts ...QueryOption) []QueryResult {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	client, ok := s.client(ctx, opQuery)
	if !ok {
		return nil
	}

	if strings.TrimSpace(text) == "" {
		s.logger.Warn(ctx, "empty query text, returning no results")
		recordOperation(opQuery, resultError, 0)
		return nil
	}
	if limit <= 0 {
		s.logger.Warn(ctx, "non-positive query limit, using default",
			zap.Int("limit", limit),
			zap.Int("default", DefaultQueryLimit),
		)
		limit = DefaultQueryLimit
	}

	ctx, op := s.startOp(ctx, opQuery,
		attribute.Int("limit", limit),
		attribute.Bool("hybrid", s.Hybrid()),
		attribute.Bool("filtered", o.filter != nil),
	)

	dense, err := s.dense.EmbedQuery(ctx, text)
	if err != nil {
		s.logger.Error(ctx, "failed to embed query", zap.Error(err))
		op.fail(resultError, err)
		return nil
	}

	req := &qdrant.QueryRequest{
		Collection:     s.collection,
		DenseName:      s.denseName,
		Dense:          dense,
		Filter:         o.filter,
		Limit:          uint64(limit),
		ScoreThreshold: o.threshold,
	}

	if s.sparse != nil {
		sv, err := s.sparse.EncodeQuery(text)
		switch {
		case err != nil:
			s.logger.Warn(ctx, "sparse query encoding failed, querying dense only", zap.Error(err))
		case sv.Len() == 0:
			s.logger.Debug(ctx, "query has no sparse terms, querying dense only")
		default:
			v := qdrant.SparseVector(sv.Indices, sv.Values)
			req.SparseName = s.sparseName
			req.Sparse = &v
		}
	}

	hits, err := client.Query(ctx, req)
	if err != nil {
		s.logger.Error(ctx, "query failed",
			zap.Int("limit", limit),
			zap.Bool("hybrid", req.Hybrid()),
			zap.Bool("transient", qdrant.IsTransient(err)),
			zap.Error(err),
		)
		op.fail(resultError, err)
		return nil
	}

	results := make([]QueryResult, 0, len(hits))
	for _, h := range hits {
		score := h.Score
		results = append(results, QueryResult{
			ID:          pointIDFromBackend(h.ID),
			Score:       &score,
			PageContent: resolveContent(h.Payload),
			Metadata:    Metadata(h.Payload),
		})
	}

	s.logger.Trace(ctx, "query complete",
		zap.Int("results", len(results)),
		zap.Bool("hybrid", req.Hybrid()),
	)
	op.succeed(attribute.Int("results_count", len(results)))
	return results
}
