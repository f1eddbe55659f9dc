package vectorstore

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/qdrant"
)

const opEnsureIndexes = "ensure_indexes"

// PayloadIndex is a payload field to index and its schema type.
type PayloadIndex struct {
	Field string
	Kind  qdrant.IndexKind
}

// DefaultPayloadIndexes covers the identifier and position fields filters
// typically use.
var DefaultPayloadIndexes = []PayloadIndex{
	{Field: "source", Kind: qdrant.IndexKeyword},
	{Field: SourceIDKey, Kind: qdrant.IndexKeyword},
	{Field: DocIDKey, Kind: qdrant.IndexKeyword},
	{Field: ChunkIDKey, Kind: qdrant.IndexKeyword},
	{Field: ChunkIndexKey, Kind: qdrant.IndexInteger},
	{Field: "page", Kind: qdrant.IndexInteger},
	{Field: "ext", Kind: qdrant.IndexKeyword},
	{Field: "lang", Kind: qdrant.IndexKeyword},
	{Field: "year", Kind: qdrant.IndexInteger},
}

func payloadIndexesFromConfig(c config.PayloadIndexConfig) []PayloadIndex {
	out := make([]PayloadIndex, 0, len(c.Keyword)+len(c.Integer))
	for _, f := range c.Keyword {
		out = append(out, PayloadIndex{Field: f, Kind: qdrant.IndexKeyword})
	}
	for _, f := range c.Integer {
		out = append(out, PayloadIndex{Field: f, Kind: qdrant.IndexInteger})
	}
	return out
}

// PayloadIndexes returns the index table EnsurePayloadIndexes applies.
func (s *Store) PayloadIndexes() []PayloadIndex {
	return append([]PayloadIndex(nil), s.indexes...)
}

// EnsurePayloadIndexes makes sure every payload index in the table exists.
// Indexes that already exist and fields no point uses count as done. Other
// failures are logged per field and the remaining fields are still tried.
func (s *Store) EnsurePayloadIndexes(ctx context.Context) {
	client, ok := s.client(ctx, opEnsureIndexes)
	if !ok {
		return
	}

	ctx, op := s.startOp(ctx, opEnsureIndexes, attribute.Int("fields", len(s.indexes)))

	var created, existing, failed int
	for _, idx := range s.indexes {
		err := client.CreatePayloadIndex(ctx, s.collection, idx.Field, idx.Kind)
		switch {
		case err == nil:
			created++
		case qdrant.IsAlreadyExists(err), qdrant.IsFieldUnused(err):
			existing++
		default:
			failed++
			s.logger.Debug(ctx, "payload index not created",
				zap.String("field", idx.Field),
				zap.Stringer("kind", idx.Kind),
				zap.Error(err),
			)
		}
	}

	s.logger.Info(ctx, "payload indexes ensured",
		zap.Int("created", created),
		zap.Int("existing", existing),
		zap.Int("failed", failed),
	)

	op.span.SetAttributes(
		attribute.Int("created", created),
		attribute.Int("existing", existing),
		attribute.Int("failed", failed),
	)
	if failed > 0 {
		op.finish(resultPartial)
		return
	}
	op.succeed()
}
