package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/qdrant"
)

// Input errors returned by the Add family before any backend call.
var (
	ErrMetadataLengthMismatch = errors.New("metadata count does not match text count")
	ErrIDLengthMismatch       = errors.New("id count does not match text count")
	ErrEmptyText              = errors.New("chunk text is empty")
)

const opAdd = "add"

// Add ingests chunks and returns the ids they are stored under, in input order.
// See AddTexts.
func (s *Store) Add(ctx context.Context, chunks []Chunk) ([]PointID, error) {
	texts := make([]string, len(chunks))
	metadatas := make([]Metadata, len(chunks))
	ids := make([]PointID, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		metadatas[i] = c.Metadata
		ids[i] = c.ID
	}
	return s.AddTexts(ctx, texts, metadatas, ids)
}

// AddWithSourceIDs ingests texts with one {source_id: id} metadata map each.
func (s *Store) AddWithSourceIDs(ctx context.Context, texts []string, sourceIDs []string) ([]PointID, error) {
	if len(sourceIDs) != len(texts) {
		return nil, fmt.Errorf("%w: %d source ids for %d texts", ErrMetadataLengthMismatch, len(sourceIDs), len(texts))
	}
	metadatas := make([]Metadata, len(sourceIDs))
	for i, sid := range sourceIDs {
		metadatas[i] = Metadata{SourceIDKey: sid}
	}
	return s.AddTexts(ctx, texts, metadatas, nil)
}

// AddTexts embeds texts and upserts them in one batch, creating the
// collection on first use. metadatas and ids may be nil; otherwise they must
// match texts in length. Zero ids are generated. Caller maps are copied, never
// mutated, and derived fields only fill keys the caller left unset.
//
// Input mistakes are returned as errors. Backend and embedding failures are
// logged and yield a nil slice with a nil error, as does a disconnected Store.
func (s *Store) AddTexts(ctx context.Context, texts []string, metadatas []Metadata, ids []PointID) ([]PointID, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := validateBatch(texts, metadatas, ids); err != nil {
		return nil, err
	}

	client, ok := s.client(ctx, opAdd)
	if !ok {
		return nil, nil
	}

	ctx, op := s.startOp(ctx, opAdd, attribute.Int("batch_size", len(texts)))

	now := s.now()
	stored := make([]PointID, len(texts))
	points := make([]*qdrant.Point, len(texts))
	for i, text := range texts {
		var id PointID
		if ids != nil {
			id = ids[i]
		}
		if id.IsZero() {
			id = NewPointID()
		}
		var md Metadata
		if metadatas != nil {
			md = metadatas[i]
		}
		stored[i] = id.Stored()
		points[i] = &qdrant.Point{
			ID:      id.backend(),
			Payload: reconcile(text, id, md, now),
		}
	}

	err := s.attachVectors(ctx, client, texts, points)
	if err == nil {
		err = client.Upsert(ctx, s.collection, points)
	}
	if err != nil {
		s.logger.Error(ctx, "failed to add documents",
			zap.Int("batch_size", len(texts)),
			zap.Bool("transient", qdrant.IsTransient(err)),
			zap.Error(err),
		)
		op.fail(resultError, err)
		return nil, nil
	}

	s.logger.Debug(ctx, "documents added", zap.Int("count", len(points)))
	op.succeed(attribute.Int("points_added", len(points)))
	return stored, nil
}

func validateBatch(texts []string, metadatas []Metadata, ids []PointID) error {
	if metadatas != nil && len(metadatas) != len(texts) {
		return fmt.Errorf("%w: %d metadata entries for %d texts", ErrMetadataLengthMismatch, len(metadatas), len(texts))
	}
	if ids != nil && len(ids) != len(texts) {
		return fmt.Errorf("%w: %d ids for %d texts", ErrIDLengthMismatch, len(ids), len(texts))
	}
	for i, t := range texts {
		if t == "" {
			return fmt.Errorf("%w: index %d", ErrEmptyText, i)
		}
	}
	return nil
}

// attachVectors embeds texts with every configured model, then makes sure
// the collection exists with matching vector names.
func (s *Store) attachVectors(ctx context.Context, client qdrant.Client, texts []string, points []*qdrant.Point) error {
	dense, err := s.dense.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding documents: %w", err)
	}
	if len(dense) != len(points) {
		return fmt.Errorf("embedding documents: got %d vectors for %d texts", len(dense), len(points))
	}

	for i, p := range points {
		p.Vectors = map[string]qdrant.Vector{s.denseName: qdrant.DenseVector(dense[i])}
	}

	if s.sparse != nil {
		sv, err := s.sparse.EncodeDocuments(texts)
		if err != nil {
			return fmt.Errorf("encoding sparse vectors: %w", err)
		}
		for i, p := range points {
			p.Vectors[s.sparseName] = qdrant.SparseVector(sv[i].Indices, sv[i].Values)
		}
	}

	return s.ensureCollection(ctx, client, uint64(len(dense[0])))
}

// ensureCollection creates the collection when the backend does not have it.
// Positive answers are cached for the Store's lifetime.
func (s *Store) ensureCollection(ctx context.Context, client qdrant.Client, denseSize uint64) error {
	if _, ok := s.known.Load(s.collection); ok {
		return nil
	}

	exists, err := client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if !exists {
		schema := qdrant.CollectionSchema{
			Name:      s.collection,
			DenseName: s.denseName,
			DenseSize: denseSize,
		}
		if s.sparse != nil {
			schema.SparseName = s.sparseName
		}
		if err := client.CreateCollection(ctx, schema); err != nil && !qdrant.IsAlreadyExists(err) {
			return fmt.Errorf("creating collection: %w", err)
		}
		s.logger.Info(ctx, "collection created",
			zap.String("dense_vector", s.denseName),
			zap.Uint64("dense_size", denseSize),
			zap.String("sparse_vector", schema.SparseName),
		)
	}

	s.known.Store(s.collection, struct{}{})
	return nil
}
