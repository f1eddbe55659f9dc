// Package qdrant is the vector store's client for the Qdrant gRPC API.
package qdrant

import (
	"context"

	"github.com/qdrant/go-client/qdrant"
)

// PointID is the backend point identifier: a UUID string or an unsigned integer.
type PointID = qdrant.PointId

// Filter is the backend filter, passed through to queries unmodified.
// FilterSpec builds one from plain conditions.
type Filter = qdrant.Filter

// Client is the subset of the Qdrant API the vector store needs.
// Every method is a single round trip and none of them retry.
type Client interface {
	// Health checks that the backend answers.
	Health(ctx context.Context) error

	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, schema CollectionSchema) error

	// Upsert writes points and waits until they are applied.
	Upsert(ctx context.Context, collection string, points []*Point) error

	// Query runs a nearest-neighbour query, fused across prefetches when
	// the request carries a sparse vector.
	Query(ctx context.Context, req *QueryRequest) ([]*ScoredPoint, error)

	// Scroll reads one page of points in id order.
	Scroll(ctx context.Context, req *ScrollRequest) (*ScrollPage, error)

	// CreatePayloadIndex creates a payload index and waits for it.
	CreatePayloadIndex(ctx context.Context, collection, field string, kind IndexKind) error

	Close() error
}

// CollectionSchema describes the named vectors of a collection.
type CollectionSchema struct {
	Name      string
	DenseName string
	DenseSize uint64
	// SparseName is empty for dense-only collections.
	SparseName string
}

// Vector is a dense vector, or a sparse one when Indices is set.
type Vector struct {
	Dense   []float32
	Indices []uint32
	Values  []float32
}

// DenseVector wraps a dense embedding.
func DenseVector(v []float32) Vector {
	return Vector{Dense: v}
}

// SparseVector wraps a sparse embedding.
func SparseVector(indices []uint32, values []float32) Vector {
	return Vector{Indices: indices, Values: values}
}

// IsSparse reports whether v holds a sparse vector.
func (v Vector) IsSparse() bool {
	return v.Indices != nil
}

// Point is a point to upsert.
type Point struct {
	ID      *PointID
	Vectors map[string]Vector
	Payload map[string]any
}

// ScoredPoint is a query hit.
type ScoredPoint struct {
	ID      *PointID
	Score   float32
	Payload map[string]any
}

// RetrievedPoint is a scrolled point.
type RetrievedPoint struct {
	ID      *PointID
	Payload map[string]any
}

// QueryRequest describes a dense or hybrid query.
type QueryRequest struct {
	Collection string

	DenseName string
	Dense     []float32

	// SparseName and Sparse are set together for hybrid queries.
	SparseName string
	Sparse     *Vector

	Filter         *Filter
	Limit          uint64
	ScoreThreshold *float32
}

// Hybrid reports whether the request fuses a sparse prefetch.
func (r *QueryRequest) Hybrid() bool {
	return r.Sparse != nil && r.SparseName != ""
}

// ScrollRequest reads the page starting at Cursor.
type ScrollRequest struct {
	Collection string
	Limit      uint32
	Cursor     Cursor
	Filter     *Filter
}

// ScrollPage is one scroll response. Next is zero on the last page.
type ScrollPage struct {
	Points []*RetrievedPoint
	Next   Cursor
}
