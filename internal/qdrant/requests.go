package qdrant

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// IndexKind is the schema type of a payload index.
type IndexKind int

// Supported payload index kinds.
const (
	IndexKeyword IndexKind = iota
	IndexInteger
	IndexFloat
	IndexBool
	IndexDatetime
)

func (k IndexKind) String() string {
	switch k {
	case IndexKeyword:
		return "keyword"
	case IndexInteger:
		return "integer"
	case IndexFloat:
		return "float"
	case IndexBool:
		return "bool"
	case IndexDatetime:
		return "datetime"
	default:
		return fmt.Sprintf("IndexKind(%d)", int(k))
	}
}

func (k IndexKind) fieldType() (qdrant.FieldType, error) {
	switch k {
	case IndexKeyword:
		return qdrant.FieldType_FieldTypeKeyword, nil
	case IndexInteger:
		return qdrant.FieldType_FieldTypeInteger, nil
	case IndexFloat:
		return qdrant.FieldType_FieldTypeFloat, nil
	case IndexBool:
		return qdrant.FieldType_FieldTypeBool, nil
	case IndexDatetime:
		return qdrant.FieldType_FieldTypeDatetime, nil
	default:
		return 0, fmt.Errorf("unknown index kind %d", int(k))
	}
}

func buildCreateCollection(schema CollectionSchema, distance qdrant.Distance) (*qdrant.CreateCollection, error) {
	if schema.Name == "" || schema.DenseName == "" {
		return nil, fmt.Errorf("collection and dense vector names are required")
	}
	if schema.DenseSize == 0 {
		return nil, fmt.Errorf("dense vector size must be positive")
	}

	req := &qdrant.CreateCollection{
		CollectionName: schema.Name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			schema.DenseName: {
				Size:     schema.DenseSize,
				Distance: distance,
			},
		}),
	}
	if schema.SparseName != "" {
		// BM25 weights carry term frequency only; the server applies IDF.
		req.SparseVectorsConfig = qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			schema.SparseName: {Modifier: qdrant.Modifier_Idf.Enum()},
		})
	}
	return req, nil
}

// buildQueryPoints lays out a dense query, or a hybrid one: a dense and a
// sparse prefetch, both filtered and limited, fused with RRF at the top.
func buildQueryPoints(r *QueryRequest) *qdrant.QueryPoints {
	q := &qdrant.QueryPoints{
		CollectionName: r.Collection,
		Filter:         r.Filter,
		Limit:          qdrant.PtrOf(r.Limit),
		ScoreThreshold: r.ScoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if !r.Hybrid() {
		q.Query = qdrant.NewQueryDense(r.Dense)
		q.Using = qdrant.PtrOf(r.DenseName)
		return q
	}

	q.Prefetch = []*qdrant.PrefetchQuery{
		{
			Query:  qdrant.NewQueryDense(r.Dense),
			Using:  qdrant.PtrOf(r.DenseName),
			Filter: r.Filter,
			Limit:  qdrant.PtrOf(r.Limit),
		},
		{
			Query:  qdrant.NewQuerySparse(r.Sparse.Indices, r.Sparse.Values),
			Using:  qdrant.PtrOf(r.SparseName),
			Filter: r.Filter,
			Limit:  qdrant.PtrOf(r.Limit),
		},
	}
	q.Query = qdrant.NewQueryFusion(qdrant.Fusion_RRF)
	return q
}

func buildScrollPoints(r *ScrollRequest) *qdrant.ScrollPoints {
	return &qdrant.ScrollPoints{
		CollectionName: r.Collection,
		Filter:         r.Filter,
		Offset:         r.Cursor.proto(),
		Limit:          qdrant.PtrOf(r.Limit),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
}
