// Package sparse encodes text as sparse BM25 term vectors for hybrid search.
//
// Token ids are murmur3 hashes of the stemmed terms, so documents and
// queries agree on ids without a shared vocabulary. Only the term-frequency
// half of BM25 is computed here; the backend applies IDF at query time.
package sparse

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"
)

// BM25 parameters.
const (
	DefaultK1     = 1.2
	DefaultB      = 0.75
	DefaultAvgLen = 256.0
)

// ErrUnsupportedModel is returned for sparse model names no encoder handles.
var ErrUnsupportedModel = errors.New("unsupported sparse model")

// Vector is a sparse vector with indices in ascending order.
type Vector struct {
	Indices []uint32
	Values  []float32
}

// Len returns the number of non-zero entries.
func (v Vector) Len() int {
	return len(v.Indices)
}

// Encoder turns text into sparse vectors.
type Encoder interface {
	// EncodeDocuments weights each text's terms for storage.
	EncodeDocuments(texts []string) ([]Vector, error)
	// EncodeQuery returns the query's distinct terms with unit weight.
	EncodeQuery(text string) (Vector, error)
	// Model returns the configured model name.
	Model() string
	Close() error
}

// BM25 is the Qdrant/bm25 compatible encoder.
type BM25 struct {
	model     string
	tokenizer *Tokenizer
	k1        float64
	b         float64
	avgLen    float64
}

// NewBM25 returns a BM25 encoder with the default parameters.
func NewBM25(model string) *BM25 {
	return &BM25{
		model:     model,
		tokenizer: NewTokenizer(),
		k1:        DefaultK1,
		b:         DefaultB,
		avgLen:    DefaultAvgLen,
	}
}

// New returns the encoder for a sparse model name.
func New(model string) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(model)) {
	case "qdrant/bm25", "bm25":
		return NewBM25(model), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
	}
}

// VectorName returns the named sparse vector used for model in a collection,
// e.g. "fast-sparse-bm25" for "Qdrant/bm25".
func VectorName(model string) string {
	return "fast-sparse-" + strings.ToLower(path.Base(strings.TrimSpace(model)))
}

// Model returns the configured model name.
func (e *BM25) Model() string {
	return e.model
}

// EncodeDocuments returns one vector per text. Texts without terms yield
// empty, non-nil vectors.
func (e *BM25) EncodeDocuments(texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	for i, text := range texts {
		out[i] = e.encodeDocument(text)
	}
	return out, nil
}

func (e *BM25) encodeDocument(text string) Vector {
	tokens := e.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return fromWeights(nil)
	}

	tf := make(map[uint32]float64, len(tokens))
	for _, tok := range tokens {
		tf[TokenID(tok)]++
	}

	docLen := float64(len(tokens))
	norm := e.k1 * (1 - e.b + e.b*docLen/e.avgLen)
	weights := make(map[uint32]float32, len(tf))
	for id, f := range tf {
		weights[id] = float32(f * (e.k1 + 1) / (f + norm))
	}
	return fromWeights(weights)
}

// EncodeQuery returns the distinct terms of text, each weighted 1.
func (e *BM25) EncodeQuery(text string) (Vector, error) {
	tokens := e.tokenizer.Tokenize(text)
	weights := make(map[uint32]float32, len(tokens))
	for _, tok := range tokens {
		weights[TokenID(tok)] = 1
	}
	return fromWeights(weights), nil
}

// Close is a no-op; BM25 holds no resources.
func (e *BM25) Close() error {
	return nil
}

// TokenID hashes a term to its sparse index: the absolute value of the
// signed 32-bit murmur3 hash.
func TokenID(token string) uint32 {
	h := int32(murmur3.Sum32([]byte(token)))
	if h < 0 {
		return uint32(-int64(h))
	}
	return uint32(h)
}

func fromWeights(weights map[uint32]float32) Vector {
	v := Vector{
		Indices: make([]uint32, 0, len(weights)),
		Values:  make([]float32, 0, len(weights)),
	}
	for id := range weights {
		v.Indices = append(v.Indices, id)
	}
	sort.Slice(v.Indices, func(i, j int) bool { return v.Indices[i] < v.Indices[j] })
	for _, id := range v.Indices {
		v.Values = append(v.Values, weights[id])
	}
	return v
}

var _ Encoder = (*BM25)(nil)
