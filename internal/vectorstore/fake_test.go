package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/fyrsmithlabs/ragstore/internal/qdrant"
)

var errBackend = errors.New("backend unavailable")

type storedPoint struct {
	id      *qdrant.PointID
	vectors map[string]qdrant.Vector
	payload map[string]any
}

// fakeClient is an in-memory qdrant.Client. Points keep insertion order,
// which stands in for the backend's id order.
type fakeClient struct {
	mu sync.Mutex

	schemas map[string]qdrant.CollectionSchema
	points  map[string][]*storedPoint

	// errs fails the named method ("upsert", "query", ...) with its error.
	errs map[string]error
	// indexErrs fails CreatePayloadIndex for one field.
	indexErrs map[string]error
	// scrollFailOn fails the nth Scroll call (1-based) when positive.
	scrollFailOn int
	// stall makes Scroll hand back the cursor it received.
	stall bool
	// rewindTo, when set, is returned as the next cursor of the last page.
	rewindTo *qdrant.PointID

	calls         map[string]int
	queries       []*qdrant.QueryRequest
	scrolls       []*qdrant.ScrollRequest
	indexed       map[string]qdrant.IndexKind
	issued        map[string]bool
	unknownCursor []string
	closed        int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		schemas:   make(map[string]qdrant.CollectionSchema),
		points:    make(map[string][]*storedPoint),
		errs:      make(map[string]error),
		indexErrs: make(map[string]error),
		calls:     make(map[string]int),
		indexed:   make(map[string]qdrant.IndexKind),
		issued:    make(map[string]bool),
	}
}

func (f *fakeClient) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeClient) enter(method string) error {
	f.calls[method]++
	return f.errs[method]
}

func (f *fakeClient) Health(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("health")
}

func (f *fakeClient) CollectionExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("exists"); err != nil {
		return false, err
	}
	_, ok := f.schemas[name]
	return ok, nil
}

func (f *fakeClient) CreateCollection(_ context.Context, schema qdrant.CollectionSchema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("create"); err != nil {
		return err
	}
	if _, ok := f.schemas[schema.Name]; ok {
		return fmt.Errorf("collection %q already exists", schema.Name)
	}
	f.schemas[schema.Name] = schema
	return nil
}

func (f *fakeClient) Upsert(_ context.Context, collection string, points []*qdrant.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("upsert"); err != nil {
		return err
	}
	if _, ok := f.schemas[collection]; !ok {
		return fmt.Errorf("collection %q not found", collection)
	}
	for _, p := range points {
		sp := &storedPoint{id: p.ID, vectors: p.Vectors, payload: p.Payload}
		replaced := false
		for i, existing := range f.points[collection] {
			if qdrant.IDString(existing.id) == qdrant.IDString(p.ID) {
				f.points[collection][i] = sp
				replaced = true
				break
			}
		}
		if !replaced {
			f.points[collection] = append(f.points[collection], sp)
		}
	}
	return nil
}

func (f *fakeClient) Query(_ context.Context, req *qdrant.QueryRequest) ([]*qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, req)
	if err := f.enter("query"); err != nil {
		return nil, err
	}

	var hits []*qdrant.ScoredPoint
	for _, p := range f.points[req.Collection] {
		if !matchesFilter(p.payload, req.Filter) {
			continue
		}
		score := cosine(req.Dense, p.vectors[req.DenseName].Dense)
		if req.ScoreThreshold != nil && score < *req.ScoreThreshold {
			continue
		}
		hits = append(hits, &qdrant.ScoredPoint{ID: p.id, Score: score, Payload: p.payload})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if uint64(len(hits)) > req.Limit {
		hits = hits[:req.Limit]
	}
	return hits, nil
}

func (f *fakeClient) Scroll(_ context.Context, req *qdrant.ScrollRequest) (*qdrant.ScrollPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls = append(f.scrolls, req)
	if err := f.enter("scroll"); err != nil {
		return nil, err
	}
	if f.scrollFailOn > 0 && f.calls["scroll"] == f.scrollFailOn {
		return nil, errBackend
	}

	all := f.points[req.Collection]
	start := 0
	if !req.Cursor.IsZero() {
		key := req.Cursor.String()
		if !f.issued[key] {
			f.unknownCursor = append(f.unknownCursor, key)
		}
		start = -1
		for i, p := range all {
			if qdrant.IDString(p.id) == key {
				start = i
				break
			}
		}
		if start < 0 {
			return &qdrant.ScrollPage{}, nil
		}
	}
	if f.stall && !req.Cursor.IsZero() {
		return &qdrant.ScrollPage{Points: retrieved(all[start : start+1]), Next: req.Cursor}, nil
	}

	end := start + int(req.Limit)
	if end > len(all) {
		end = len(all)
	}
	page := &qdrant.ScrollPage{Points: retrieved(all[start:end])}
	switch {
	case end < len(all):
		next := all[end].id
		f.issued[qdrant.IDString(next)] = true
		page.Next = qdrant.NewCursor(next)
	case f.rewindTo != nil:
		f.issued[qdrant.IDString(f.rewindTo)] = true
		page.Next = qdrant.NewCursor(f.rewindTo)
	}
	return page, nil
}

func (f *fakeClient) CreatePayloadIndex(_ context.Context, _ string, field string, kind qdrant.IndexKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("index"); err != nil {
		return err
	}
	if err := f.indexErrs[field]; err != nil {
		return err
	}
	if _, ok := f.indexed[field]; ok {
		return fmt.Errorf("index on %q already exists", field)
	}
	f.indexed[field] = kind
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func retrieved(points []*storedPoint) []*qdrant.RetrievedPoint {
	out := make([]*qdrant.RetrievedPoint, len(points))
	for i, p := range points {
		out[i] = &qdrant.RetrievedPoint{ID: p.id, Payload: p.payload}
	}
	return out
}

// matchesFilter supports the Must keyword and integer matches the tests use.
func matchesFilter(payload map[string]any, filter *qdrant.Filter) bool {
	if filter == nil {
		return true
	}
	for _, c := range filter.GetMust() {
		field := c.GetField()
		if field == nil {
			continue
		}
		got, ok := payload[field.GetKey()]
		if !ok {
			return false
		}
		var want string
		switch m := field.GetMatch().GetMatchValue().(type) {
		case *pb.Match_Keyword:
			want = m.Keyword
		case *pb.Match_Integer:
			want = fmt.Sprint(m.Integer)
		default:
			continue
		}
		if fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

const fakeDim = 32

// fakeEmbedder gives every token its own dimension, so texts sharing words
// score higher than texts that do not.
type fakeEmbedder struct {
	mu     sync.Mutex
	vocab  map[string]int
	err    error
	calls  int
	closed int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vocab: make(map[string]int)}
}

func (e *fakeEmbedder) embed(text string) []float32 {
	v := make([]float32, fakeDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,:;!?")
		if tok == "" {
			continue
		}
		idx, ok := e.vocab[tok]
		if !ok {
			idx = len(e.vocab) % fakeDim
			e.vocab[tok] = idx
		}
		v[idx]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range v {
			v[i] /= n
		}
	}
	return v
}

func (e *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.embed(text), nil
}

func (e *fakeEmbedder) Dimension() int { return fakeDim }

func (e *fakeEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}
