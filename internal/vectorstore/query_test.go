package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/ragstore/internal/qdrant"
	"github.com/fyrsmithlabs/ragstore/internal/telemetry"
)

var recipe = []string{
	"flour 1 cup",
	"sugar 2 tablespoons",
	"eggs 3 large",
	"butter 100 grams",
}

func seedRecipe(t *testing.T, env *testEnv) []PointID {
	t.Helper()
	metas := []Metadata{
		{"lang": "en", "source": "cake.md"},
		{"lang": "en", "source": "cake.md"},
		{"lang": "de", "source": "kuchen.md"},
		{"lang": "en", "source": "cake.md"},
	}
	ids, err := env.store.AddTexts(context.Background(), recipe, metas, nil)
	require.NoError(t, err)
	require.Len(t, ids, len(recipe))
	return ids
}

func TestQuery_ReturnsBestMatch(t *testing.T) {
	for _, hybrid := range []bool{false, true} {
		name := "dense"
		if hybrid {
			name = "hybrid"
		}
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, hybrid)
			ids := seedRecipe(t, env)

			results := env.store.Query(context.Background(), "how much flour", 1)

			require.Len(t, results, 1)
			got := results[0]
			assert.Equal(t, "flour 1 cup", got.PageContent)
			assert.Equal(t, ids[0], got.ID)
			require.NotNil(t, got.Score)
			assert.Greater(t, *got.Score, float32(0))
			assert.Equal(t, "cake.md", got.Metadata["source"])
			assert.Equal(t, "flour 1 cup", got.Metadata[PageContentKey])
		})
	}
}

func TestQuery_ResultOrderAndLimit(t *testing.T) {
	env := newTestEnv(t, false)
	seedRecipe(t, env)

	results := env.store.Query(context.Background(), "sugar flour", 3)

	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, *results[i-1].Score, *results[i].Score)
	}
	assert.Equal(t, uint64(3), env.client.queries[0].Limit)
}

func TestQuery_HybridRequest(t *testing.T) {
	tests := []struct {
		name       string
		hybrid     bool
		query      string
		wantHybrid bool
	}{
		{name: "dense store", query: "flour", wantHybrid: false},
		{name: "hybrid store", hybrid: true, query: "flour", wantHybrid: true},
		{name: "stopwords only fall back to dense", hybrid: true, query: "the and of", wantHybrid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.hybrid)
			seedRecipe(t, env)

			results := env.store.Query(context.Background(), tt.query, 2)
			assert.NotNil(t, results)

			require.Len(t, env.client.queries, 1)
			req := env.client.queries[0]
			assert.Equal(t, tt.wantHybrid, req.Hybrid())
			assert.Equal(t, "fast-all-minilm-l6-v2", req.DenseName)
			assert.Len(t, req.Dense, fakeDim)
			if tt.wantHybrid {
				assert.Equal(t, "fast-sparse-bm25", req.SparseName)
				assert.NotEmpty(t, req.Sparse.Indices)
			}
		})
	}
}

func TestQuery_ScoreThreshold(t *testing.T) {
	env := newTestEnv(t, false)
	seedRecipe(t, env)

	results := env.store.Query(context.Background(), "flour", 4, WithScoreThreshold(0.5))

	require.Len(t, results, 1)
	assert.Equal(t, "flour 1 cup", results[0].PageContent)
	for _, r := range results {
		assert.GreaterOrEqual(t, *r.Score, float32(0.5))
	}
	require.NotNil(t, env.client.queries[0].ScoreThreshold)
	assert.Equal(t, float32(0.5), *env.client.queries[0].ScoreThreshold)
}

func TestQuery_Filter(t *testing.T) {
	env := newTestEnv(t, true)
	seedRecipe(t, env)

	spec := qdrant.FilterSpec{Must: []qdrant.Condition{qdrant.Match("lang", "de")}}
	filter, err := spec.ToProto()
	require.NoError(t, err)

	results := env.store.Query(context.Background(), "flour eggs", 4, WithFilter(filter))

	require.Len(t, results, 1)
	assert.Equal(t, "eggs 3 large", results[0].PageContent)
	assert.Same(t, filter, env.client.queries[0].Filter)
}

func TestQuery_NonPositiveLimit(t *testing.T) {
	for _, limit := range []int{0, -3} {
		env := newTestEnv(t, false)
		seedRecipe(t, env)

		env.store.Query(context.Background(), "flour", limit)

		require.Len(t, env.client.queries, 1)
		assert.Equal(t, uint64(DefaultQueryLimit), env.client.queries[0].Limit)
		env.logs.AssertLogged(t, zapcore.WarnLevel, "non-positive query limit")
	}
}

func TestQuery_EmptyText(t *testing.T) {
	env := newTestEnv(t, false)
	seedRecipe(t, env)

	assert.Empty(t, env.store.Query(context.Background(), "   ", 3))
	assert.Empty(t, env.client.queries)
	assert.Equal(t, 1, env.dense.calls, "only the seeding call embeds")
}

func TestQuery_Failures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*testEnv)
		logMsg string
	}{
		{
			name:   "backend error",
			setup:  func(e *testEnv) { e.client.errs["query"] = errBackend },
			logMsg: "query failed",
		},
		{
			name:   "embedding error",
			setup:  func(e *testEnv) { e.dense.err = errors.New("no model") },
			logMsg: "failed to embed query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true)
			seedRecipe(t, env)
			tt.setup(env)

			results := env.store.Query(context.Background(), "flour", 2)

			assert.Nil(t, results)
			env.logs.AssertLogged(t, zapcore.ErrorLevel, tt.logMsg)
		})
	}
}

func TestQuery_EmptyCollection(t *testing.T) {
	env := newTestEnv(t, false)
	env.client.schemas["test_collection"] = qdrant.CollectionSchema{Name: "test_collection"}

	results := env.store.Query(context.Background(), "anything", 5)

	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestQuery_Span(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	tel.InstallGlobal(t)
	env := newTestEnv(t, true)
	seedRecipe(t, env)

	env.store.Query(context.Background(), "flour", 2)

	tel.AssertSpanAttribute(t, "vectorstore.query", "limit", int64(2))
	tel.AssertSpanAttribute(t, "vectorstore.query", "hybrid", true)
	tel.AssertSpanAttribute(t, "vectorstore.query", "results_count", int64(2))
}
