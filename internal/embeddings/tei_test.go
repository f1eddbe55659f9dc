package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// teiServer answers /embed with one vector of length dim per input.
func teiServer(t *testing.T, dim int, status int) (*httptest.Server, *[]teiRequest) {
	t.Helper()
	var seen []teiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req teiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)

		if status != http.StatusOK {
			http.Error(w, "model overloaded", status)
			return
		}
		n := 1
		if inputs, ok := req.Inputs.([]any); ok {
			n = len(inputs)
		}
		out := make([][]float32, n)
		for i := range out {
			out[i] = make([]float32, dim)
			out[i][0] = float32(i + 1)
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestTEIProvider_EmbedDocuments(t *testing.T) {
	srv, seen := teiServer(t, 4, http.StatusOK)

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL + "/", Model: "unknown-model"})
	require.NoError(t, err)
	assert.Equal(t, 384, p.Dimension())

	vecs, err := p.EmbedDocuments(context.Background(), []string{"flour", "butter"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, 4, p.Dimension(), "dimension follows the server's response")

	require.Len(t, *seen, 1)
	assert.True(t, (*seen)[0].Truncate)
}

func TestTEIProvider_EmbedQuery(t *testing.T) {
	srv, seen := teiServer(t, 3, http.StatusOK)

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Model: "BAAI/bge-small-en-v1.5"})
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "flour")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.Equal(t, "flour", (*seen)[0].Inputs)
}

func TestTEIProvider_Errors(t *testing.T) {
	srv, _ := teiServer(t, 3, http.StatusServiceUnavailable)

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.EmbedDocuments(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(ctx, "flour")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestTEIProvider_APIKey(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[[0.5]]`))
	}))
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Model: "m", APIKey: "tok"})
	require.NoError(t, err)
	_, err = p.EmbedQuery(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)
}
