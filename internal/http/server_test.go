package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragstore/internal/logging"
)

type stubStore struct {
	connected bool
	diag      error
}

func (s stubStore) Connected() bool    { return s.connected }
func (s stubStore) Diagnostic() error  { return s.diag }
func (s stubStore) Collection() string { return "docs" }

func TestNewServer(t *testing.T) {
	t.Run("applies default address", func(t *testing.T) {
		server, err := NewServer(stubStore{connected: true}, logging.NewNop(), nil)
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, DefaultAddr, server.config.Addr)
	})

	t.Run("keeps configured address", func(t *testing.T) {
		cfg := &Config{Addr: "127.0.0.1:9999", Version: "1.2.3"}
		server, err := NewServer(stubStore{connected: true}, logging.NewNop(), cfg)
		require.NoError(t, err)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(stubStore{}, nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when store is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil)
		assert.ErrorContains(t, err, "store cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		store      stubStore
		wantCode   int
		wantStatus string
		wantError  string
	}{
		{
			name:       "connected",
			store:      stubStore{connected: true},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "degraded",
			store:      stubStore{diag: errors.New("connecting to http://localhost:6333: refused")},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantError:  "connecting to http://localhost:6333: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.store, logging.NewNop(), &Config{Version: "test"})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			server.echo.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "docs", resp.Collection)
			assert.Equal(t, "test", resp.Version)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
		})
	}
}

func TestHandleMetrics(t *testing.T) {
	server, err := NewServer(stubStore{connected: true}, logging.NewNop(), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"), "default Go collector is exposed")
}

func TestRequestLogging(t *testing.T) {
	logs := logging.NewTestLogger()
	server, err := NewServer(stubStore{connected: true}, logs.Logger, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.echo.ServeHTTP(httptest.NewRecorder(), req)

	logs.AssertField(t, "http request", "uri", "/health")
	logs.AssertField(t, "http request", "status", int64(http.StatusOK))
}
