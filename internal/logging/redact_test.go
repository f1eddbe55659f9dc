package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encodeWith(t *testing.T, cfg RedactionConfig, fields ...zapcore.Field) string {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Unix(0, 0),
		Message: "connecting",
	}, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestRedactingEncoder_EntryFields(t *testing.T) {
	cfg := NewDefaultConfig().Redaction

	out := encodeWith(t, cfg,
		zap.String("api_key", "sk-1234567890"),
		zap.String("header", "Bearer abc.def.ghi"),
		zap.String("endpoint", "http://localhost:6333"),
	)

	assert.NotContains(t, out, "sk-1234567890")
	assert.NotContains(t, out, "abc.def.ghi")
	assert.Contains(t, out, `"api_key":"[REDACTED]"`)
	assert.Contains(t, out, `"header":"[REDACTED:pattern]"`)
	assert.Contains(t, out, `"endpoint":"http://localhost:6333"`)
}

func TestRedactingEncoder_CaseInsensitiveKeys(t *testing.T) {
	out := encodeWith(t, NewDefaultConfig().Redaction, zap.String("API_KEY", "value"))
	assert.Contains(t, out, `"API_KEY":"[REDACTED]"`)
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	child := enc.Clone()
	child.AddString("token", "t0k3n")

	buf, err := child.EncodeEntry(zapcore.Entry{Message: "x"}, nil)
	require.NoError(t, err)
	defer buf.Free()
	assert.NotContains(t, buf.String(), "t0k3n")
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	out := encodeWith(t, RedactionConfig{Enabled: false}, zap.String("password", "plain"))
	assert.Contains(t, out, "plain")
}

func TestNewRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{
		Enabled:  true,
		Patterns: []string{"(unclosed"},
	})
	assert.Error(t, err)
}

func TestSecretField(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "dialing", Secret("api_key", config.Secret("abcdef")))

	entries := tl.FilterMessage("dialing").All()
	require.Len(t, entries, 1)
	obj, ok := entries[0].ContextMap()["api_key"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "[REDACTED:6]", obj["api_key"])
}

func TestRedactedString(t *testing.T) {
	f := RedactedString("token", "12345")
	assert.Equal(t, "[REDACTED:5]", f.String)
}
