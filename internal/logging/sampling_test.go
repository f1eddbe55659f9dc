package logging

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    1,
		Thereafter: 0,
	})
	logger := zap.New(sampled)

	for i := 0; i < 5; i++ {
		logger.Info("repeated info")
		logger.Error("repeated error")
	}

	assert.Equal(t, 1, observed.FilterMessage("repeated info").Len())
	assert.Equal(t, 5, observed.FilterMessage("repeated error").Len())
}

func TestSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Same(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}

func TestLevelFilterCore(t *testing.T) {
	core, _ := observer.New(TraceLevel)

	below := &levelFilterCore{Core: core, maxLevel: zapcore.WarnLevel, hasMax: true}
	assert.True(t, below.Enabled(TraceLevel))
	assert.True(t, below.Enabled(zapcore.WarnLevel))
	assert.False(t, below.Enabled(zapcore.ErrorLevel))

	above := &levelFilterCore{Core: core, minLevel: zapcore.ErrorLevel, hasMin: true}
	assert.False(t, above.Enabled(zapcore.InfoLevel))
	assert.True(t, above.Enabled(zapcore.ErrorLevel))

	child, ok := above.With([]zapcore.Field{zap.String("k", "v")}).(*levelFilterCore)
	assert.True(t, ok)
	assert.False(t, child.Enabled(zapcore.InfoLevel))
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"trace", TraceLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{" Info ", zapcore.InfoLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
