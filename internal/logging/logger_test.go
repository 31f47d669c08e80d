package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/collabtask/internal/model"
)

func TestNew_FallsBackToInfo(t *testing.T) {
	logger := New(model.LogConfig{Level: "chatty", Encoding: "json"})
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "collabtask.log")
	logger := New(model.LogConfig{Level: "info", Encoding: "json", File: path})
	logger.Info("hello file")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	WithRequestID(ctx, base).Info("hello")
	WithRequestID(context.Background(), base).Info("plain")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
	assert.Equal(t, "req-1", RequestID(ctx))
}
