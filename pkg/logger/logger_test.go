package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewRejectsBadEncoding(t *testing.T) {
	_, err := New(Config{Level: "info", Encoding: "xml"})
	assert.Error(t, err)
}

func TestNewWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Config{Level: "debug", Encoding: "console", Dir: dir})
	require.NoError(t, err)

	log.Info("extract finished", zap.Int("posts", 2))
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "extract finished")
	assert.Contains(t, string(data), `"posts":2`)
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithStep(WithRunID(context.Background(), "run-1"), "load")
	FromContext(ctx, base).Info("loaded")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "load", fields["step"])
	assert.Equal(t, "run-1", RunID(ctx))
}
