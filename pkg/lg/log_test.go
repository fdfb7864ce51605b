package lg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZap(zap.New(core)).With(String("host", "10.0.0.1"))

	logger.Debug("dialing")
	logger.Info("connected", Int("port", 22))
	logger.Warn("close failed", Err(errors.New("eof")))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "dialing", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "10.0.0.1", entries[1].ContextMap()["host"])
	assert.Equal(t, int64(22), entries[1].ContextMap()["port"])
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZap(zap.New(core))

	ctx := Attach(context.Background(), logger)
	FromContext(ctx).Info("hello")
	assert.Equal(t, 1, logs.Len())

	_, ok := FromContext(context.Background()).(defaultLogger)
	assert.True(t, ok, "missing logger should fall back to defaultLogger")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard.With(String("k", "v")).Error("ignored")
		assert.NoError(t, Discard.Sync())
	})
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "", flatten())
	out := flatten(String("user", "alice"), Int("attempts", 3))
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "3")
}

func TestNewConsoleLogger(t *testing.T) {
	logger := New(&Config{ServiceName: "netexec", Format: "console"})
	_, ok := logger.(*zapLogger)
	assert.True(t, ok)
}
