package logger

import (
	"context"
	"testing"

	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextFieldsAreAppended(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &ZapLogger{logger: zap.New(core).Sugar(), level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}

	ctx := context.WithValue(context.Background(), interfaces.RunIDKey, "run-1")
	ctx = context.WithValue(ctx, interfaces.SKUKey, "X1")
	l.InfoWithContext(ctx, "синхронизация", interfaces.LogField{Key: "product_id", Value: int64(7)})

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "run-1", fields["run_id"])
	require.Equal(t, "X1", fields["sku"])
	require.Equal(t, int64(7), fields["product_id"])
}

func TestSetLevel(t *testing.T) {
	l, err := NewZapLogger("warn", false)
	require.NoError(t, err)
	require.Equal(t, interfaces.WarnLevel, l.GetLevel())

	child := l.WithField("component", "test")
	l.SetLevel(interfaces.DebugLevel)
	require.Equal(t, interfaces.DebugLevel, child.GetLevel())
	require.Equal(t, interfaces.InfoLevel, GetLoggerLevel("bogus"))
}

func TestExplicitFieldWinsOverContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &ZapLogger{logger: zap.New(core).Sugar(), level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}

	ctx := context.WithValue(context.Background(), interfaces.SKUKey, "X1")
	l.WarnWithContext(ctx, "повтор", interfaces.LogField{Key: "sku", Value: "X2"})

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Context, 1)
	require.Equal(t, "X2", entries[0].ContextMap()["sku"])
}
