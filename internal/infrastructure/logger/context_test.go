package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAndFromContext(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithContext(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	// No-op logger must not panic
	logger.Info("should be discarded")
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx, enriched := WithRequestID(context.Background(), logger, "req-123")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	enriched.Info("something happened")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "req-123", logs[0].ContextMap()["request_id"])
}

func TestWithActorID(t *testing.T) {
	ctx, _ := WithActorID(context.Background(), zap.NewNop(), "admin-7")
	assert.Equal(t, "admin-7", GetActorID(ctx))
}

func TestWithBatchID(t *testing.T) {
	ctx, _ := WithBatchID(context.Background(), zap.NewNop(), "batch-42")
	assert.Equal(t, "batch-42", GetBatchID(ctx))
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Equal(t, "", GetRequestID(context.Background()))
	assert.Equal(t, "", GetActorID(context.Background()))
	assert.Equal(t, "", GetBatchID(context.Background()))
}

func TestL_EnrichesFromContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithContext(context.Background(), base)
	ctx = context.WithValue(ctx, ActorIDKey, "admin-1")
	ctx = context.WithValue(ctx, BatchIDKey, "batch-9")

	L(ctx).Info("bulk run event")

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "admin-1", fields["actor_id"])
	assert.Equal(t, "batch-9", fields["batch_id"])
}

func TestL_MissingLoggerIsNoop(t *testing.T) {
	// Must not panic without a logger in context
	L(context.Background()).Info("discarded")
}
