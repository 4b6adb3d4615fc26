package testutil_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxntd/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxntd/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_WithSharesBuffer(t *testing.T) {
	logger := testutil.NewMockLogger()
	child := logger.With(logging.String(logging.FieldList, "product"))
	child.Warn("normalization failed", logging.Int(logging.FieldPosition, 3))

	warns := logger.MessagesAt("warn")
	require.Len(t, warns, 1)
	list, ok := warns[0].Field(logging.FieldList)
	require.True(t, ok)
	assert.Equal(t, "product", list)
	pos, ok := warns[0].Field(logging.FieldPosition)
	require.True(t, ok)
	assert.Equal(t, 3, pos)
}

func TestMockLogger_WithContextBindsRunID(t *testing.T) {
	logger := testutil.NewMockLogger()
	ctx := logging.WithRunID(context.Background(), "run-1")
	logger.WithContext(ctx).Info("hello")

	id, ok := logger.GetMessages()[0].Field(logging.FieldRunID)
	require.True(t, ok)
	assert.Equal(t, "run-1", id)
}

func TestNopLogger(t *testing.T) {
	var logger logging.Logger = testutil.NewNopLogger()

	logger.Info("test info")
	logger.Error("test error")

	assert.NotNil(t, logger.Named("x"))
}
