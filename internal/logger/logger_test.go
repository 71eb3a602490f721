package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	reqLog := slog.New(slog.NewJSONHandler(&buf, nil)).With("request_id", "r-1")

	ctx := NewContext(context.Background(), reqLog)
	FromContext(ctx).Info("hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "r-1", rec["request_id"])
	assert.Equal(t, "hello", rec["msg"])

	assert.NotNil(t, FromContext(context.Background()))
}
