package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("dropped")
	log.Warn("kept", zap.String("business_day", "2024-03-11"))
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "2024-03-11", entry["business_day"])
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	log := zap.NewExample()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}
