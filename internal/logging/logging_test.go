package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer

	// a buffer is not a terminal, so auto picks json
	logger, err := New(&buf, "info", "")
	require.NoError(t, err)
	logger.Info("hello", "seeds", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, float64(3), rec["seeds"])

	buf.Reset()
	logger, err = New(&buf, "warn", "text")
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept")
	assert.False(t, strings.Contains(buf.String(), "dropped"))
	assert.Contains(t, buf.String(), "msg=kept")

	_, err = New(&buf, "info", "xml")
	assert.Error(t, err)
}
