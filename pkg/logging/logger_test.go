package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "warn")

	logger.Info("dropped")
	logger.Warn("kept", "reservation_id", "R1")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "R1", rec["reservation_id"])
}

func TestWith_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "debug").With("component", "draft")
	logger.Debug("set")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "draft", rec["component"])
}

func TestParseLevel_UnknownFallsBackToInfo(t *testing.T) {
	assert.Equal(t, parseLevel("info"), parseLevel("verbose"))
}
