package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "debug message")
	logger.Info(context.Background(), "info message")
	assert.Empty(t, buf.String())

	logger.Warn(context.Background(), errors.New("boom"), "warn message")
	assert.Contains(t, buf.String(), "warn message")
	assert.Contains(t, buf.String(), "boom")
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("include").With("resource", "page.xml").
		Info(context.Background(), "resolved", "includes", 3)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "resolved", record["msg"])
	assert.Equal(t, "include", record["component"])
	assert.Equal(t, "page.xml", record["resource"])
	assert.Equal(t, float64(3), record["includes"])
}

func TestLoggerErrorType(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.Warn(context.Background(), cerrors.NewMissingDictionaryError("site", "fr"), "skipped locale")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "missing_dictionary", record["error_type"])
	assert.NotEmpty(t, record["error"])
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})
	_ = parent.With("child", true)

	parent.Info(context.Background(), "parent")
	assert.NotContains(t, buf.String(), "child")
}

func TestDiscard(t *testing.T) {
	logger := OrDiscard(nil)
	require.NotNil(t, logger)
	logger.Error(context.Background(), errors.New("x"), "dropped")
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Output: &buf})

	op := StartOperation(logger, "localize")
	op.End(context.Background(), "locale", "es")

	assert.Contains(t, buf.String(), "operation=localize")
	assert.Contains(t, buf.String(), "duration_ms")
	assert.Contains(t, buf.String(), "locale=es")
}
