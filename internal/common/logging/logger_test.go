package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := NewZapLogger(LogConfig{Level: level, Output: buf})
	require.NoError(t, err)
	return logger, buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"Warn", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "input=%q", tt.input)
	}
}

func TestZapAdapter_Levels(t *testing.T) {
	logger, buf := newBufferLogger(t, WarnLevel)

	logger.Info("not visible")
	logger.Warn("visible warning", Field{"rule_id", 3})

	out := buf.String()
	assert.NotContains(t, out, "not visible")
	assert.Contains(t, out, "visible warning")
	assert.Contains(t, out, "rule_id")
}

func TestZapAdapter_ErrorField(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel)

	logger.Error("dispatch failed", assert.AnError, Field{"target", "t1"})

	out := buf.String()
	assert.Contains(t, out, "dispatch failed")
	assert.Contains(t, out, assert.AnError.Error())
}

func TestZapAdapter_WithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	child := logger.WithFields(Field{"component", "pipeline"})
	child.Info("ingested")

	assert.Contains(t, buf.String(), "pipeline")
}

func TestZapAdapter_WithContext(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	ctx := context.WithValue(context.Background(), "request_id", "req-42")
	logger.WithContext(ctx).Info("handled")

	assert.Contains(t, buf.String(), "req-42")
}

func TestGlobalLogger(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)
	old := GetGlobalLogger()
	SetGlobalLogger(logger)
	defer SetGlobalLogger(old)

	Info("global message", Field{"k", "v"})

	assert.Contains(t, buf.String(), "global message")
}
