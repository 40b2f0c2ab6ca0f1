package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("fatal")
	require.False(t, ok)
}

// TestContextLogger ensures records written through a context carry its name and fields.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(&buf, zapcore.DebugLevel))
	ctx = WithName(ctx, "release")
	ctx = WithKV(ctx, "target", "linux/amd64")

	InfoKV(ctx, "Building", "output", "dist/qtcdbg")

	out := buf.String()
	require.Contains(t, out, "release")
	require.Contains(t, out, "Building")
	require.Contains(t, out, "linux/amd64")
	require.Contains(t, out, "dist/qtcdbg")
}

// TestFormattedHelpers ensures the printf-style helpers honor the logger level.
func TestFormattedHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(&buf, zapcore.InfoLevel))

	Debugf(ctx, "toolchain: %s", "hidden")
	Infof(ctx, "created %s", "arch/qtcdbg-1.23-linux-amd64.tar.gz")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "created arch/qtcdbg-1.23-linux-amd64.tar.gz")
}

// TestFromContextFallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}
