package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurocost/pkg/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestFromConfigJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := FromConfig(config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	ctx := context.Background()
	l.LogTraining(ctx, "lcm", 40, 1.25, time.Second, nil)
	l.LogChoice(ctx, "q1.sql", "baseline", 3, 3, 0) // debug, filtered

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "training completed", rec["msg"])
	assert.Equal(t, "lcm", rec["model"])
	assert.EqualValues(t, 40, rec["samples"])
}

func TestFromConfigRejectsUnknownFormat(t *testing.T) {
	_, err := FromConfig(config.LogConfig{Level: "info", Format: "xml"}, nil)
	assert.Error(t, err)
}

func TestHelpersLevels(t *testing.T) {
	var buf bytes.Buffer
	l, err := FromConfig(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)
	ctx := context.Background()

	l.LogArtifact(ctx, "lcm", "lcm", "id", true, nil)
	assert.Empty(t, buf.String())

	l.LogFallback(ctx, "lcm", "artifact not found")
	assert.Contains(t, buf.String(), "falling back to training")

	buf.Reset()
	l.LogArtifact(ctx, "lcm", "lcm", "", false, errors.New("disk full"))
	assert.Contains(t, buf.String(), "disk full")
}

func TestNilLoggerOr(t *testing.T) {
	var l *Logger
	assert.NotNil(t, l.Or())
	l.Or().Info("dropped")
}
