package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: DebugLevel},
		{in: "INFO", want: InfoLevel},
		{in: "", want: InfoLevel},
		{in: "warning", want: WarnLevel},
		{in: " error ", want: ErrorLevel},
		{in: "fatal", want: FatalLevel},
		{in: "verbose", want: InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "debug", DebugLevel.String())
	assert.Equal(t, "warn", WarnLevel.String())
	assert.Equal(t, "Level(42)", Level(42).String())
}

func TestSlogWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel)

	l.Debug("hidden")
	l.Info("frame sent", "seq", 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "frame sent", rec["msg"])
	assert.InDelta(t, 1, rec["seq"], 0)

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestSlogWriter_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewSlogWriter(&buf, WarnLevel)
	child := parent.With("role", "tx")

	child.Info("dropped")
	assert.Empty(t, buf.String())

	parent.SetLevel(InfoLevel)
	child.Info("kept")
	assert.Contains(t, buf.String(), `"role":"tx"`)
}

func TestZerolog_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerolog(&buf, WarnLevel, false)

	l.Info("dropped")
	assert.Empty(t, buf.String())

	l.Warn("retry budget exhausted", "attempts", 3)
	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"attempts":3`)
	assert.Contains(t, out, "retry budget exhausted")

	buf.Reset()
	child := l.With("peer", "rx")
	l.SetLevel(DebugLevel)
	child.Debug("frame")
	assert.Contains(t, buf.String(), `"peer":"rx"`)
	assert.Equal(t, DebugLevel, child.Level())
}
