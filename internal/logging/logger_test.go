package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"WARN", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"loud", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func fixedClock(l *JSONLogger) {
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
}

func decode(t *testing.T, buf *bytes.Buffer) []Entry {
	t.Helper()
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestJSONLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, WarnLevel)
	fixedClock(l)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", Tick(3))
	l.Error("failed", Error(errors.New("boom")))

	entries := decode(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "shown", entries[0].Message)
	assert.Equal(t, float64(3), entries[0].Fields["tick"])
	assert.Equal(t, "2024-01-02T03:04:05Z", entries[0].Time)
	assert.Equal(t, "boom", entries[1].Fields["error"])
}

func TestJSONLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	parent := NewJSONLogger(&buf, DebugLevel)
	child := parent.With(Component("engine"), VehicleID("v1"))

	child.Info("moved", RoadID("r1"), NodeID("n1"))
	parent.Info("plain")

	entries := decode(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]any{
		"component":  "engine",
		"vehicle_id": "v1",
		"road_id":    "r1",
		"node_id":    "n1",
	}, entries[0].Fields)
	assert.Nil(t, entries[1].Fields, "parent fields untouched")
}

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, Field{Key: "latency", Value: "1.5s"}, Latency(1500*time.Millisecond))
	assert.Equal(t, Field{Key: "count", Value: 4}, Count(4))
	assert.Equal(t, Field{Key: "error", Value: nil}, Error(nil))
	assert.Equal(t, Field{Key: "incident_id", Value: "i"}, IncidentID("i"))
	assert.Equal(t, Field{Key: "ok", Value: true}, Bool("ok", true))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("nothing", Int("x", 1))
	assert.Equal(t, l, l.With(String("a", "b")))
}
