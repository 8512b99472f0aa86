package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warn", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	SetLevel("WARN")
	t.Cleanup(func() { SetLevel("INFO") })

	SetLevel("nonsense")
	assert.Equal(t, LevelWarn, CurrentLevel())
}

func TestConfigureFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dittodicom.log")

	require.NoError(t, Configure("DEBUG", "json", path))
	t.Cleanup(func() { _ = Configure("INFO", "text", "stdout") })

	Debug("stored %s", "1.2.3")
	Info("listener %s ready", "STORESCP")
	With("listener", "STORESCP").Warnw("destination exists", "path", "/tmp/x")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "destination exists", entry["msg"])
	assert.Equal(t, "STORESCP", entry["listener"])
	assert.Equal(t, "/tmp/x", entry["path"])
}

func TestConfigureLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered.log")

	require.NoError(t, Configure("ERROR", "text", path))
	t.Cleanup(func() { _ = Configure("INFO", "text", "stdout") })

	Info("hidden")
	Error("visible %d", 1)
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible 1")
	assert.Contains(t, string(data), "ERROR")
}

func TestConfigureBadPath(t *testing.T) {
	err := Configure("INFO", "text", filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}
