package logging

import (
	"bytes"
	"context"
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
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.Equal(t, "spectrumlabel", cfg.Component)
	assert.True(t, strings.HasSuffix(cfg.FilePath, "spectrumlabel.log"))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestJSONFormatAndScoping(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Output:    "stdout",
		Writer:    &buf,
		Component: "spectrumlabel",
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug("hidden")
	logger.WithRun("run-1").Info("window committed", "events", 2)
	logger.WithComponent("planner").Warn("window rejected")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "window committed", lines[0]["msg"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.EqualValues(t, 2, lines[0]["events"])
	assert.Equal(t, "planner", lines[1]["component"])
}

func TestRunIDContext(t *testing.T) {
	assert.Equal(t, "", RunIDFromContext(nil)) //nolint:staticcheck
	assert.Equal(t, "", RunIDFromContext(context.Background()))

	ctx := ContextWithRunID(context.Background(), "abc")
	assert.Equal(t, "abc", RunIDFromContext(ctx))

	var buf bytes.Buffer
	logger, err := New(&Config{Format: FormatJSON, Output: "stderr", Writer: &buf})
	require.NoError(t, err)

	logger.WithContext(ctx).Info("hello")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "abc", lines[0]["run_id"])
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	var buf bytes.Buffer
	l, err := New(&Config{Format: FormatText, Output: "stderr", Writer: &buf})
	require.NoError(t, err)
	SetDefault(l)

	Default().Info("from default", "k", "v")
	assert.Contains(t, buf.String(), "from default")
	assert.Contains(t, buf.String(), "k=v")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "spectrumlabel.log")
	logger, err := New(&Config{Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	logger.Info("to file")
	require.NoError(t, logger.Sync())
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestFileRotatorRotation(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		FilePath:   filepath.Join(dir, "test.log"),
		MaxSize:    1,
		MaxBackups: 3,
	}

	rotator, err := NewFileRotator(cfg)
	require.NoError(t, err)

	block := bytes.Repeat([]byte("x"), 700*1024)
	for i := 0; i < 3; i++ {
		n, err := rotator.Write(block)
		require.NoError(t, err)
		assert.Equal(t, len(block), n)
	}
	require.NoError(t, rotator.Close())

	rotated, err := rotator.rotatedFiles()
	require.NoError(t, err)
	assert.Len(t, rotated, 2)

	info, err := os.Stat(cfg.FilePath)
	require.NoError(t, err)
	assert.EqualValues(t, len(block), info.Size())
}

func TestFileRotatorCompress(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		FilePath: filepath.Join(dir, "test.log"),
		MaxSize:  1,
		Compress: true,
	}

	rotator, err := NewFileRotator(cfg)
	require.NoError(t, err)

	block := bytes.Repeat([]byte("y"), 600*1024)
	_, err = rotator.Write(block)
	require.NoError(t, err)
	_, err = rotator.Write(block)
	require.NoError(t, err)
	require.NoError(t, rotator.Close())

	gz, err := filepath.Glob(filepath.Join(dir, "test-*.log.gz"))
	require.NoError(t, err)
	assert.Len(t, gz, 1)
}
