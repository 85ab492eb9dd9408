package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Config{Level: LevelInfo, Format: FormatJSON}, &buf)

	logger.With("callsign", "N0CALL-9").Info("оценка завершена", "condition", "ok")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "оценка завершена", entry["msg"])
	assert.Equal(t, "N0CALL-9", entry["callsign"])
	assert.Equal(t, "ok", entry["condition"])
}

func TestNewLoggerWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(Config{Level: LevelWarn, Format: FormatText}, &buf)

	logger.Info("скрыто")
	logger.Debug("скрыто")
	logger.Warn("видно")

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "видно")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	cfg := DefaultConfig()
	cfg.Output = OutputFile
	cfg.FilePath = path

	logger := NewLogger(cfg)
	logger.Error("запись в файл")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "запись в файл"))
}

func TestNewLumberjackWriter_EmptyPathFallsBackToStderr(t *testing.T) {
	w := newLumberjackWriter(Config{Output: OutputFile})
	assert.Equal(t, os.Stderr, w)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{}.Validate())
	assert.ErrorIs(t, Config{Level: "trace"}.Validate(), ErrInvalidLevel)
	assert.ErrorIs(t, Config{Output: "syslog"}.Validate(), ErrInvalidOutput)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("ничего")
	assert.Same(t, l, l.With("k", "v"))
}

func TestToSlog(t *testing.T) {
	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, base, ToSlog(NewSlogAdapter(base)))
	assert.NotNil(t, ToSlog(NewNopLogger()))
}
