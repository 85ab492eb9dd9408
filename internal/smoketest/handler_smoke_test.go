package smoketest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/testutil"
)

// ВАЖНО: тесты в этом файле НЕ должны использовать t.Parallel():
// CaptureOutput подменяет глобальные os.Stdout и os.Stderr.

// smokeResult - минимальная структура для валидации JSON вывода.
type smokeResult struct {
	Status  string          `json:"status"`
	Command string          `json:"command"`
	Error   *smokeErrorInfo `json:"error,omitempty"`
}

type smokeErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TestSmoke_MissingParameters_JSON проверяет что команды без обязательных
// параметров завершаются ошибкой CONFIG.MISSING в JSON формате, не открывая
// хранилище и не обращаясь к внешним сервисам.
func TestSmoke_MissingParameters_JSON(t *testing.T) {
	for _, name := range []string{constants.ActPoll, constants.ActStatus, "notify"} {
		t.Run(name, func(t *testing.T) {
			h, ok := command.Get(name)
			require.True(t, ok)

			var execErr error
			out := testutil.CaptureStdout(t, func() {
				execErr = h.Execute(context.Background(), &config.Config{OutputFormat: "json"})
			})
			require.Error(t, execErr)

			var result smokeResult
			require.NoError(t, json.Unmarshal([]byte(out), &result), "JSON вывод должен быть валидным: %s", out)
			assert.Equal(t, "error", result.Status)
			require.NotNil(t, result.Error)
			assert.Equal(t, "CONFIG.MISSING", result.Error.Code)
		})
	}
}

// TestSmoke_DeprecatedAliasWarnsOnStderr проверяет что устаревшее имя
// пишет предупреждение в stderr и не портит JSON в stdout.
func TestSmoke_DeprecatedAliasWarnsOnStderr(t *testing.T) {
	h, ok := command.Get("notify")
	require.True(t, ok)

	stdout, stderr := testutil.CaptureOutput(t, func() {
		_ = h.Execute(context.Background(), &config.Config{OutputFormat: "json"})
	})
	assert.Contains(t, stderr, "WARNING: command 'notify' is deprecated, use 'poll' instead\n")

	var result smokeResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, constants.ActPoll, result.Command)
}

// TestSmoke_InfoCommands_JSON проверяет успешный JSON вывод команд без зависимостей.
func TestSmoke_InfoCommands_JSON(t *testing.T) {
	for _, name := range []string{constants.ActVersion, constants.ActHelp} {
		t.Run(name, func(t *testing.T) {
			h, ok := command.Get(name)
			require.True(t, ok)

			out := testutil.CaptureStdout(t, func() {
				require.NoError(t, h.Execute(context.Background(), &config.Config{OutputFormat: "json"}))
			})

			var result smokeResult
			require.NoError(t, json.Unmarshal([]byte(out), &result))
			assert.Equal(t, "success", result.Status)
			assert.Equal(t, name, result.Command)
		})
	}
}

// TestSmoke_NilConfig проверяет что ни одна команда не паникует без конфигурации.
func TestSmoke_NilConfig(t *testing.T) {
	for name, h := range command.All() {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				testutil.CaptureStdout(t, func() {
					_ = h.Execute(context.Background(), nil)
				})
			})
		})
	}
}
