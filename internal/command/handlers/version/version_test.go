package version

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/output"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/testutil"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/tracing"
)

var jsonConfig = &config.Config{OutputFormat: output.FormatJSON}

func TestVersionHandler_Registered(t *testing.T) {
	h, ok := command.Get(constants.ActVersion)
	require.True(t, ok, "version должен быть зарегистрирован")
	assert.IsType(t, &VersionHandler{}, h)
}

func TestVersionHandler_Execute_TextOutput(t *testing.T) {
	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = (&VersionHandler{}).Execute(context.Background(), nil)
	})
	require.NoError(t, execErr)

	assert.Contains(t, out, "aprs-notify version")
	assert.Contains(t, out, runtime.Version())
	assert.Contains(t, out, "Устаревшие имена:")
	assert.Contains(t, out, "fake-legacy")
}

func TestVersionHandler_Execute_Metadata(t *testing.T) {
	traceID := tracing.GenerateTraceID()
	ctx := tracing.WithTraceID(context.Background(), traceID)

	var execErr error
	out := testutil.CaptureStdout(t, func() {
		execErr = (&VersionHandler{}).Execute(ctx, jsonConfig)
	})
	require.NoError(t, execErr)

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotNil(t, result.Metadata)
	assert.Equal(t, traceID, result.Metadata.TraceID, "trace_id должен совпадать с переданным в context")
	assert.Equal(t, constants.APIVersion, result.Metadata.APIVersion)
}

func TestBuildVersionData_Fallbacks(t *testing.T) {
	d := buildVersionData("", "")
	assert.Equal(t, "dev", d.Version)
	assert.Equal(t, "unknown", d.Commit)

	d = buildVersionData("1.2.0", "abc123")
	assert.Equal(t, "1.2.0", d.Version)
	assert.Equal(t, "abc123", d.Commit)
}

func TestBuildVersionData_AliasMappingSkipsBridges(t *testing.T) {
	d := buildVersionData("dev", "")
	for _, e := range d.AliasMapping {
		assert.NotEqual(t, "fake-legacy", e.Command, "мост устаревшего имени не должен попадать в список команд")
	}
	assert.Contains(t, d.AliasMapping, AliasEntry{Command: "fake-cmd", LegacyAlias: "fake-legacy"})
}
