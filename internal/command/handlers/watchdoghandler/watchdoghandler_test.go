package watchdoghandler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/output"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/testutil"
	"github.com/zzaxusl0a/APRS-notify/internal/watchdog"
)

const batch = `{"messageType":"DATA_MESSAGE","logGroup":"/aws/lambda/APRS_temp_logger",` +
	`"logEvents":[{"id":"a","timestamp":1714564800000,"message":"SDB put failed"}]}`

func TestMain(m *testing.M) {
	RegisterCmd()
	os.Exit(m.Run())
}

type fakeWatchdog struct {
	payload []byte
	report  watchdog.Report
}

func (w *fakeWatchdog) Handle(_ context.Context, payload []byte) watchdog.Report {
	w.payload = payload
	return w.report
}

func withWatchdog(wd *fakeWatchdog, stdin string) *Handler {
	return &Handler{
		newHandler: func(*config.Config, logging.Logger, metrics.Collector) (batchHandler, error) {
			return wd, nil
		},
		stdin: strings.NewReader(stdin),
	}
}

func TestHandler_Registered(t *testing.T) {
	h, ok := command.Get(constants.ActWatchdog)
	require.True(t, ok)
	assert.IsType(t, &Handler{}, h)
}

func TestHandler_ReadsStdin(t *testing.T) {
	wd := &fakeWatchdog{report: watchdog.Report{Records: 1, Message: "Alerting Stopped! Error: SDB put failed", MessageID: "SM1"}}

	out := testutil.CaptureStdout(t, func() {
		require.NoError(t, withWatchdog(wd, batch).Execute(context.Background(), &config.Config{WatchdogInput: "-"}))
	})
	assert.Equal(t, batch, string(wd.payload))
	assert.Equal(t, "Записей: 1\nSMS оператору (SM1): Alerting Stopped! Error: SDB put failed\n", out)
}

func TestHandler_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(batch), 0o600))
	wd := &fakeWatchdog{report: watchdog.Report{Records: 1, MessageID: "SM1"}}

	out := testutil.CaptureStdout(t, func() {
		require.NoError(t, withWatchdog(wd, "").Execute(context.Background(), &config.Config{WatchdogInput: path, OutputFormat: "json"}))
	})
	assert.Equal(t, batch, string(wd.payload))

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, float64(1), result.Data.(map[string]any)["records"])
}

func TestHandler_MissingFile(t *testing.T) {
	var err error
	out := testutil.CaptureStdout(t, func() {
		err = withWatchdog(&fakeWatchdog{}, "").Execute(context.Background(),
			&config.Config{WatchdogInput: filepath.Join(t.TempDir(), "absent.json")})
	})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "INPUT.READ_FAILED: "))
	assert.Contains(t, out, "Код: INPUT.READ_FAILED")
}

func TestHandler_SendFailure(t *testing.T) {
	sendErr := apperrors.NewTransportError(apperrors.CodeWatchdog, "send operator sms failed", errors.New("twilio 503"))
	wd := &fakeWatchdog{report: watchdog.Report{Records: 1, Code: apperrors.CodeWatchdog, Err: sendErr}}

	var err error
	out := testutil.CaptureStdout(t, func() {
		err = withWatchdog(wd, batch).Execute(context.Background(), &config.Config{})
	})
	assert.Same(t, sendErr, err)
	assert.Contains(t, out, "Код: WDG")
}

func TestHandler_DryRunEndToEnd(t *testing.T) {
	cfg := &config.Config{OutputFormat: "json"}
	cfg.Twilio.DryRun = true
	cfg.Watchdog.OperatorPhone = "+15550009999"
	h := &Handler{stdin: strings.NewReader(batch)}

	out := testutil.CaptureStdout(t, func() {
		require.NoError(t, h.Execute(context.Background(), cfg))
	})

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	data := result.Data.(map[string]any)
	assert.Equal(t, "Alerting Stopped! Error: SDB put failed", data["message"])
	assert.True(t, strings.HasPrefix(data["message_id"].(string), "DR"))
}

func TestHandler_ControlMessageDryRun(t *testing.T) {
	cfg := &config.Config{}
	cfg.Twilio.DryRun = true
	cfg.Watchdog.OperatorPhone = "+15550009999"
	h := &Handler{stdin: strings.NewReader(`{"messageType":"CONTROL_MESSAGE","logGroup":"",` +
		`"logEvents":[{"id":"","timestamp":1714564800000,"message":"CWL CONTROL MESSAGE: Checking health of destination"}]}`)}

	out := testutil.CaptureStdout(t, func() {
		require.NoError(t, h.Execute(context.Background(), cfg))
	})
	assert.Equal(t, "Служебный пакет, SMS не отправлялось\n", out)
}
