package pollhandler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/monitor"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/metrics"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/output"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/testutil"
)

func TestMain(m *testing.M) {
	RegisterCmd()
	os.Exit(m.Run())
}

type fakeEngine struct {
	got monitor.Trigger
	out monitor.Outcome
	err error
}

func (e *fakeEngine) Evaluate(_ context.Context, trig monitor.Trigger) (monitor.Outcome, error) {
	e.got = trig
	return e.out, e.err
}

type report struct {
	operation, callsign string
	err                 error
}

type fakeReporter struct{ reports []report }

func (r *fakeReporter) Report(_ context.Context, operation, callsign string, err error) {
	r.reports = append(r.reports, report{operation, callsign, err})
}

func newHandler(engine *fakeEngine, rep *fakeReporter) *Handler {
	return &Handler{newDeps: func(context.Context, *config.Config, logging.Logger, metrics.Collector) (evaluator, reporter, func(), error) {
		return engine, rep, func() {}, nil
	}}
}

func pollConfig(format string) *config.Config {
	return &config.Config{OutputFormat: format, Callsign: " n0call-9 ", OwnerPhone: "+15550001111"}
}

func TestHandler_Registered(t *testing.T) {
	h, ok := command.Get(constants.ActPoll)
	require.True(t, ok)
	assert.IsType(t, &Handler{}, h)

	alias, ok := command.Get(deprecatedName)
	require.True(t, ok)
	assert.Equal(t, constants.ActPoll, alias.(command.Deprecatable).NewName())
}

func TestHandler_EvaluateJSON(t *testing.T) {
	engine := &fakeEngine{out: monitor.Outcome{
		Callsign:    "N0CALL-9",
		Condition:   monitor.ConditionOverTemp,
		PriorStatus: monitor.StatusClear,
		Status:      monitor.StatusActive,
		Message:     "N0CALL-9 ALERT: internal temperature 31.50 exceeds 30.00",
		Notified:    true,
		MessageID:   "SM123",
		Reading: monitor.Reading{
			InternalTemp: 31.5,
			AuxTemp:      30.9,
			ObservedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
	}}
	rep := &fakeReporter{}

	var err error
	out := testutil.CaptureStdout(t, func() {
		err = newHandler(engine, rep).Execute(context.Background(), pollConfig("json"))
	})
	require.NoError(t, err)
	assert.Equal(t, monitor.Trigger{Callsign: "N0CALL-9", OwnerPhone: "+15550001111"}, engine.got)
	assert.Empty(t, rep.reports)

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	data := result.Data.(map[string]any)
	assert.Equal(t, "over_temp", data["condition"])
	assert.Equal(t, "active", data["status"])
	assert.Equal(t, true, data["notified"])
	assert.Equal(t, "SM123", data["message_id"])
}

func TestHandler_EvaluateText(t *testing.T) {
	engine := &fakeEngine{out: monitor.Outcome{
		Callsign:    "N0CALL-9",
		Condition:   monitor.ConditionOK,
		PriorStatus: monitor.StatusClear,
		Status:      monitor.StatusClear,
		Reading:     monitor.Reading{InternalTemp: 20, AuxTemp: 19.5},
	}}

	out := testutil.CaptureStdout(t, func() {
		require.NoError(t, newHandler(engine, &fakeReporter{}).Execute(context.Background(), pollConfig("text")))
	})
	assert.Equal(t, "N0CALL-9: ok (20.00 / 19.50), статус clear → clear\n", out)
}

func TestHandler_ConflictText(t *testing.T) {
	engine := &fakeEngine{out: monitor.Outcome{Callsign: "N0CALL-9", Conflict: true}}

	out := testutil.CaptureStdout(t, func() {
		require.NoError(t, newHandler(engine, &fakeReporter{}).Execute(context.Background(), pollConfig("text")))
	})
	assert.Contains(t, out, "оценка пропущена")
}

func TestHandler_EvaluateErrorIsReported(t *testing.T) {
	feedErr := apperrors.NewTransportError(apperrors.CodeFeed, "fetch telemetry failed", errors.New("timeout"))
	engine := &fakeEngine{err: feedErr}
	rep := &fakeReporter{}

	var err error
	out := testutil.CaptureStdout(t, func() {
		err = newHandler(engine, rep).Execute(context.Background(), pollConfig("text"))
	})
	assert.Same(t, feedErr, err)
	assert.Contains(t, out, "Код: APRS")
	require.Len(t, rep.reports, 1)
	assert.Equal(t, report{constants.OpEvaluate, "N0CALL-9", feedErr}, rep.reports[0])
}

func TestHandler_MissingParameters(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
		want string
	}{
		{"no config", nil, "CONFIG.MISSING: конфигурация не загружена"},
		{"no callsign", &config.Config{OwnerPhone: "+15550001111"}, "CONFIG.MISSING: не задан позывной (AN_CALLSIGN)"},
		{"no owner", &config.Config{Callsign: "N0CALL"}, "CONFIG.MISSING: не задан телефон владельца (AN_OWNER_PHONE)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			testutil.CaptureStdout(t, func() {
				err = newHandler(&fakeEngine{}, &fakeReporter{}).Execute(context.Background(), tt.cfg)
			})
			assert.EqualError(t, err, tt.want)
		})
	}
}
