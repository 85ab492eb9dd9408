package sessionshandler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzaxusl0a/APRS-notify/internal/command"
	"github.com/zzaxusl0a/APRS-notify/internal/config"
	"github.com/zzaxusl0a/APRS-notify/internal/constants"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/output"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/testutil"
	"github.com/zzaxusl0a/APRS-notify/internal/session"
)

func TestMain(m *testing.M) {
	RegisterCmd()
	os.Exit(m.Run())
}

type fakeLister struct {
	sessions []session.Session
	err      error
}

func (l *fakeLister) List(context.Context) ([]session.Session, error) {
	return l.sessions, l.err
}

func withLister(l *fakeLister) *Handler {
	return &Handler{newLister: func(context.Context, *config.Config, logging.Logger) (lister, func(), error) {
		return l, func() {}, nil
	}}
}

func TestHandler_Registered(t *testing.T) {
	h, ok := command.Get(constants.ActSessions)
	require.True(t, ok)
	assert.IsType(t, &Handler{}, h)
}

func TestHandler_Text(t *testing.T) {
	l := &fakeLister{sessions: []session.Session{{
		Callsign:     "N0CALL-9",
		OwnerPhone:   "+15550001111",
		ExpiresAt:    time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
		PollInterval: "10m0s",
	}}}

	out := testutil.CaptureStdout(t, func() {
		require.NoError(t, withLister(l).Execute(context.Background(), &config.Config{}))
	})
	assert.Contains(t, out, "CALLSIGN")
	assert.Contains(t, out, "N0CALL-9")
	assert.Contains(t, out, "2024-05-02 12:00")
}

func TestHandler_EmptyJSON(t *testing.T) {
	out := testutil.CaptureStdout(t, func() {
		require.NoError(t, withLister(&fakeLister{sessions: []session.Session{}}).Execute(context.Background(), &config.Config{OutputFormat: "json"}))
	})

	var result output.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, map[string]any{"sessions": []any{}}, result.Data)
}

func TestHandler_SchedulerError(t *testing.T) {
	schedErr := apperrors.NewTransportError(apperrors.CodeScheduler, "failed to list sessions", errors.New("no such table"))

	var err error
	out := testutil.CaptureStdout(t, func() {
		err = withLister(&fakeLister{err: schedErr}).Execute(context.Background(), &config.Config{})
	})
	assert.Same(t, schedErr, err)
	assert.Contains(t, out, "Код: SCH")
}

func TestHandler_SQLiteStorage(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv("AN_STORAGE_PATH", filepath.Join(t.TempDir(), "state.db"))
	t.Setenv("AN_STORAGE_MIGRATE_MAX_ELAPSED", "0s")
	t.Setenv("AN_TWILIO_DRY_RUN", "true")
	cfg, err := config.Load()
	require.NoError(t, err)

	out := testutil.CaptureStdout(t, func() {
		require.NoError(t, (&Handler{}).Execute(context.Background(), cfg))
	})
	assert.Equal(t, "Активных сессий нет\n", out)
}
