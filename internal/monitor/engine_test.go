package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzaxusl0a/APRS-notify/internal/adapter/aprsfi"
	"github.com/zzaxusl0a/APRS-notify/internal/adapter/kvstore"
	"github.com/zzaxusl0a/APRS-notify/internal/adapter/storage"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/testutil"
)

const (
	testCall  = "N0CALL-9"
	testPhone = "+15551234567"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// comment собирает комментарий маяка: внутренняя температура в [2:7], внешняя в [11:16].
func comment(internal, aux float64) string {
	return fmt.Sprintf("T#%05.1f,00,%05.1f", internal, aux)
}

type fakeFeed struct {
	entry aprsfi.Entry
	err   error
}

func (f *fakeFeed) Latest(_ context.Context, callsign string) (aprsfi.Entry, error) {
	if f.err != nil {
		return aprsfi.Entry{}, f.err
	}
	e := f.entry
	e.Name = callsign
	return e, nil
}

type fakeSender struct {
	mu     sync.Mutex
	bodies []string
	to     []string
	err    error
}

func (s *fakeSender) Send(_ context.Context, to, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.to = append(s.to, to)
	s.bodies = append(s.bodies, body)
	return fmt.Sprintf("SM%d", len(s.bodies)), nil
}

type recordingSink struct{ readings []Reading }

func (s *recordingSink) Record(_ context.Context, r Reading) error {
	s.readings = append(s.readings, r)
	return nil
}

type recordingPublisher struct{ transitions []Transition }

func (p *recordingPublisher) PublishTransition(_ context.Context, t Transition) error {
	p.transitions = append(p.transitions, t)
	return errors.New("broker offline")
}

type fixture struct {
	engine *Engine
	feed   *fakeFeed
	sender *fakeSender
	store  *kvstore.Store
	clock  *testutil.Clock
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.Options{
		Driver:  "sqlite",
		Path:    filepath.Join(t.TempDir(), "state.db"),
		Timeout: 5 * time.Second,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		feed:   &fakeFeed{},
		sender: &fakeSender{},
		store:  kvstore.New(db),
		clock:  testutil.NewClock(t0),
	}
	f.engine = NewEngine(cfg, Deps{Feed: f.feed, Store: f.store, Sender: f.sender})
	f.engine.SetNowFunc(f.clock.Now)
	return f
}

// tick выставляет свежее показание и выполняет оценку.
func (f *fixture) tick(t *testing.T, internal, aux float64) Outcome {
	t.Helper()
	f.feed.entry = aprsfi.Entry{Comment: comment(internal, aux), LastTime: f.clock.Now()}
	out, err := f.engine.Evaluate(context.Background(), Trigger{Callsign: testCall, OwnerPhone: testPhone})
	require.NoError(t, err)
	return out
}

func TestEvaluate_DedupWhileActive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTempDelta = 50
	f := newFixture(t, cfg)

	temps := []float64{90, 92, 91, 70}
	want := []Status{StatusActive, StatusActive, StatusActive, StatusClear}
	for i, temp := range temps {
		out := f.tick(t, temp, temp)
		assert.Equal(t, want[i], out.Status, "tick %d", i)
		f.clock.Advance(5 * time.Minute)
	}

	require.Len(t, f.sender.bodies, 1)
	assert.Equal(t, testCall+": Temperature exceeds Maximum! Internal Temp: 90.00", f.sender.bodies[0])
	assert.Equal(t, []string{testPhone}, f.sender.to)

	attrs, found, err := f.store.Get(context.Background(), cfg.Domain, testCall)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "False", attrs["alert_sent"])
	assert.Equal(t, "SM1", attrs["SMS_sid"])
	assert.Equal(t, "4", attrs["revision"])
}

func TestEvaluate_RulePrecedence(t *testing.T) {
	tests := []struct {
		name      string
		internal  float64
		aux       float64
		condition Condition
	}{
		{"malfunction wins over max", 250, 250, ConditionMalfunction},
		{"boundary 199 is not malfunction", 199, 199, ConditionOverTemp},
		{"max inclusive", 85, 85, ConditionOverTemp},
		{"min inclusive", 40, 40, ConditionUnderTemp},
		{"mismatch inclusive", 70, 50, ConditionMismatch},
		{"mismatch below threshold", 70, 50.1, ConditionOK},
		{"nominal", 70, 69, ConditionOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			out := f.tick(t, tt.internal, tt.aux)
			assert.Equal(t, tt.condition, out.Condition)
			assert.Equal(t, tt.condition != ConditionOK, out.Notified)
		})
	}
}

func TestEvaluate_StaleReport(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.tick(t, 70, 70)

	f.clock.Advance(5 * time.Minute)
	f.feed.entry = aprsfi.Entry{Comment: comment(70, 70), LastTime: f.clock.Now().Add(-6 * time.Minute)}
	out, err := f.engine.Evaluate(context.Background(), Trigger{Callsign: testCall, OwnerPhone: testPhone})
	require.NoError(t, err)

	assert.Equal(t, ConditionStale, out.Condition)
	assert.True(t, out.Notified)
	assert.Contains(t, out.Message, "greater than 5 minutes old")
	assert.Contains(t, out.Message, "2024-05-01T11:59:00Z")
}

func TestEvaluate_FirstRunSkipsStaleAndDelta(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.feed.entry = aprsfi.Entry{Comment: comment(70, 70), LastTime: t0.Add(-time.Hour)}

	out, err := f.engine.Evaluate(context.Background(), Trigger{Callsign: testCall, OwnerPhone: testPhone})
	require.NoError(t, err)
	assert.Equal(t, ConditionOK, out.Condition)
	assert.Equal(t, StatusUnknown, out.PriorStatus)
	assert.Empty(t, f.sender.bodies)
}

func TestEvaluate_Delta(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.tick(t, 70, 70)
	f.clock.Advance(5 * time.Minute)

	out := f.tick(t, 73, 73)
	assert.Equal(t, ConditionDelta, out.Condition)
	assert.Equal(t, "Temperature Delta Too High! Internal Temp: 73.00, Previous Temp: 70.00", out.Message)
}

func TestEvaluate_LegacyAlertSentIsActive(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	require.NoError(t, f.store.Put(context.Background(), "APRS_tracker", testCall, map[string]string{
		"report_time": "2024-05-01T11:55:00Z+0000",
		"comment":     comment(90, 90),
		"alert_sent":  "True",
	}))

	out := f.tick(t, 91, 91)
	assert.Equal(t, StatusActive, out.PriorStatus)
	assert.False(t, out.Notified)
	assert.Empty(t, f.sender.bodies)
}

func TestEvaluate_TransportErrors(t *testing.T) {
	t.Run("feed failure", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.feed.err = errors.New("connection refused")
		_, err := f.engine.Evaluate(context.Background(), Trigger{Callsign: testCall})
		assert.Equal(t, apperrors.CodeFeed, apperrors.CodeOf(err))
		assert.True(t, apperrors.IsTransport(err))
	})
	t.Run("unparseable comment", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.feed.entry = aprsfi.Entry{Comment: "T#abcde,00,070.0", LastTime: t0}
		_, err := f.engine.Evaluate(context.Background(), Trigger{Callsign: testCall})
		assert.Equal(t, apperrors.CodeFeed, apperrors.CodeOf(err))
	})
	t.Run("store failure", func(t *testing.T) {
		e := NewEngine(DefaultConfig(), Deps{
			Feed:   &fakeFeed{entry: aprsfi.Entry{Comment: comment(70, 70), LastTime: t0}},
			Store:  &brokenStore{getErr: errors.New("disk I/O error")},
			Sender: &fakeSender{},
		})
		_, err := e.Evaluate(context.Background(), Trigger{Callsign: testCall})
		assert.Equal(t, apperrors.CodeStore, apperrors.CodeOf(err))
	})
}

func TestEvaluate_SendFailureKeepsStateActive(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.sender.err = errors.New("gateway timeout")

	f.feed.entry = aprsfi.Entry{Comment: comment(95, 95), LastTime: t0}
	out, err := f.engine.Evaluate(context.Background(), Trigger{Callsign: testCall, OwnerPhone: testPhone})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotify, apperrors.CodeOf(err))
	assert.False(t, out.Notified)

	attrs, _, err := f.store.Get(context.Background(), "APRS_tracker", testCall)
	require.NoError(t, err)
	assert.Equal(t, "True", attrs["alert_sent"])
}

func TestEvaluate_ConflictSkipsDispatch(t *testing.T) {
	sender := &fakeSender{}
	e := NewEngine(DefaultConfig(), Deps{
		Feed:   &fakeFeed{entry: aprsfi.Entry{Comment: comment(95, 95), LastTime: t0}},
		Store:  &brokenStore{putIfErr: kvstore.ErrConditionFailed},
		Sender: sender,
	})
	e.SetNowFunc(func() time.Time { return t0 })

	out, err := e.Evaluate(context.Background(), Trigger{Callsign: testCall, OwnerPhone: testPhone})
	require.NoError(t, err)
	assert.True(t, out.Conflict)
	assert.Empty(t, sender.bodies)
}

func TestEvaluate_SinkAndPublisher(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	sink, pub := &recordingSink{}, &recordingPublisher{}
	f.engine.deps.Sink = sink
	f.engine.deps.Publisher = pub

	f.tick(t, 70, 70)
	f.clock.Advance(5 * time.Minute)
	f.tick(t, 70.5, 70)
	f.clock.Advance(5 * time.Minute)
	out := f.tick(t, 90, 90)

	assert.Len(t, sink.readings, 3)
	require.Len(t, pub.transitions, 2)
	assert.Equal(t, StatusUnknown, pub.transitions[0].From)
	assert.Equal(t, StatusClear, pub.transitions[0].To)
	assert.Equal(t, StatusActive, pub.transitions[1].To)
	assert.True(t, out.Notified, "publisher failure must not block notification")
}

func TestStatus(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	msg, err := f.engine.Status(context.Background(), testCall)
	require.NoError(t, err)
	assert.Equal(t, "No record found for "+testCall, msg)

	f.tick(t, 72.5, 72)
	f.clock.Advance(7*time.Minute + 30*time.Second)

	msg, err = f.engine.Status(context.Background(), testCall)
	require.NoError(t, err)
	assert.Equal(t, testCall+": last temperature 72.50, reported 7 minutes ago. Alert status: clear", msg)
}

func TestParseComment(t *testing.T) {
	internal, aux, err := ParseComment("T#072.5,00,071.0 extra")
	require.NoError(t, err)
	assert.InDelta(t, 72.5, internal, 1e-9)
	assert.InDelta(t, 71.0, aux, 1e-9)

	internal, _, err = ParseComment("T# 72.5,00, 71.0")
	require.NoError(t, err)
	assert.InDelta(t, 72.5, internal, 1e-9)

	_, _, err = ParseComment("T#072.5")
	assert.Error(t, err)
	_, _, err = ParseComment("T#072.5,00,xx.x1")
	assert.Error(t, err)

	for _, c := range []string{"T#  NaN,00,070.0", "T# +Inf,00,070.0", "T#070.0,00, -inf"} {
		_, _, err = ParseComment(c)
		assert.Error(t, err, c)
	}
}

func TestEvaluate_NonFiniteTempKeepsAlertActive(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	out := f.tick(t, 90, 90)
	require.Equal(t, StatusActive, out.Status)
	f.clock.Advance(5 * time.Minute)

	f.feed.entry = aprsfi.Entry{Comment: "T#  NaN,00,070.0", LastTime: f.clock.Now()}
	_, err := f.engine.Evaluate(context.Background(), Trigger{Callsign: testCall, OwnerPhone: testPhone})
	assert.Equal(t, apperrors.CodeFeed, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsTransport(err))

	attrs, found, err := f.store.Get(context.Background(), DefaultConfig().Domain, testCall)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "True", attrs["alert_sent"])
	assert.Len(t, f.sender.bodies, 1)
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusActive, ParseStatus("True"))
	assert.Equal(t, StatusActive, ParseStatus("true"))
	assert.Equal(t, StatusClear, ParseStatus("False"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
	assert.Equal(t, StatusUnknown, ParseStatus("maybe"))
}

func TestParseReportTime(t *testing.T) {
	for _, v := range []string{"2024-05-01T12:00:00Z", "2024-05-01T12:00:00Z+0000", "1714564800"} {
		got, err := parseReportTime(v)
		require.NoError(t, err, v)
		assert.True(t, got.Equal(t0), v)
	}
	_, err := parseReportTime("yesterday")
	assert.Error(t, err)
}

type brokenStore struct {
	getErr   error
	putIfErr error
}

func (s *brokenStore) Get(context.Context, string, string) (map[string]string, bool, error) {
	return nil, false, s.getErr
}

func (s *brokenStore) Put(context.Context, string, string, map[string]string) error { return nil }

func (s *brokenStore) PutIf(context.Context, string, string, map[string]string, kvstore.Condition) error {
	return s.putIfErr
}
