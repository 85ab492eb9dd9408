package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

// testLogger собирает сообщения по уровням. Thread-safe.
type testLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (l *testLogger) Debug(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugMsgs = append(l.debugMsgs, msg)
}
func (l *testLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoMsgs = append(l.infoMsgs, msg)
}
func (l *testLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnMsgs = append(l.warnMsgs, msg)
}
func (l *testLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorMsgs = append(l.errorMsgs, msg)
}
func (l *testLogger) With(_ ...any) logging.Logger { return l }

func (l *testLogger) errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errorMsgs...)
}

// mockHTTPClient - mock для HTTPClient.
type mockHTTPClient struct {
	DoFunc   func(req *http.Request) (*http.Response, error)
	Requests []*http.Request
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.Requests = append(m.Requests, req)
	return m.DoFunc(req)
}

func mockHTTPResponse(statusCode int, body any) *http.Response {
	jsonBody, _ := json.Marshal(body) //nolint:errcheck // тестовые данные
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewReader(jsonBody)),
	}
}

// mockAlerter - канал для тестов MultiChannelAlerter.
type mockAlerter struct {
	sendCount int
	lastAlert Alert
}

func (m *mockAlerter) Send(_ context.Context, alert Alert) error {
	m.sendCount++
	m.lastAlert = alert
	return nil
}

// mockSMSSender записывает отправленные SMS.
type mockSMSSender struct {
	mu   sync.Mutex
	sent []string
	to   []string
	err  error
}

func (m *mockSMSSender) Send(_ context.Context, to, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.to = append(m.to, to)
	m.sent = append(m.sent, body)
	return "SM123", nil
}
