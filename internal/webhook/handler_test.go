package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
	"github.com/zzaxusl0a/APRS-notify/internal/sms"
)

const (
	authToken = "12345"
	baseURL   = "https://aprs.example.com"
	owner     = "+15551234567"
)

type call struct{ verb, callsign, phone string }

type fakeSessions struct {
	calls []call
	msg   string
	err   error
}

func (f *fakeSessions) Start(_ context.Context, callsign, phone string) (string, error) {
	f.calls = append(f.calls, call{"START", callsign, phone})
	return f.msg, f.err
}

func (f *fakeSessions) Stop(_ context.Context, callsign, phone string) (string, error) {
	f.calls = append(f.calls, call{"STOP", callsign, phone})
	return f.msg, f.err
}

type fakeStatus struct {
	msg string
	err error
}

func (f *fakeStatus) Status(context.Context, string) (string, error) { return f.msg, f.err }

type fakeReplier struct {
	to, bodies []string
	err        error
}

func (f *fakeReplier) Send(_ context.Context, to, body string) (string, error) {
	f.to = append(f.to, to)
	f.bodies = append(f.bodies, body)
	return "SMR1", f.err
}

type fakeReporter struct{ codes []string }

func (f *fakeReporter) Report(_ context.Context, _, _ string, err error) {
	f.codes = append(f.codes, apperrors.CodeOf(err))
}

type harness struct {
	handler  *Handler
	sessions *fakeSessions
	status   *fakeStatus
	replier  *fakeReplier
	reporter *fakeReporter
}

func newHarness() *harness {
	h := &harness{
		sessions: &fakeSessions{msg: "Monitoring N0CALL until 2024-05-01 16:00 UTC. Send STOP N0CALL to end."},
		status:   &fakeStatus{msg: "No record found for N0CALL"},
		replier:  &fakeReplier{},
		reporter: &fakeReporter{},
	}
	h.handler = NewHandler(Config{PublicBaseURL: baseURL, AuthToken: authToken, ReplyToSender: true}, Deps{
		Sessions: h.sessions,
		Status:   h.status,
		Replier:  h.replier,
		Reporter: h.reporter,
	})
	return h
}

func signedRequest(t *testing.T, form url.Values, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(sms.SignatureHeader, sms.ComputeSignature(baseURL+"/sms", form, token))
	return req
}

func serve(t *testing.T, h *Handler, req *http.Request) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, resp
}

func smsForm(body string) url.Values {
	return url.Values{"From": {owner}, "Body": {body}, "MessageSid": {"SM0001"}}
}

func TestHandler_StartCommand(t *testing.T) {
	h := newHarness()
	status, resp := serve(t, h.handler, signedRequest(t, smsForm("start n0call"), authToken))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "200", resp.Status)
	assert.Empty(t, resp.Code)
	assert.Equal(t, h.sessions.msg, resp.Message)
	assert.Equal(t, []call{{"START", "N0CALL", owner}}, h.sessions.calls)
	assert.Equal(t, []string{owner}, h.replier.to)
	assert.Equal(t, []string{h.sessions.msg}, h.replier.bodies)
}

func TestHandler_BadSignature(t *testing.T) {
	h := newHarness()
	status, resp := serve(t, h.handler, signedRequest(t, smsForm("START N0CALL"), "wrong-token"))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, Response{Status: "400", Message: "SMS Signature validation failed", Code: "iSMS"}, resp)
	assert.Empty(t, h.sessions.calls)
	assert.Empty(t, h.replier.bodies, "unauthenticated sender must not get an SMS")
}

func TestHandler_MissingFrom(t *testing.T) {
	h := newHarness()
	status, resp := serve(t, h.handler, signedRequest(t, url.Values{"Body": {"START N0CALL"}}, authToken))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid SMS received", resp.Message)
}

func TestHandler_MalformedBody(t *testing.T) {
	h := newHarness()
	req := httptest.NewRequest(http.MethodPost, "/sms", strings.NewReader("From=%zz"))
	status, resp := serve(t, h.handler, req)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "iSMS", resp.Code)
}

func TestHandler_UsageReplies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "   ", "empty message. " + sms.UsageText},
		{"missing callsign", "STOP", "STOP requires a callsign. " + sms.UsageText},
		{"unknown verb", "hello there", "Unknown command. " + sms.UsageText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			status, resp := serve(t, h.handler, signedRequest(t, smsForm(tt.body), authToken))

			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, apperrors.CodeCommand, resp.Code)
			assert.Equal(t, tt.want, resp.Message)
			assert.Equal(t, []string{tt.want}, h.replier.bodies, "usage must never be a silent drop")
			assert.Empty(t, h.sessions.calls)
		})
	}
}

func TestHandler_StopDenied(t *testing.T) {
	h := newHarness()
	h.sessions.msg = "Permission denied."
	h.sessions.err = apperrors.NewAuthorizationError("requester is not the owner")

	status, resp := serve(t, h.handler, signedRequest(t, smsForm("STOP N0CALL"), authToken))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, Response{Status: "200", Message: "Permission denied.", Code: "AUTHZ"}, resp)
	assert.Empty(t, h.reporter.codes, "denial is not a system error")
}

func TestHandler_SchedulerFault(t *testing.T) {
	h := newHarness()
	h.sessions.msg = "Scheduler unavailable. No changes made."
	h.sessions.err = apperrors.NewTransportError(apperrors.CodeScheduler, "write job failed", errors.New("db locked"))

	_, resp := serve(t, h.handler, signedRequest(t, smsForm("START N0CALL"), authToken))
	assert.Equal(t, "SCH", resp.Code)
	assert.Equal(t, "Scheduler unavailable. No changes made.", resp.Message)
	assert.Equal(t, []string{"SCH"}, h.reporter.codes)
}

func TestHandler_StatusStoreFault(t *testing.T) {
	h := newHarness()
	h.status.err = apperrors.NewTransportError(apperrors.CodeStore, "read state failed", errors.New("timeout"))

	_, resp := serve(t, h.handler, signedRequest(t, smsForm("STATUS N0CALL"), authToken))
	assert.Equal(t, "SDB", resp.Code)
	assert.Equal(t, "Status unavailable. Try again later.", resp.Message)
}

func TestHandler_ReplyFailureDoesNotChangeResponse(t *testing.T) {
	h := newHarness()
	h.replier.err = errors.New("twilio down")

	status, resp := serve(t, h.handler, signedRequest(t, smsForm("STATUS N0CALL"), authToken))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "No record found for N0CALL", resp.Message)
	assert.Equal(t, []string{"SMS"}, h.reporter.codes)
}

func TestHandler_RequestURLFromHeaders(t *testing.T) {
	h := NewHandler(Config{AuthToken: authToken}, Deps{Sessions: &fakeSessions{}, Status: &fakeStatus{}})

	req := httptest.NewRequest(http.MethodPost, "http://internal:8080/sms?x=1", nil)
	req.Host = "aprs.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://aprs.example.com/sms?x=1", h.requestURL(req))
}
