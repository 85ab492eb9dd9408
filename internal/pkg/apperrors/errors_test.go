package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	cause := errors.New("timeout")

	withCause := NewTransportError(CodeFeed, "не удалось получить телеметрию", cause)
	assert.Equal(t, "APRS: не удалось получить телеметрию (timeout)", withCause.Error())

	withoutCause := NewAppError(ErrConfigLoad, "не удалось загрузить конфигурацию", nil)
	assert.Equal(t, "CONFIG.LOAD_FAILED: не удалось загрузить конфигурацию", withoutCause.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("оригинальная ошибка")
	appErr := NewTransportError(CodeStore, "сбой хранилища", cause)

	assert.Equal(t, cause, appErr.Unwrap())
	assert.True(t, errors.Is(appErr, cause))
	assert.Nil(t, NewAuthError("bad signature").Unwrap())
}

func TestConstructors_SetKindAndCode(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		kind Kind
		code string
	}{
		{"auth", NewAuthError("x"), KindAuth, CodeAuth},
		{"format", NewCommandFormatError("x"), KindCommandFormat, CodeCommand},
		{"transport", NewTransportError(CodeScheduler, "x", nil), KindTransport, CodeScheduler},
		{"authorization", NewAuthorizationError("x"), KindAuthorization, CodeDenied},
		{"internal", NewAppError(ErrCommandExec, "x", nil), KindInternal, ErrCommandExec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestKindOf_And_CodeOf_ThroughWrapping(t *testing.T) {
	base := NewTransportError(CodeWatchdog, "send failed", nil)
	wrapped := fmt.Errorf("watchdog: %w", base)

	assert.Equal(t, KindTransport, KindOf(wrapped))
	assert.Equal(t, CodeWatchdog, CodeOf(wrapped))
	assert.True(t, IsTransport(wrapped))

	plain := errors.New("plain")
	assert.Equal(t, KindInternal, KindOf(plain))
	assert.Equal(t, "", CodeOf(plain))
	assert.False(t, IsTransport(plain))
	assert.False(t, IsTransport(nil))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "AuthError", KindAuth.String())
	assert.Equal(t, "CommandFormatError", KindCommandFormat.String())
	assert.Equal(t, "TransportError", KindTransport.String())
	assert.Equal(t, "AuthorizationError", KindAuthorization.String())
	assert.Equal(t, "InternalError", KindInternal.String())
}

func TestAppError_JSON_Serialization(t *testing.T) {
	appErr := NewTransportError(CodeFeed, "не удалось получить телеметрию", errors.New("secret-ish"))

	data, err := json.Marshal(appErr)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, CodeFeed, parsed["code"])
	assert.Equal(t, "не удалось получить телеметрию", parsed["message"])

	// Cause и Kind не сериализуются (json:"-")
	_, hasCause := parsed["Cause"]
	assert.False(t, hasCause, "Cause не должен сериализоваться в JSON")
	_, hasKind := parsed["Kind"]
	assert.False(t, hasKind)
}

func TestMessageOf(t *testing.T) {
	wrapped := fmt.Errorf("webhook: %w", NewCommandFormatError("empty message"))
	if got := MessageOf(wrapped); got != "empty message" {
		t.Errorf("MessageOf() = %q", got)
	}
	if got := MessageOf(errors.New("plain")); got != "plain" {
		t.Errorf("MessageOf(plain) = %q", got)
	}
	if got := MessageOf(nil); got != "" {
		t.Errorf("MessageOf(nil) = %q", got)
	}
}
