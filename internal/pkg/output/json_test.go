package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONWriter_Success(t *testing.T) {
	var buf bytes.Buffer
	result := &Result{
		Status:  StatusSuccess,
		Command: "status",
		Data:    map[string]string{"callsign": "N0CALL-9"},
		Metadata: &Metadata{
			DurationMs: 12,
			TraceID:    "abc",
			APIVersion: "v1",
		},
	}

	require.NoError(t, NewJSONWriter().Write(&buf, result))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "success", decoded["status"])
	assert.Equal(t, "status", decoded["command"])
	assert.NotContains(t, decoded, "error")
	assert.Equal(t, "abc", decoded["metadata"].(map[string]any)["trace_id"])
	assert.Contains(t, buf.String(), "\n  \"status\"")
}

func TestJSONWriter_Error(t *testing.T) {
	var buf bytes.Buffer
	result := &Result{
		Status:  StatusError,
		Command: "poll",
		Error:   &ErrorInfo{Code: "APRS", Message: "fetch telemetry failed"},
	}

	require.NoError(t, NewJSONWriter().Write(&buf, result))

	var decoded Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, StatusError, decoded.Status)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, "APRS", decoded.Error.Code)
	assert.Nil(t, decoded.Data)
	assert.Nil(t, decoded.Metadata)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestJSONWriter_PropagatesWriteError(t *testing.T) {
	err := NewJSONWriter().Write(failingWriter{}, &Result{Status: StatusSuccess})
	assert.Error(t, err)
}
