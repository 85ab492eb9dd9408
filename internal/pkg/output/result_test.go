package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/require"
)

const resultSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["status", "command"],
  "properties": {
    "status": {"enum": ["success", "error"]},
    "command": {"type": "string", "minLength": 1},
    "error": {
      "type": "object",
      "required": ["code", "message"],
      "properties": {
        "code": {"type": "string"},
        "message": {"type": "string"}
      }
    },
    "metadata": {
      "type": "object",
      "required": ["duration_ms", "api_version"],
      "properties": {
        "duration_ms": {"type": "integer", "minimum": 0},
        "trace_id": {"type": "string"},
        "api_version": {"const": "v1"}
      }
    }
  }
}`

func compileResultSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(resultSchema))
	require.NoError(t, err)
	compiler := jsonschema.NewCompiler()
	require.NoError(t, compiler.AddResource("result.schema.json", doc))
	schema, err := compiler.Compile("result.schema.json")
	require.NoError(t, err)
	return schema
}

func TestResult_MatchesSchema(t *testing.T) {
	schema := compileResultSchema(t)

	results := []*Result{
		{Status: StatusSuccess, Command: "version", Metadata: &Metadata{DurationMs: 3, APIVersion: "v1"}},
		{Status: StatusError, Command: "poll", Error: &ErrorInfo{Code: "APRS", Message: "fetch telemetry failed"}},
		{Status: StatusSuccess, Command: "sessions", Data: []string{"APRS_tracker_N0CALL"}},
	}

	for _, r := range results {
		var buf bytes.Buffer
		require.NoError(t, NewJSONWriter().Write(&buf, r))
		inst, err := jsonschema.UnmarshalJSON(&buf)
		require.NoError(t, err)
		require.NoError(t, schema.Validate(inst), "command %s", r.Command)
	}
}

func TestResult_SchemaRejectsUnknownStatus(t *testing.T) {
	schema := compileResultSchema(t)
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(`{"status":"partial","command":"poll"}`))
	require.NoError(t, err)
	require.Error(t, schema.Validate(inst))
}
