package aprsfi

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// responseSchema описывает ответ /api/get?what=loc в объёме, который читает клиент.
// lasttime приходит строкой с секундами epoch.
const responseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["result"],
  "properties": {
    "result": {"enum": ["ok", "fail"]},
    "description": {"type": "string"},
    "found": {"type": "integer", "minimum": 0},
    "entries": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "lasttime"],
        "properties": {
          "name": {"type": "string"},
          "comment": {"type": "string"},
          "lasttime": {
            "oneOf": [
              {"type": "string", "pattern": "^[0-9]+$"},
              {"type": "integer", "minimum": 0}
            ]
          }
        }
      }
    }
  }
}`

const schemaURL = "mem://aprsfi/loc-response.json"

// compileSchema компилирует responseSchema.
func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(responseSchema))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaURL)
}
