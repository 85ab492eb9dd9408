package output

import (
	"encoding/json"
	"io"
)

// JSONWriter форматирует Result в JSON: с отступами или одной строкой.
type JSONWriter struct {
	compact bool
}

// NewJSONWriter создаёт JSONWriter с отступами.
func NewJSONWriter() *JSONWriter {
	return &JSONWriter{}
}

// NewCompactJSONWriter создаёт JSONWriter, который пишет одну строку на Result.
func NewCompactJSONWriter() *JSONWriter {
	return &JSONWriter{compact: true}
}

// Write сериализует result в w. Encode всегда завершает запись переводом строки.
func (j *JSONWriter) Write(w io.Writer, result *Result) error {
	encoder := json.NewEncoder(w)
	if !j.compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(result)
}
