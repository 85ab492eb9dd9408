package output

import "strings"

// Форматы вывода. FormatNDJSON - Result одной строкой, для journald и
// планировщиков, которые собирают вывод poll построчно.
const (
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
	FormatText   = "text"
)

// ParseFormat нормализует имя формата (регистр, пробелы).
// ok == false для неизвестного формата, тогда format == FormatText.
func ParseFormat(name string) (format string, ok bool) {
	switch f := strings.ToLower(strings.TrimSpace(name)); f {
	case FormatJSON, FormatNDJSON, FormatText:
		return f, true
	case "":
		return FormatText, true
	default:
		return FormatText, false
	}
}

// IsJSON - формат выводит Result как JSON.
func IsJSON(format string) bool {
	f, _ := ParseFormat(format)
	return f != FormatText
}

// NewWriter создаёт Writer по формату. Неизвестный формат даёт TextWriter.
func NewWriter(format string) Writer {
	f, _ := ParseFormat(format)
	switch f {
	case FormatJSON:
		return NewJSONWriter()
	case FormatNDJSON:
		return NewCompactJSONWriter()
	default:
		return NewTextWriter()
	}
}
