// Package output форматирует результаты CLI команд в JSON или текст.
package output

// StatusSuccess и StatusError - возможные значения поля Status в Result.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result - структурированный результат выполнения команды.
type Result struct {
	// Status: "success" или "error".
	Status string `json:"status"`

	Command string `json:"command"`

	// Data - payload команды. Если Data реализует TextRenderer,
	// текстовый вывод использует его вместо JSON.
	Data any `json:"data,omitempty"`

	// Error заполняется только при status="error".
	Error *ErrorInfo `json:"error,omitempty"`

	Metadata *Metadata `json:"metadata,omitempty"`
}

// ErrorInfo - ошибка в машиночитаемом виде.
// Message не должен содержать секреты.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metadata - метаданные выполнения.
type Metadata struct {
	DurationMs int64  `json:"duration_ms"`
	TraceID    string `json:"trace_id,omitempty"`
	APIVersion string `json:"api_version"`
}
