package output

import "io"

// Writer форматирует результат команды.
type Writer interface {
	Write(w io.Writer, result *Result) error
}

// TextRenderer - Data с собственным текстовым представлением.
type TextRenderer interface {
	WriteText(w io.Writer) error
}
