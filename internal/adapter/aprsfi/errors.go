package aprsfi

import (
	"errors"
	"fmt"
)

// Коды ошибок aprs.fi.
const (
	// ErrFeedConnect - сетевая ошибка или таймаут запроса.
	ErrFeedConnect = "APRSFI.CONNECT_FAILED"
	// ErrFeedAPI - HTTP статус не 2xx или result == "fail".
	ErrFeedAPI = "APRSFI.API_FAILED"
	// ErrFeedInvalidResponse - ответ не соответствует схеме.
	ErrFeedInvalidResponse = "APRSFI.INVALID_RESPONSE"
	// ErrFeedNotFound - позывной не найден.
	ErrFeedNotFound = "APRSFI.NOT_FOUND"
	// ErrFeedCircuitOpen - размыкатель открыт, запрос не выполнялся.
	ErrFeedCircuitOpen = "APRSFI.CIRCUIT_OPEN"
)

// FeedError представляет ошибку при работе с aprs.fi API.
type FeedError struct {
	// Code - код ошибки (одна из констант ErrFeed*)
	Code string
	// Message - описание ошибки, без API ключа
	Message string
	// Cause - оригинальная ошибка (если есть)
	Cause error
	// StatusCode - HTTP статус ответа (если применимо)
	StatusCode int
}

// Error реализует интерфейс error.
func (e *FeedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает оригинальную ошибку для errors.Is/As.
func (e *FeedError) Unwrap() error {
	return e.Cause
}

// NewFeedError создаёт ошибку aprs.fi.
func NewFeedError(code, message string, cause error) *FeedError {
	return &FeedError{Code: code, Message: message, Cause: cause}
}

// IsNotFoundError сообщает, что позывной не найден.
func IsNotFoundError(err error) bool {
	var feedErr *FeedError
	if errors.As(err, &feedErr) {
		return feedErr.Code == ErrFeedNotFound
	}
	return false
}
