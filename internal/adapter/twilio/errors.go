package twilio

import "fmt"

// Коды ошибок Twilio.
const (
	// ErrTwilioConnect - сетевая ошибка или таймаут.
	ErrTwilioConnect = "TWILIO.CONNECT_FAILED"
	// ErrTwilioAPI - API вернул ошибку.
	ErrTwilioAPI = "TWILIO.API_FAILED"
	// ErrTwilioCircuitOpen - размыкатель открыт.
	ErrTwilioCircuitOpen = "TWILIO.CIRCUIT_OPEN"
	// ErrTwilioValidation - не заданы отправитель или получатель.
	ErrTwilioValidation = "TWILIO.VALIDATION_FAILED"
)

// TwilioError представляет ошибку отправки SMS.
type TwilioError struct {
	Code    string
	Message string
	Cause   error
	// StatusCode - HTTP статус ответа (если применимо)
	StatusCode int
	// APICode - код ошибки Twilio, например 21211 (неверный номер)
	APICode int
}

// Error реализует интерфейс error.
func (e *TwilioError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.APICode != 0 {
		msg += fmt.Sprintf(" (twilio code %d)", e.APICode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap возвращает оригинальную ошибку для errors.Is/As.
func (e *TwilioError) Unwrap() error {
	return e.Cause
}
