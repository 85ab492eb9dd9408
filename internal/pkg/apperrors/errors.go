// Package apperrors предоставляет структурированные ошибки приложения.
// Переименован из errors чтобы избежать конфликта со стандартной библиотекой.
package apperrors

import (
	"errors"
	"fmt"
)

// Коды ошибок конфигурации и команд в иерархическом формате: CATEGORY.SPECIFIC_ERROR.
// Позволяет grep по категориям: `grep "CONFIG\."` для всех config ошибок.
const (
	// Category: CONFIG - ошибки загрузки и парсинга конфигурации.
	ErrConfigLoad     = "CONFIG.LOAD_FAILED"
	ErrConfigParse    = "CONFIG.PARSE_FAILED"
	ErrConfigValidate = "CONFIG.VALIDATION_FAILED"

	// Category: COMMAND - ошибки выполнения команд.
	ErrCommandNotFound = "COMMAND.NOT_FOUND"
	ErrCommandExec     = "COMMAND.EXEC_FAILED"

	// Category: OUTPUT - ошибки форматирования вывода.
	ErrOutputFormat = "OUTPUT.FORMAT_FAILED"
)

// Короткие коды системных ошибок. Уходят в лог, в метрики и в поле code ответа webhook.
const (
	// CodeFeed - сбой получения или разбора телеметрии aprs.fi.
	CodeFeed = "APRS"
	// CodeStore - сбой хранилища состояния алертов.
	CodeStore = "SDB"
	// CodeScheduler - сбой планировщика (сессии мониторинга).
	CodeScheduler = "SCH"
	// CodeMonitor - сбой цикла оценки, не отнесённый к конкретному адаптеру.
	CodeMonitor = "MON"
	// CodeNotify - сбой отправки SMS.
	CodeNotify = "SMS"
	// CodeWatchdog - сбой watchdog.
	CodeWatchdog = "WDG"
	// CodeAuth - входящее SMS не прошло проверку подписи или конверт повреждён.
	CodeAuth = "iSMS"
	// CodeCommand - SMS не удалось разобрать как команду.
	CodeCommand = "CMD"
	// CodeDenied - отказ в доступе (STOP чужой сессии).
	CodeDenied = "AUTHZ"
)

// Kind - класс ошибки. Определяет, как граница (webhook, CLI) реагирует на ошибку.
type Kind int

const (
	// KindInternal - ошибка без явного класса (конфигурация, вывод).
	KindInternal Kind = iota
	// KindAuth - подпись входящего запроса не прошла проверку.
	KindAuth
	// KindCommandFormat - тело SMS не является корректной командой.
	KindCommandFormat
	// KindTransport - сбой внешнего взаимодействия (сеть, хранилище, планировщик, таймаут).
	KindTransport
	// KindAuthorization - запрашивающий не владеет ресурсом.
	KindAuthorization
)

// String возвращает имя класса ошибки.
func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindCommandFormat:
		return "CommandFormatError"
	case KindTransport:
		return "TransportError"
	case KindAuthorization:
		return "AuthorizationError"
	default:
		return "InternalError"
	}
}

// AppError представляет структурированную ошибку приложения.
// Реализует error interface и поддерживает wrapping через Unwrap().
//
// ВАЖНО: Message НЕ ДОЛЖЕН содержать секреты (пароли, токены, ключи).
// Используйте generic описания без конкретных значений.
//
// Пример использования:
//
//	return apperrors.NewTransportError(apperrors.CodeFeed,
//	    "не удалось получить телеметрию", err)
type AppError struct {
	// Kind - класс ошибки.
	Kind Kind `json:"-"`

	// Code - машиночитаемый код ошибки.
	Code string `json:"code"`

	// Message - человекочитаемое описание ошибки.
	// НЕ ДОЛЖЕН содержать секреты!
	Message string `json:"message"`

	// Cause - wrapped оригинальная ошибка.
	// Не сериализуется в JSON для безопасности (может содержать stack trace).
	Cause error `json:"-"`
}

// Error реализует интерфейс error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает wrapped ошибку для errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError создаёт новый AppError с заданным кодом, сообщением и причиной.
//
// ВАЖНО: message НЕ ДОЛЖЕН содержать секреты!
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAuthError создаёт ошибку проверки подписи.
func NewAuthError(message string) *AppError {
	return &AppError{Kind: KindAuth, Code: CodeAuth, Message: message}
}

// NewCommandFormatError создаёт ошибку разбора команды.
func NewCommandFormatError(message string) *AppError {
	return &AppError{Kind: KindCommandFormat, Code: CodeCommand, Message: message}
}

// NewTransportError создаёт ошибку внешнего взаимодействия с коротким кодом подсистемы.
func NewTransportError(code, message string, cause error) *AppError {
	return &AppError{Kind: KindTransport, Code: code, Message: message, Cause: cause}
}

// NewAuthorizationError создаёт ошибку отказа в доступе.
func NewAuthorizationError(message string) *AppError {
	return &AppError{Kind: KindAuthorization, Code: CodeDenied, Message: message}
}

// KindOf возвращает класс первой AppError в цепочке или KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf возвращает код первой AppError в цепочке или пустую строку.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsTransport сообщает, является ли err ошибкой внешнего взаимодействия.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// MessageOf возвращает текст первой AppError без кода и причины.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
