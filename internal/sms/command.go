package sms

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/apperrors"
)

// Verb - команда SMS.
type Verb string

// Поддерживаемые команды.
const (
	VerbStart   Verb = "START"
	VerbStop    Verb = "STOP"
	VerbStatus  Verb = "STATUS"
	VerbUnknown Verb = "UNKNOWN"
)

// UsageText - подсказка, которую получает отправитель некорректной команды.
const UsageText = "Usage: START <callsign>, STOP <callsign> or STATUS <callsign>"

// callsignPattern - позывной с необязательным SSID (N0CALL, WE7SKI-9).
var callsignPattern = regexp.MustCompile(`^[A-Z0-9]{1,9}(-[A-Z0-9]{1,2})?$`)

// toUpper приводит токен к верхнему регистру без учёта локали.
// cases.Caser хранит состояние, поэтому создаётся на каждый вызов.
func toUpper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// Command - разобранная команда.
type Command struct {
	Verb Verb
	// Callsign в верхнем регистре. Пуст для UNKNOWN без второго токена.
	Callsign string
	// From - номер отправителя (поле From запроса, не тело SMS).
	From string
}

// ParseCommand разбирает текст SMS.
//
// Первый токен - команда без учёта регистра. START, STOP и STATUS требуют
// позывной вторым токеном, иначе возвращается CommandFormatError с
// подсказкой. Неизвестная команда даёт VerbUnknown без ошибки. Лишние
// токены игнорируются.
func ParseCommand(body, from string) (Command, error) {
	cmd := Command{Verb: VerbUnknown, From: strings.TrimSpace(from)}

	tokens := strings.Fields(body)
	if len(tokens) == 0 {
		return cmd, apperrors.NewCommandFormatError("empty message. " + UsageText)
	}

	verb := Verb(toUpper(tokens[0]))
	var callsign string
	if len(tokens) > 1 {
		callsign = toUpper(tokens[1])
	}

	switch verb {
	case VerbStart, VerbStop, VerbStatus:
		cmd.Verb = verb
	default:
		cmd.Callsign = callsign
		return cmd, nil
	}

	if callsign == "" {
		return cmd, apperrors.NewCommandFormatError(string(verb) + " requires a callsign. " + UsageText)
	}
	if !ValidCallsign(callsign) {
		return cmd, apperrors.NewCommandFormatError("invalid callsign " + callsign + ". " + UsageText)
	}
	cmd.Callsign = callsign
	return cmd, nil
}

// ValidCallsign сообщает, похож ли s на позывной (регистр уже приведён).
func ValidCallsign(s string) bool {
	return callsignPattern.MatchString(s)
}

// NormalizeCallsign приводит позывной к ключу хранения.
func NormalizeCallsign(s string) string {
	return toUpper(strings.TrimSpace(s))
}
