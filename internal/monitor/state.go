package monitor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Status - состояние алерта позывного.
type Status string

const (
	// StatusUnknown - записи нет или значение alert_sent не распознано.
	StatusUnknown Status = "unknown"
	// StatusClear - последняя оценка без нарушений.
	StatusClear Status = "clear"
	// StatusActive - последняя оценка нашла нарушение, уведомление уже отправлено.
	StatusActive Status = "active"
)

// ParseStatus читает значение alert_sent. Принимает "True"/"False" старых
// записей и "true"/"false".
func ParseStatus(v string) Status {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "active":
		return StatusActive
	case "false", "clear":
		return StatusClear
	default:
		return StatusUnknown
	}
}

// alertSentValue - значение alert_sent в формате существующих записей.
func alertSentValue(s Status) string {
	if s == StatusActive {
		return "True"
	}
	return "False"
}

// Атрибуты записи состояния.
const (
	attrReportTime = "report_time"
	attrComment    = "comment"
	attrAlertSent  = "alert_sent"
	attrSMSSID     = "SMS_sid"
	attrRevision   = "revision"
)

// reportTimeLayouts - форматы report_time: RFC3339 и формат старых записей
// с суффиксом "Z+0000".
var reportTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z-0700",
	"2006-01-02T15:04:05Z",
}

// AlertState - сохранённое состояние позывного.
type AlertState struct {
	LastObservedAt     time.Time
	LastComment        string
	Status             Status
	LastAlertMessageID string

	// revision - значение атрибута revision, hasRevision=false у записей без него.
	revision    int64
	hasRevision bool
}

// decodeState собирает AlertState из атрибутов записи.
func decodeState(attrs map[string]string) AlertState {
	st := AlertState{
		LastComment:        attrs[attrComment],
		Status:             StatusUnknown,
		LastAlertMessageID: attrs[attrSMSSID],
	}
	if v, ok := attrs[attrAlertSent]; ok {
		st.Status = ParseStatus(v)
	}
	if v, ok := attrs[attrReportTime]; ok {
		st.LastObservedAt, _ = parseReportTime(v)
	}
	if v, ok := attrs[attrRevision]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			st.revision = n
			st.hasRevision = true
		}
	}
	return st
}

func parseReportTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range reportTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized report_time %q", v)
}

// Comment: внутренняя температура в символах [2:7], внешняя в [11:16].
const (
	internalFrom, internalTo = 2, 7
	auxFrom, auxTo           = 11, 16
)

// ParseComment извлекает температуры из комментария маяка.
func ParseComment(comment string) (internal, aux float64, err error) {
	if len(comment) < auxTo {
		return 0, 0, fmt.Errorf("comment too short for telemetry: %d bytes", len(comment))
	}
	internal, err = parseTemp(comment[internalFrom:internalTo])
	if err != nil {
		return 0, 0, fmt.Errorf("internal temperature: %w", err)
	}
	aux, err = parseTemp(comment[auxFrom:auxTo])
	if err != nil {
		return 0, 0, fmt.Errorf("aux temperature: %w", err)
	}
	return internal, aux, nil
}

// parseInternal - только внутренняя температура (предыдущий комментарий).
func parseInternal(comment string) (float64, bool) {
	if len(comment) < internalTo {
		return 0, false
	}
	v, err := parseTemp(comment[internalFrom:internalTo])
	return v, err == nil
}

// parseTemp разбирает поле температуры. NaN и Inf не проходят ни одного
// порога и считаются ошибкой разбора.
func parseTemp(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", strings.TrimSpace(field))
	}
	return v, nil
}
