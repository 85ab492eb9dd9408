package watchdog

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrControlMessage - служебная проверка доставки CloudWatch, записей об ошибках нет.
var ErrControlMessage = errors.New("watchdog: control message")

// maxDecompressed ограничивает размер распакованного пакета логов.
const maxDecompressed = 8 << 20

// subscriptionEnvelope - событие подписки CloudWatch Logs.
type subscriptionEnvelope struct {
	AWSLogs *struct {
		Data string `json:"data"`
	} `json:"awslogs"`
}

// logsPayload - распакованное содержимое awslogs.data.
type logsPayload struct {
	MessageType string `json:"messageType"`
	LogGroup    string `json:"logGroup"`
	LogStream   string `json:"logStream"`
	LogEvents   []struct {
		ID        string `json:"id"`
		Timestamp int64  `json:"timestamp"`
		Message   string `json:"message"`
	} `json:"logEvents"`
}

// DecodeEnvelope разбирает пакет записей об ошибках. Принимает
// {"awslogs":{"data": base64(gzip(JSON))}} и уже распакованный JSON с logEvents.
// Для CONTROL_MESSAGE возвращает ErrControlMessage.
func DecodeEnvelope(data []byte) ([]Record, error) {
	var env subscriptionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	raw := data
	if env.AWSLogs != nil {
		compressed, err := base64.StdEncoding.DecodeString(env.AWSLogs.Data)
		if err != nil {
			return nil, fmt.Errorf("decode awslogs data: %w", err)
		}
		zr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("gunzip awslogs data: %w", err)
		}
		defer zr.Close()
		raw, err = io.ReadAll(io.LimitReader(zr, maxDecompressed))
		if err != nil {
			return nil, fmt.Errorf("gunzip awslogs data: %w", err)
		}
	}

	var payload logsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode log events: %w", err)
	}
	if payload.MessageType == "CONTROL_MESSAGE" {
		return nil, ErrControlMessage
	}
	records := make([]Record, 0, len(payload.LogEvents))
	for _, ev := range payload.LogEvents {
		records = append(records, Record{Message: ev.Message, Source: payload.LogGroup})
	}
	return records, nil
}

// firstLine - первая строка сообщения. Строка лога Lambda
// "timestamp\trequestId\tLEVEL\tmessage" сначала сводится к полю message.
func firstLine(message string) string {
	if fields := strings.SplitN(message, "\t", 4); len(fields) == 4 {
		message = fields[3]
	}
	line, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(line)
}
