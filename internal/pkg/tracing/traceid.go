// Package tracing связывает trace ID логов с OpenTelemetry spans.
//
// Формат trace ID: 32 символа hex (W3C Trace Context), например
// "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6". Один trace ID на входящий webhook,
// на тик планировщика и на запуск CLI-команды.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var fallbackCounter atomic.Uint64

type traceIDKey struct{}

// GenerateTraceID генерирует 32-символьный hex trace ID через crypto/rand.
// При недоступном crypto/rand используется timestamp + счётчик.
func GenerateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fallbackTraceID()
	}
	return hex.EncodeToString(b)
}

// fallbackTraceID: %016x для uint64 даёт ровно 16 символов, итого всегда 32.
func fallbackTraceID() string {
	counter := fallbackCounter.Add(1)
	return fmt.Sprintf("%016x%016x", uint64(time.Now().UnixNano()), counter)
}

// WithTraceID возвращает context с trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFromContext извлекает trace ID. Пустая строка, если не установлен.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// EnsureTraceID возвращает context с trace ID: существующим или новым.
// Новый trace ID также становится OTel trace ID для spans этого context.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if id := TraceIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := GenerateTraceID()
	ctx = WithTraceID(ctx, id)
	return ContextWithOTelTraceID(ctx, id), id
}
