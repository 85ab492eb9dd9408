// Package notify - канал исходящих SMS: интерфейс отправителя и режим
// dry-run, в котором сообщения только логируются.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

// Sender отправляет SMS и возвращает идентификатор доставки.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Message - сообщение, принятое DryRunSender.
type Message struct {
	SID    string
	To     string
	Body   string
	SentAt time.Time
}

// DryRunSender не отправляет SMS: логирует и запоминает сообщение.
type DryRunSender struct {
	logger logging.Logger
	mu     sync.Mutex
	sent   []Message
}

// NewDryRunSender создаёт DryRunSender.
func NewDryRunSender(logger logging.Logger) *DryRunSender {
	return &DryRunSender{logger: logger}
}

// Send возвращает SID вида "DR" + 32 hex символа, по форме как SID Twilio.
func (d *DryRunSender) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sid := "DR" + strings.ReplaceAll(uuid.NewString(), "-", "")

	d.mu.Lock()
	d.sent = append(d.sent, Message{SID: sid, To: to, Body: body, SentAt: time.Now().UTC()})
	d.mu.Unlock()

	d.logger.Info("[DRY-RUN] sms не отправлено", "sid", sid, "to", to, "body", body)
	return sid, nil
}

// Sent возвращает копию принятых сообщений.
func (d *DryRunSender) Sent() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Message(nil), d.sent...)
}
