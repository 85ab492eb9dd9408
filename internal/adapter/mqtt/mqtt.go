// Package mqtt публикует смены статуса алерта в MQTT брокер.
// Сообщение retained: подписчик сразу получает текущий статус позывного.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/zzaxusl0a/APRS-notify/internal/monitor"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/urlutil"
)

// disconnectQuiesce - время на отправку исходящих сообщений при отключении (мс).
const disconnectQuiesce = 250

var (
	// ErrBrokerRequired - не задан адрес брокера.
	ErrBrokerRequired = errors.New("mqtt: broker is required")
	// ErrTimeout - брокер не подтвердил операцию вовремя.
	ErrTimeout = errors.New("mqtt: operation timed out")
)

// Config - параметры подключения.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	MaxRetries     uint64
}

// newClient подменяется в тестах.
var newClient = mqtt.NewClient

// Publisher реализует monitor.Publisher.
type Publisher struct {
	client mqtt.Client
	config Config
	logger logging.Logger
}

var _ monitor.Publisher = (*Publisher)(nil)

// Connect подключается к брокеру с экспоненциальной задержкой между попытками.
// Число повторов ограничено MaxRetries.
func Connect(ctx context.Context, config Config, logger logging.Logger) (*Publisher, error) {
	if config.Broker == "" {
		return nil, ErrBrokerRequired
	}
	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(config.ConnectTimeout)

	var client mqtt.Client
	attempt := 0
	op := func() error {
		attempt++
		client = newClient(opts)
		if err := wait(ctx, client.Connect(), config.ConnectTimeout); err != nil {
			logger.Warn("не удалось подключиться к mqtt брокеру",
				"broker", urlutil.MaskURL(config.Broker),
				"attempt", attempt,
				"error", err.Error(),
			)
			return err
		}
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), config.MaxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("mqtt: connect %s after %d attempts: %w", urlutil.MaskURL(config.Broker), attempt, err)
	}

	logger.Info("подключено к mqtt брокеру", "broker", urlutil.MaskURL(config.Broker))
	return NewPublisher(client, config, logger), nil
}

// NewPublisher оборачивает уже подключённый клиент.
func NewPublisher(client mqtt.Client, config Config, logger logging.Logger) *Publisher {
	return &Publisher{client: client, config: config, logger: logger}
}

// Topic - топик позывного: <prefix>/<CALLSIGN>.
func (p *Publisher) Topic(callsign string) string {
	prefix := strings.TrimRight(p.config.TopicPrefix, "/")
	if prefix == "" {
		return callsign
	}
	return prefix + "/" + callsign
}

// PublishTransition публикует JSON события и ждёт подтверждения брокера.
func (p *Publisher) PublishTransition(ctx context.Context, t monitor.Transition) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("mqtt: encode transition: %w", err)
	}
	topic := p.Topic(t.Callsign)
	if err := wait(ctx, p.client.Publish(topic, p.config.QoS, true, payload), p.config.PublishTimeout); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	p.logger.Debug("смена статуса опубликована", "topic", topic, "to", string(t.To))
	return nil
}

// Close отключается от брокера.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesce)
	}
}

// wait ждёт завершения token не дольше timeout (0 - без ограничения) и ctx.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-token.Done():
		return token.Error()
	case <-expired:
		return ErrTimeout
	case <-ctx.Done():
		return backoff.Permanent(ctx.Err())
	}
}
