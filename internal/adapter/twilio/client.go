// Package twilio отправляет SMS через Twilio Messages API.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
)

const (
	apiVersion       = "2010-04-01"
	maxResponseBytes = 64 << 10
)

// Config - параметры клиента.
type Config struct {
	AccountSID string
	AuthToken  string
	// MessagingServiceSID имеет приоритет над From.
	MessagingServiceSID string
	From                string
	BaseURL             string
	Timeout             time.Duration
	MaxFailures         uint32
	OpenTimeout         time.Duration
}

// HTTPDoer - минимальный HTTP клиент.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client отправляет SMS. Одна попытка на сообщение, без повторов.
type Client struct {
	config  Config
	http    HTTPDoer
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// NewClient создаёт клиент.
func NewClient(config Config, logger logging.Logger) *Client {
	maxFailures := config.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	c := &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "twilio",
		Timeout: config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// 4xx - ошибка запроса (номер, тело), шлюз исправен
		IsSuccessful: func(err error) bool {
			var te *TwilioError
			if errors.As(err, &te) && te.StatusCode >= 400 && te.StatusCode < 500 {
				return true
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("размыкатель twilio сменил состояние", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// SetHTTPClient подменяет HTTP клиент (для тестов).
func (c *Client) SetHTTPClient(doer HTTPDoer) {
	c.http = doer
}

type messageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send отправляет SMS и возвращает SID сообщения.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", &TwilioError{Code: ErrTwilioValidation, Message: "recipient is empty"}
	}
	if c.config.MessagingServiceSID == "" && c.config.From == "" {
		return "", &TwilioError{Code: ErrTwilioValidation, Message: "neither messaging service sid nor from number configured"}
	}
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	res, err := c.breaker.Execute(func() (any, error) {
		return c.post(ctx, to, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", &TwilioError{Code: ErrTwilioCircuitOpen, Message: "twilio circuit breaker is open", Cause: err}
	}
	if err != nil {
		return "", err
	}
	sid := res.(string)
	c.logger.Info("sms отправлено", "sid", sid, "to", maskPhone(to))
	return sid, nil
}

func (c *Client) post(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("Body", body)
	if c.config.MessagingServiceSID != "" {
		form.Set("MessagingServiceSid", c.config.MessagingServiceSID)
	} else {
		form.Set("From", c.config.From)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/" + apiVersion +
		"/Accounts/" + url.PathEscape(c.config.AccountSID) + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &TwilioError{Code: ErrTwilioConnect, Message: "building request", Cause: err}
	}
	req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TwilioError{Code: ErrTwilioConnect, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &TwilioError{Code: ErrTwilioConnect, Message: "reading response", Cause: err}
	}
	var msg messageResponse
	decodeErr := json.Unmarshal(raw, &msg)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &TwilioError{
			Code:       ErrTwilioAPI,
			Message:    "status " + strconv.Itoa(resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
		if decodeErr == nil {
			te.APICode = msg.Code
			if msg.Message != "" {
				te.Message += ": " + msg.Message
			}
		}
		return "", te
	}
	if decodeErr != nil {
		return "", &TwilioError{Code: ErrTwilioAPI, Message: "decoding response", Cause: decodeErr, StatusCode: resp.StatusCode}
	}
	if msg.SID == "" {
		return "", &TwilioError{Code: ErrTwilioAPI, Message: "response without sid", StatusCode: resp.StatusCode}
	}
	return msg.SID, nil
}

// maskPhone оставляет последние 4 цифры номера.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "***"
	}
	return "***" + phone[len(phone)-4:]
}
