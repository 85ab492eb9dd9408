// Package aprsfi - клиент aprs.fi API: последний маяк позывного.
package aprsfi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sony/gobreaker"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/urlutil"
)

// maxResponseBytes - предел тела ответа.
const maxResponseBytes = 1 << 20

// Entry - последний маяк позывного.
type Entry struct {
	Name string
	// Comment - свободный текст маяка, в нём телеметрия температур.
	Comment string
	// LastTime - время последнего маяка по данным aprs.fi.
	LastTime time.Time
}

// Client - источник телеметрии.
type Client interface {
	Latest(ctx context.Context, callsign string) (Entry, error)
}

// Compile-time проверка реализации интерфейса.
var _ Client = (*APIClient)(nil)

// HTTPDoer - минимальный HTTP клиент.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config - параметры клиента.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
	// MaxFailures - подряд идущие сбои до размыкания.
	MaxFailures uint32
	// OpenTimeout - сколько размыкатель остаётся открытым.
	OpenTimeout time.Duration
}

// APIClient реализует Client поверх HTTP API aprs.fi.
type APIClient struct {
	config  Config
	http    HTTPDoer
	breaker *gobreaker.CircuitBreaker
	schema  schemaValidator
	logger  logging.Logger
}

type schemaValidator interface {
	Validate(v any) error
}

// NewAPIClient создаёт клиент.
func NewAPIClient(config Config, logger logging.Logger) (*APIClient, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("aprsfi: compiling response schema: %w", err)
	}
	maxFailures := config.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	c := &APIClient{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		schema: schema,
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "aprsfi",
		Timeout: config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// неизвестный позывной - ответ сервиса, а не его сбой
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotFoundError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("размыкатель aprs.fi сменил состояние", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// SetHTTPClient подменяет HTTP клиент (для тестов).
func (c *APIClient) SetHTTPClient(doer HTTPDoer) {
	c.http = doer
}

type locResponse struct {
	Result      string     `json:"result"`
	Description string     `json:"description"`
	Found       int        `json:"found"`
	Entries     []locEntry `json:"entries"`
}

type locEntry struct {
	Name     string      `json:"name"`
	Comment  string      `json:"comment"`
	LastTime json.Number `json:"lasttime"`
}

// Latest возвращает последний маяк позывного.
// Любой сбой возвращается как *FeedError.
func (c *APIClient) Latest(ctx context.Context, callsign string) (Entry, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	res, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, callsign)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Entry{}, NewFeedError(ErrFeedCircuitOpen, "aprs.fi circuit breaker is open", err)
	}
	if err != nil {
		return Entry{}, err
	}
	return res.(Entry), nil
}

func (c *APIClient) fetch(ctx context.Context, callsign string) (Entry, error) {
	reqURL, err := c.buildURL(callsign)
	if err != nil {
		return Entry{}, NewFeedError(ErrFeedConnect, "invalid aprs.fi base url", err)
	}
	masked := urlutil.RedactQuery(reqURL, "apikey")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Entry{}, NewFeedError(ErrFeedConnect, "building request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// текст ошибки net/http содержит полный URL с ключом
		return Entry{}, NewFeedError(ErrFeedConnect, "request to "+masked+" failed", errors.New(redactErr(err, c.config.APIKey)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Entry{}, NewFeedError(ErrFeedConnect, "reading response", err)
	}
	c.logger.Debug("ответ aprs.fi получен",
		"url", masked,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Entry{}, &FeedError{
			Code:       ErrFeedAPI,
			Message:    "response not 2xx: " + strconv.Itoa(resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	return c.decode(body, callsign)
}

func (c *APIClient) decode(body []byte, callsign string) (Entry, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return Entry{}, NewFeedError(ErrFeedInvalidResponse, "response is not json", err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return Entry{}, NewFeedError(ErrFeedInvalidResponse, "response does not match schema", err)
	}

	var payload locResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Entry{}, NewFeedError(ErrFeedInvalidResponse, "decoding response", err)
	}
	if payload.Result == "fail" {
		return Entry{}, NewFeedError(ErrFeedAPI, "request failed: "+payload.Description, nil)
	}
	if len(payload.Entries) == 0 {
		return Entry{}, NewFeedError(ErrFeedNotFound, "no entries for "+callsign, nil)
	}

	raw := payload.Entries[0]
	sec, err := raw.LastTime.Int64()
	if err != nil {
		return Entry{}, NewFeedError(ErrFeedInvalidResponse, "invalid lasttime", err)
	}
	return Entry{
		Name:     raw.Name,
		Comment:  raw.Comment,
		LastTime: time.Unix(sec, 0).UTC(),
	}, nil
}

func (c *APIClient) buildURL(callsign string) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("name", callsign)
	q.Set("what", "loc")
	q.Set("apikey", c.config.APIKey)
	q.Set("format", "json")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redactErr(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, key, "***")
}
