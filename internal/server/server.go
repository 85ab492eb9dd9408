// Package server - HTTP сервер команды serve: webhook входящих SMS,
// приём пакетов watchdog, метрики и проверка живости. Вместе с сервером
// работает исполнитель периодических опросов.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/watchdog"
)

// WatchdogHandler обрабатывает пакет логов сбоев.
type WatchdogHandler interface {
	Handle(ctx context.Context, payload []byte) watchdog.Report
}

// Runner - фоновый исполнитель, работающий до отмены ctx.
type Runner interface {
	Run(ctx context.Context) error
}

// Config - параметры сервера.
type Config struct {
	Addr            string
	WebhookPath     string
	WatchdogPath    string
	MetricsPath     string
	WatchdogToken   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	MaxBodyBytes    int64
}

// Deps - обработчики. Watchdog, Metrics и Runner необязательны.
type Deps struct {
	Webhook  http.Handler
	Watchdog WatchdogHandler
	Metrics  http.Handler
	Runner   Runner
	Logger   logging.Logger
}

// Server объединяет HTTP сервер и исполнитель опросов.
type Server struct {
	config Config
	deps   Deps
	http   *http.Server
}

// New создаёт Server.
func New(config Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 15 * time.Second
	}
	s := &Server{config: config, deps: deps}
	s.http = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
	}
	return s
}

// Handler собирает маршруты.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST "+s.config.WebhookPath, s.deps.Webhook)
	if s.deps.Watchdog != nil && s.config.WatchdogToken != "" {
		mux.HandleFunc("POST "+s.config.WatchdogPath, s.handleWatchdog)
	}
	if s.deps.Metrics != nil && s.config.MetricsPath != "" {
		mux.Handle("GET "+s.config.MetricsPath, s.deps.Metrics)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	return mux
}

// Run слушает адрес до отмены ctx, затем завершает запросы в пределах
// ShutdownTimeout и дожидается исполнителя опросов.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve - Run на готовом listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if s.deps.Runner != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.deps.Runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.deps.Logger.Error("исполнитель опросов остановлен с ошибкой", "error", err.Error())
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("HTTP сервер запущен", "addr", ln.Addr().String())
		serveErr <- s.http.Serve(ln)
	}()

	var err error
	select {
	case <-ctx.Done():
		s.deps.Logger.Info("получен сигнал остановки, завершаем работу")
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := s.http.Shutdown(shutdownCtx); shutdownErr != nil {
		s.deps.Logger.Warn("ошибка остановки HTTP сервера", "error", shutdownErr.Error())
	}
	cancel()
	wg.Wait()
	s.deps.Logger.Info("сервер остановлен")
	return err
}

type watchdogResponse struct {
	Records   int    `json:"records"`
	MessageID string `json:"message_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
}

func (s *Server) handleWatchdog(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	ctx := r.Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	report := s.deps.Watchdog.Handle(ctx, payload)
	resp := watchdogResponse{Records: report.Records, MessageID: report.MessageID, Code: report.Code, Skipped: report.Skipped}
	status := http.StatusOK
	if !report.OK() {
		resp.Error = report.Err.Error()
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// authorized сверяет bearer токен за постоянное время.
func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.WatchdogToken)) == 1
}
