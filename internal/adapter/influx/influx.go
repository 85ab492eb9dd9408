// Package influx пишет показания маяков в InfluxDB 2.x (история температур).
package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/zzaxusl0a/APRS-notify/internal/monitor"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/logging"
	"github.com/zzaxusl0a/APRS-notify/internal/pkg/urlutil"
)

// DefaultMeasurement - measurement по умолчанию.
const DefaultMeasurement = "beacon_temperature"

// ErrURLRequired - не задан адрес InfluxDB.
var ErrURLRequired = errors.New("influx: url is required")

// Config - параметры подключения.
type Config struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	Timeout     time.Duration
}

// Writer реализует monitor.Sink.
type Writer struct {
	client      influxdb2.Client
	write       api.WriteAPIBlocking
	measurement string
	timeout     time.Duration
	logger      logging.Logger
}

var _ monitor.Sink = (*Writer)(nil)

// NewWriter создаёт клиент с блокирующей записью без батчинга.
func NewWriter(config Config, logger logging.Logger) (*Writer, error) {
	if config.URL == "" {
		return nil, ErrURLRequired
	}
	if config.Measurement == "" {
		config.Measurement = DefaultMeasurement
	}
	opts := influxdb2.DefaultOptions().SetPrecision(time.Second)
	if config.Timeout > 0 {
		secs := uint(config.Timeout / time.Second)
		if secs == 0 {
			secs = 1
		}
		opts.SetHTTPRequestTimeout(secs)
	}
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, opts)

	logger.Info("influx writer создан",
		"url", urlutil.MaskURL(config.URL),
		"org", config.Org,
		"bucket", config.Bucket,
	)
	return &Writer{
		client:      client,
		write:       client.WriteAPIBlocking(config.Org, config.Bucket),
		measurement: config.Measurement,
		timeout:     config.Timeout,
		logger:      logger,
	}, nil
}

// Record пишет одну точку: теги callsign и condition, поля температур.
func (w *Writer) Record(ctx context.Context, r monitor.Reading) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	tags := map[string]string{"callsign": r.Callsign}
	if r.Condition != "" {
		tags["condition"] = string(r.Condition)
	}
	point := influxdb2.NewPoint(w.measurement, tags, map[string]interface{}{
		"internal_temp": r.InternalTemp,
		"aux_temp":      r.AuxTemp,
	}, r.ObservedAt)

	if err := w.write.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx: write %s: %w", r.Callsign, err)
	}
	w.logger.Debug("показание записано в influx", "callsign", r.Callsign)
	return nil
}

// Close освобождает HTTP ресурсы клиента.
func (w *Writer) Close() {
	w.client.Close()
}
