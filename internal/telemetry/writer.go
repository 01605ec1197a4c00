// Package telemetry writes readings and doses to InfluxDB as time-series
// points. Writes are asynchronous; the writer tracks the age of the last
// write error so readiness probes can flag a failing sink.
package telemetry

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"

	"github.com/dualtower/hydroai/internal/model"
)

type Writer struct {
	client influxdb2.Client
	api    api.WriteAPI
	log    zerolog.Logger

	mu      sync.RWMutex
	lastErr time.Time
}

// NewWriter builds a writer against the given bucket and starts listening
// for asynchronous write errors. Returns nil when url is empty, and every
// method tolerates a nil receiver, so telemetry stays optional.
func NewWriter(url, token, org, bucket string, log zerolog.Logger) *Writer {
	if url == "" {
		return nil
	}
	client := influxdb2.NewClient(url, token)
	w := &Writer{
		client:  client,
		api:     client.WriteAPI(org, bucket),
		log:     log,
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range w.api.Errors() {
			if err != nil {
				w.mu.Lock()
				w.lastErr = time.Now()
				w.mu.Unlock()
				log.Error().Err(err).Msg("influx write error")
			}
		}
	}()
	return w
}

// WriteReading records one accepted sensor reading.
func (w *Writer) WriteReading(tower model.Tower, q model.Quantity, value float64, at time.Time) {
	if w == nil {
		return
	}
	point := influxdb2.NewPoint("sensor_reading",
		map[string]string{"tower": string(tower), "quantity": string(q)},
		map[string]interface{}{"value": value},
		at)
	w.api.WritePoint(point)
}

// WriteDose records one completed dose.
func (w *Writer) WriteDose(rec model.DoseRecord) {
	if w == nil {
		return
	}
	point := influxdb2.NewPoint("dose",
		map[string]string{"tower": string(rec.Tower), "solution": string(rec.Solution)},
		map[string]interface{}{
			"volume_ml":  rec.VolumeML,
			"auto_dosed": rec.AutoDosed,
			"success":    rec.Success,
		},
		rec.DosedAt)
	w.api.WritePoint(point)
}

// LastErrorAge reports how long the sink has been healthy.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// Close flushes pending points and shuts the client down.
func (w *Writer) Close() {
	if w == nil {
		return
	}
	w.api.Flush()
	w.client.Close()
}
