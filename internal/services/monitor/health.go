package monitorsvc

import (
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dualtower/hydroai/internal/alert"
	"github.com/dualtower/hydroai/internal/telemetry"
)

// NewHTTPMux exposes liveness, readiness, metrics and the currently active
// issues.
func NewHTTPMux(client mqtt.Client, gate *alert.Gate, tel *telemetry.Writer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "ok"
		code := http.StatusOK
		if !client.IsConnectionOpen() {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":         status,
			"mqtt_connected": client.IsConnectionOpen(),
			"time":           time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !client.IsConnectionOpen() {
			http.Error(w, "mqtt disconnected", http.StatusServiceUnavailable)
			return
		}
		if tel != nil && tel.LastErrorAge() < time.Minute {
			http.Error(w, "telemetry sink failing", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	mux.HandleFunc("/issues/active", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(gate.ActiveIssues())
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
