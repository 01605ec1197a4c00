package dosingsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dualtower/hydroai/internal/model"
	"github.com/dualtower/hydroai/internal/storage"
)

// NewHTTPMux exposes liveness, readiness, metrics and the dose history.
func NewHTTPMux(client mqtt.Client, store *storage.DoseStore) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		dbOK := store.Ping(ctx) == nil
		if !client.IsConnectionOpen() || !dbOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":         status,
			"mqtt_connected": client.IsConnectionOpen(),
			"db_connected":   dbOK,
			"time":           time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		if !client.IsConnectionOpen() {
			http.Error(w, "mqtt disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// GET /doses/recent?tower=cool&days=7
	mux.HandleFunc("/doses/recent", func(w http.ResponseWriter, r *http.Request) {
		tower, err := model.ParseTower(r.URL.Query().Get("tower"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		days := 7
		if raw := r.URL.Query().Get("days"); raw != "" {
			days, err = strconv.Atoi(raw)
			if err != nil || days <= 0 {
				http.Error(w, "days must be a positive integer", http.StatusBadRequest)
				return
			}
		}

		since := time.Now().UTC().AddDate(0, 0, -days)
		records, err := store.RecentDoses(r.Context(), tower, since)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"tower": tower,
			"since": since.Format(time.RFC3339),
			"doses": records,
		})
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
