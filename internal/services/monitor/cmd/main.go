package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dualtower/hydroai/internal/advisor"
	"github.com/dualtower/hydroai/internal/alert"
	"github.com/dualtower/hydroai/internal/config"
	monitorsvc "github.com/dualtower/hydroai/internal/services/monitor"
	"github.com/dualtower/hydroai/internal/state"
	"github.com/dualtower/hydroai/internal/telemetry"
	"github.com/dualtower/hydroai/internal/thresholds"
	"github.com/dualtower/hydroai/pkg/mqttbus"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "monitor").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	table := thresholds.Defaults()
	if cfg.ThresholdsPath != "" {
		table, err = thresholds.Load(cfg.ThresholdsPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ThresholdsPath).Msg("thresholds load failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mqttbus.NewClient(ctx, &mqttbus.Config{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		User:     cfg.MQTTUser,
		Password: cfg.MQTTPassword,
		ClientID: "hydro-monitor",
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect failed")
	}

	tel := telemetry.NewWriter(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, log)
	defer tel.Close()

	store := state.NewStore()
	gate := alert.NewGate(config.AlertCooldown)
	consumer := mqttbus.NewMultiConsumer(client, monitorsvc.SubscribeTopics(), nil, log)
	publisher := mqttbus.NewPublisher(client)
	defer publisher.Close()

	adv := advisor.New(cfg.AdvisorURL, 10*time.Second)

	svc := monitorsvc.NewService(store, table, gate, consumer, publisher, adv, tel, log)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: monitorsvc.NewHTTPMux(client, gate, tel),
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	log.Info().Msg("monitor service started")
	svc.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
	log.Info().Msg("monitor service stopped")
}
