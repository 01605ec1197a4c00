package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dualtower/hydroai/internal/config"
	"github.com/dualtower/hydroai/internal/dosing"
	dosingsvc "github.com/dualtower/hydroai/internal/services/dosing"
	"github.com/dualtower/hydroai/internal/state"
	"github.com/dualtower/hydroai/internal/storage"
	"github.com/dualtower/hydroai/internal/telemetry"
	"github.com/dualtower/hydroai/internal/thresholds"
	"github.com/dualtower/hydroai/pkg/mqttbus"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "dosing").Logger()

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

	store, err := storage.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer store.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := store.Migrate(migrateCtx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("migration failed")
	}
	cancel()

	client, err := mqttbus.NewClient(ctx, &mqttbus.Config{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		User:     cfg.MQTTUser,
		Password: cfg.MQTTPassword,
		ClientID: "hydro-dosing",
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect failed")
	}

	tel := telemetry.NewWriter(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, log)
	defer tel.Close()

	readings := state.NewStore()
	gate := dosing.NewSafetyGate(store, cfg.MaxDoseMLPerDay)
	publisher := mqttbus.NewPublisher(client)
	defer publisher.Close()

	actuator := dosingsvc.NewMQTTActuator(publisher, cfg.PumpChannels)
	consumer := mqttbus.NewMultiConsumer(client, dosingsvc.SubscribeTopics(), nil, log)

	exec := dosing.NewExecutor(actuator, store, gate, readings, nil, cfg.PumpMLPerSecond, log)
	policy := dosing.NewPolicy(cfg.AutoDosingEnabled, cfg.ReservoirVolumeGallons, cfg.Concentrations, exec, log)
	svc := dosingsvc.NewService(readings, table, policy, exec, consumer, publisher, tel, log)
	exec.SetEvents(svc.EventSink())

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: dosingsvc.NewHTTPMux(client, store),
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	log.Info().Bool("auto_dosing", cfg.AutoDosingEnabled).Msg("dosing service started")
	svc.Start(ctx)

	// Let in-flight dose sequences finish their persistence step.
	exec.Wait()

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	httpSrv.Shutdown(shutdownCtx)
	log.Info().Msg("dosing service stopped")
}
