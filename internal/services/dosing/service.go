// Package dosingsvc wires broker traffic to the dosing pipeline: sensor
// readings feed the auto-adjustment policy, manual commands and deficiency
// alerts go through the safety gate, and completed doses are published back
// as events.
package dosingsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/dualtower/hydroai/internal/dosing"
	"github.com/dualtower/hydroai/internal/metrics"
	"github.com/dualtower/hydroai/internal/model"
	"github.com/dualtower/hydroai/internal/model/messages"
	"github.com/dualtower/hydroai/internal/state"
	"github.com/dualtower/hydroai/internal/telemetry"
	"github.com/dualtower/hydroai/internal/thresholds"
	"github.com/dualtower/hydroai/pkg/dedup"
	"github.com/dualtower/hydroai/pkg/mqttbus"
)

const (
	TopicDoseEvents = "/events/dose"
)

// SubscribeTopics returns the topic filters the dosing service listens on.
func SubscribeTopics() []string {
	return []string{
		"/cool_tower/+",
		"/warm_tower/+",
		"/dosing/+/command",
		"/alerts/deficiency",
	}
}

type Service struct {
	store     *state.Store
	table     thresholds.Table
	policy    *dosing.Policy
	exec      *dosing.Executor
	deduper   *dedup.Deduper
	consumer  mqttbus.IConsumer
	publisher mqttbus.IPublisher
	telemetry *telemetry.Writer
	log       zerolog.Logger

	ctx context.Context
}

func NewService(store *state.Store, table thresholds.Table, policy *dosing.Policy, exec *dosing.Executor, consumer mqttbus.IConsumer, publisher mqttbus.IPublisher, tel *telemetry.Writer, log zerolog.Logger) *Service {
	s := &Service{
		store:     store,
		table:     table,
		policy:    policy,
		exec:      exec,
		deduper:   dedup.New(10*time.Minute, 10000),
		consumer:  consumer,
		publisher: publisher,
		telemetry: tel,
		log:       log,
		ctx:       context.Background(),
	}
	consumer.SetHandler(s.handleMessage)
	return s
}

// EventSink returns the callback the executor invokes after each completed
// dose: publish the event, record telemetry, bump counters.
func (s *Service) EventSink() dosing.EventSink {
	return func(evt messages.DoseEvent) {
		payload, _ := json.Marshal(evt)
		if err := s.publisher.PublishQoS(TopicDoseEvents, 1, false, payload); err != nil {
			s.log.Error().Err(err).Msg("dose event publish failed")
		}
		metrics.DosesExecuted.WithLabelValues(string(evt.Tower), string(evt.Solution)).Inc()
		metrics.DoseVolumeML.WithLabelValues(string(evt.Tower), string(evt.Solution)).Add(evt.VolumeML)
		s.telemetry.WriteDose(model.DoseRecord{
			Tower:     evt.Tower,
			Solution:  evt.Solution,
			VolumeML:  evt.VolumeML,
			DosedAt:   evt.Timestamp,
			Reason:    evt.Reason,
			AutoDosed: evt.Auto,
			Success:   true,
		})
	}
}

// Start runs the consume loop until ctx is cancelled. Auto-adjustment
// goroutines spawned from inbound readings inherit this ctx.
func (s *Service) Start(ctx context.Context) {
	s.ctx = ctx
	s.consumer.Consume(ctx)
}

func (s *Service) handleMessage(topic string, msg mqtt.Message) error {
	parts := strings.Split(strings.TrimPrefix(topic, "/"), "/")

	switch {
	case len(parts) == 2 && strings.HasSuffix(parts[0], "_tower"):
		return s.handleReading(strings.TrimSuffix(parts[0], "_tower"), parts[1], msg.Payload())

	case len(parts) == 3 && parts[0] == "dosing" && parts[2] == "command":
		return s.handleDoseCommand(parts[1], msg.Payload())

	case len(parts) == 2 && parts[0] == "alerts" && parts[1] == "deficiency":
		return s.handleDeficiency(msg.Payload())
	}

	s.log.Debug().Str("topic", topic).Msg("unhandled topic")
	return nil
}

func (s *Service) handleReading(towerName, quantityName string, payload []byte) error {
	tower, err := model.ParseTower(towerName)
	if err != nil {
		return err
	}
	q := model.Quantity(quantityName)
	switch q {
	case model.QuantityEC, model.QuantityPH, model.QuantityWaterTemp:
	default:
		return nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		s.log.Warn().Err(err).Str("tower", towerName).Str("quantity", quantityName).Msg("bad reading payload")
		return nil
	}

	s.store.Update(tower, q, value, time.Now())

	// Policy runs block for the whole pump sequence; each trigger gets its
	// own goroutine so one tower's dose never stalls the other's readings.
	switch q {
	case model.QuantityPH:
		go s.policy.OnPH(s.ctx, tower, value)
	case model.QuantityEC:
		go s.policy.OnECLow(s.ctx, tower, value, s.table[tower].ECMin)
	}
	return nil
}

// handleDoseCommand runs a manual dose request through the safety gate and,
// if allowed, the executor. QoS 1 redeliveries are dropped by payload hash.
func (s *Service) handleDoseCommand(towerName string, payload []byte) error {
	if !s.deduper.ShouldProcess(payloadID(payload)) {
		s.log.Debug().Str("tower", towerName).Msg("duplicate dose command dropped")
		return nil
	}

	tower, err := model.ParseTower(towerName)
	if err != nil {
		return err
	}
	var cmd messages.DoseCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		s.log.Warn().Err(err).Str("tower", towerName).Msg("bad dose command payload")
		return nil
	}
	solution, err := model.ParseSolution(cmd.Solution)
	if err != nil {
		s.log.Warn().Err(err).Str("tower", towerName).Str("solution", cmd.Solution).Msg("dose command rejected")
		return nil
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "Manual dose"
	}
	req := model.DoseRequest{
		Tower:     tower,
		Solution:  solution,
		VolumeML:  cmd.VolumeML,
		Reason:    reason,
		Automatic: false,
	}
	// The safety check happens inside Run, under the pair lock, so two
	// commands racing for the same pair cannot both pass the daily ceiling.
	go func() {
		res, err := s.exec.Run(s.ctx, req)
		if err != nil {
			s.log.Error().Err(err).
				Str("tower", string(tower)).
				Str("solution", string(solution)).
				Msg("manual dose failed")
			return
		}
		if res.Denied {
			metrics.DosesDenied.WithLabelValues(string(tower), string(solution), res.DenyReason).Inc()
			s.log.Warn().
				Str("tower", string(tower)).
				Str("solution", string(solution)).
				Float64("volume_ml", cmd.VolumeML).
				Str("reason", res.DenyReason).
				Msg("manual dose denied")
		}
	}()
	return nil
}

func (s *Service) handleDeficiency(payload []byte) error {
	if !s.deduper.ShouldProcess(payloadID(payload)) {
		s.log.Debug().Msg("duplicate deficiency alert dropped")
		return nil
	}

	var alert messages.DeficiencyAlert
	if err := json.Unmarshal(payload, &alert); err != nil {
		s.log.Warn().Err(err).Msg("bad deficiency payload")
		return nil
	}
	tower, err := model.ParseTower(alert.Tower)
	if err != nil {
		return err
	}

	s.log.Info().
		Str("tower", alert.Tower).
		Str("deficiency", alert.Deficiency).
		Msg("deficiency alert received")
	go s.policy.OnDeficiency(s.ctx, tower, alert.Deficiency)
	return nil
}

func payloadID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// MQTTActuator drives the pump board over the broker. It resolves the fixed
// channel for the (tower, solution) pair and publishes a timed run command.
type MQTTActuator struct {
	publisher mqttbus.IPublisher
	channels  map[model.Tower]map[model.Solution]int
	now       func() time.Time
}

func NewMQTTActuator(publisher mqttbus.IPublisher, channels map[model.Tower]map[model.Solution]int) *MQTTActuator {
	return &MQTTActuator{publisher: publisher, channels: channels, now: time.Now}
}

func (a *MQTTActuator) Dispense(ctx context.Context, tower model.Tower, solution model.Solution, volumeML, runSeconds float64) error {
	pumpID, ok := a.channels[tower][solution]
	if !ok {
		return fmt.Errorf("%w: no pump channel for %s/%s", model.ErrInvalidInput, tower, solution)
	}

	cmd := messages.PumpCommand{
		PumpID:         pumpID,
		RunTimeSeconds: runSeconds,
		VolumeML:       volumeML,
		Solution:       solution,
		Timestamp:      a.now(),
	}
	payload, _ := json.Marshal(cmd)
	topic := "/" + string(tower) + "/pump/command"
	return a.publisher.PublishQoS(topic, 1, false, payload)
}

var _ dosing.Actuator = (*MQTTActuator)(nil)
