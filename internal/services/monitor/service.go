// Package monitorsvc wires sensor ingestion to threshold evaluation and
// gated alert publication, plus the periodic health and reservoir-age
// checks.
package monitorsvc

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dualtower/hydroai/internal/advisor"
	"github.com/dualtower/hydroai/internal/alert"
	"github.com/dualtower/hydroai/internal/metrics"
	"github.com/dualtower/hydroai/internal/model"
	"github.com/dualtower/hydroai/internal/model/messages"
	"github.com/dualtower/hydroai/internal/monitor"
	"github.com/dualtower/hydroai/internal/state"
	"github.com/dualtower/hydroai/internal/telemetry"
	"github.com/dualtower/hydroai/internal/thresholds"
	"github.com/dualtower/hydroai/pkg/mqttbus"
)

// Topics consumed and produced by the monitor service.
const (
	TopicAlerts = "/alerts/issue"
)

// SubscribeTopics returns the topic filters the monitor listens on.
func SubscribeTopics() []string {
	return []string{
		"/cool_tower/+",
		"/warm_tower/+",
		"/environment/+",
		"/+/reservoir/changed",
	}
}

type Service struct {
	store     *state.Store
	table     thresholds.Table
	gate      *alert.Gate
	consumer  mqttbus.IConsumer
	publisher mqttbus.IPublisher
	advisor   *advisor.Client
	telemetry *telemetry.Writer
	log       zerolog.Logger

	mu                  sync.Mutex
	lastReservoirChange map[model.Tower]time.Time
}

func NewService(store *state.Store, table thresholds.Table, gate *alert.Gate, consumer mqttbus.IConsumer, publisher mqttbus.IPublisher, adv *advisor.Client, tel *telemetry.Writer, log zerolog.Logger) *Service {
	s := &Service{
		store:     store,
		table:     table,
		gate:      gate,
		consumer:  consumer,
		publisher: publisher,
		advisor:   adv,
		telemetry: tel,
		log:       log,
		// Assume the reservoirs were changed five days before startup, as
		// the operator usually restarts the controller mid-cycle.
		lastReservoirChange: map[model.Tower]time.Time{
			model.TowerCool: time.Now().Add(-5 * 24 * time.Hour),
			model.TowerWarm: time.Now().Add(-5 * 24 * time.Hour),
		},
	}
	store.OnUpdate(func(tower model.Tower) {
		s.evaluateTower(tower, time.Now())
	})
	consumer.SetHandler(s.handleMessage)
	return s
}

// Start runs the consume loop and the periodic checks until ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) {
	c := cron.New()
	c.AddFunc("@every 5m", func() { s.healthTick(time.Now()) })
	c.AddFunc("@daily", func() { s.reservoirAgeCheck(time.Now()) })
	c.Start()
	defer c.Stop()

	s.consumer.Consume(ctx)
}

func (s *Service) handleMessage(topic string, msg mqtt.Message) error {
	parts := strings.Split(strings.TrimPrefix(topic, "/"), "/")

	switch {
	case len(parts) == 2 && strings.HasSuffix(parts[0], "_tower"):
		return s.handleReading(strings.TrimSuffix(parts[0], "_tower"), parts[1], msg.Payload())

	case len(parts) == 2 && parts[0] == "environment":
		return s.handleEnvironment(parts[1], msg.Payload())

	case len(parts) == 3 && parts[1] == "reservoir" && parts[2] == "changed":
		return s.handleReservoirChanged(parts[0])
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
		s.log.Debug().Str("quantity", quantityName).Msg("unknown tower quantity")
		return nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		s.log.Warn().Err(err).Str("tower", towerName).Str("quantity", quantityName).Msg("bad reading payload")
		return nil
	}

	now := time.Now()
	s.store.Update(tower, q, value, now)
	metrics.ReadingsIngested.WithLabelValues(towerName, quantityName).Inc()
	metrics.LatestReading.WithLabelValues(towerName, quantityName).Set(value)
	s.telemetry.WriteReading(tower, q, value, now)
	return nil
}

func (s *Service) handleEnvironment(quantityName string, payload []byte) error {
	var q model.Quantity
	switch quantityName {
	case "air_temp":
		q = model.QuantityAirTemp
	case "humidity":
		q = model.QuantityAirHumidity
	default:
		s.log.Debug().Str("quantity", quantityName).Msg("unknown environment quantity")
		return nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		s.log.Warn().Err(err).Str("quantity", quantityName).Msg("bad environment payload")
		return nil
	}

	now := time.Now()
	s.store.UpdateEnvironment(q, value, now)
	metrics.ReadingsIngested.WithLabelValues("environment", string(q)).Inc()
	metrics.LatestReading.WithLabelValues("environment", string(q)).Set(value)
	s.telemetry.WriteReading("", q, value, now)
	return nil
}

func (s *Service) handleReservoirChanged(towerName string) error {
	tower, err := model.ParseTower(towerName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastReservoirChange[tower] = time.Now()
	s.mu.Unlock()

	s.gate.Clear(tower, "reservoir")
	s.log.Info().Str("tower", towerName).Msg("reservoir marked as changed")
	return nil
}

func (s *Service) reservoirChangedAt(tower model.Tower) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReservoirChange[tower]
}

// evaluateTower runs one evaluation cycle for the tower and dispatches every
// issue that passes the alert gate.
func (s *Service) evaluateTower(tower model.Tower, now time.Time) {
	snap := s.store.Snapshot(tower)
	issues := monitor.Evaluate(tower, snap, s.table[tower], s.reservoirChangedAt(tower), now)
	for _, issue := range issues {
		s.dispatch(issue, snap, now)
	}
}

func (s *Service) dispatch(issue model.Issue, snap state.Snapshot, now time.Time) {
	if !s.gate.ShouldFire(issue.Tower, issue.Type, now) {
		metrics.IssuesSuppressed.WithLabelValues(string(issue.Tower), string(issue.Type)).Inc()
		return
	}
	s.gate.Record(issue, now)

	if s.advisor.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if rec, err := s.advisor.Recommend(ctx, issue.Tower, issue.Type, snap); err != nil {
			s.log.Warn().Err(err).Str("type", string(issue.Type)).Msg("advisor unavailable, using local suggestion")
		} else if rec != "" {
			issue.Suggestion = rec
		}
		cancel()
	}

	evt := messages.AlertEvent{
		Tower:      issue.Tower,
		Type:       issue.Type,
		Severity:   issue.Severity,
		Message:    issue.Message,
		Suggestion: issue.Suggestion,
		Timestamp:  now,
	}
	payload, _ := json.Marshal(evt)
	if err := s.publisher.PublishQoS(TopicAlerts, 1, false, payload); err != nil {
		s.log.Error().Err(err).Str("type", string(issue.Type)).Msg("alert publish failed")
		return
	}

	metrics.IssuesFired.WithLabelValues(string(issue.Tower), string(issue.Type)).Inc()
	s.log.Warn().
		Str("tower", string(issue.Tower)).
		Str("type", string(issue.Type)).
		Str("severity", string(issue.Severity)).
		Msg(issue.Message)
}

// healthTick emits stale-data warnings and re-evaluates both towers. Stale
// never suppresses evaluation of the readings that are present.
func (s *Service) healthTick(now time.Time) {
	for _, tower := range model.Towers {
		last := s.store.LastUpdate(tower)
		if !last.IsZero() && now.Sub(last) > monitor.StaleAfter {
			s.dispatch(monitor.StaleIssue(tower, last, now), s.store.Snapshot(tower), now)
		}
	}
	if envLast := s.store.EnvironmentLastUpdate(); !envLast.IsZero() && now.Sub(envLast) > monitor.StaleAfter {
		s.log.Warn().Time("last_update", envLast).Msg("environment sensor stale")
	}

	s.reservoirAgeCheck(now)
}

// reservoirAgeCheck re-runs evaluation so reservoir-due issues fire even on
// days with no sensor traffic.
func (s *Service) reservoirAgeCheck(now time.Time) {
	for _, tower := range model.Towers {
		s.evaluateTower(tower, now)
	}
}
