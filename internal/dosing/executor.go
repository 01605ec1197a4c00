package dosing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dualtower/hydroai/internal/config"
	"github.com/dualtower/hydroai/internal/metrics"
	"github.com/dualtower/hydroai/internal/model"
	"github.com/dualtower/hydroai/internal/model/messages"
	"github.com/dualtower/hydroai/internal/state"
)

// Actuator delivers a pump command to the physical board.
type Actuator interface {
	Dispense(ctx context.Context, tower model.Tower, solution model.Solution, volumeML, runSeconds float64) error
}

// Recorder persists completed doses.
type Recorder interface {
	InsertDose(ctx context.Context, rec model.DoseRecord) error
}

// SnapshotSource supplies the before-dose readings.
type SnapshotSource interface {
	Snapshot(tower model.Tower) state.Snapshot
}

// EventSink receives the dose-completed event.
type EventSink func(evt messages.DoseEvent)

// Executor drives the physical dose sequence: safety-check, actuate, wait
// the pump run time plus settle margin, wait the mixing delay, persist,
// emit. Doses for the same (tower, solution) pair are strictly serialized,
// and the gate check runs while the pair lock is held, so a queued dose
// re-reads the daily sum only after the dose ahead of it has recorded. A
// channel is never driven twice at once and the ceiling is never raced.
type Executor struct {
	actuator Actuator
	history  Recorder
	gate     *SafetyGate
	readings SnapshotSource
	events   EventSink
	pumpRate float64
	log      zerolog.Logger

	// sleep and now are injection points so tests run on virtual time.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu    sync.Mutex
	pairs map[string]*sync.Mutex
	wg    sync.WaitGroup
}

func NewExecutor(actuator Actuator, history Recorder, gate *SafetyGate, readings SnapshotSource, events EventSink, pumpMLPerSecond float64, log zerolog.Logger) *Executor {
	if pumpMLPerSecond <= 0 {
		pumpMLPerSecond = 1.0
	}
	return &Executor{
		actuator: actuator,
		history:  history,
		gate:     gate,
		readings: readings,
		events:   events,
		pumpRate: pumpMLPerSecond,
		log:      log,
		sleep:    sleepCtx,
		now:      time.Now,
		pairs:    make(map[string]*sync.Mutex),
	}
}

// SetEvents installs the completion sink. Must be called before Run; the
// sink and the executor reference each other's owners, so construction is
// two-phase.
func (e *Executor) SetEvents(sink EventSink) { e.events = sink }

// SetSleep replaces the wait function. Tests use this to avoid real sleeps.
func (e *Executor) SetSleep(fn func(ctx context.Context, d time.Duration) error) { e.sleep = fn }

// SetNow replaces the clock used for record timestamps.
func (e *Executor) SetNow(fn func() time.Time) { e.now = fn }

// Wait blocks until every in-flight dose sequence has finished its
// persistence step. Called on shutdown.
func (e *Executor) Wait() { e.wg.Wait() }

func (e *Executor) pairLock(tower model.Tower, solution model.Solution) *sync.Mutex {
	k := string(tower) + "|" + string(solution)
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.pairs[k]; ok {
		return m
	}
	m := &sync.Mutex{}
	e.pairs[k] = m
	return m
}

// Run executes one dose request to completion. Failure before actuation
// persists nothing; failure after actuation still persists the record,
// because the chemicals are already in the water.
func (e *Executor) Run(ctx context.Context, req model.DoseRequest) (model.DoseResult, error) {
	if req.VolumeML <= 0 {
		return model.DoseResult{}, fmt.Errorf("%w: non-positive volume %.2f", model.ErrInvalidInput, req.VolumeML)
	}
	if _, err := model.ParseTower(string(req.Tower)); err != nil {
		return model.DoseResult{}, err
	}
	if _, err := model.ParseSolution(string(req.Solution)); err != nil {
		return model.DoseResult{}, err
	}

	// Register with the wait group before queueing on the pair lock, so a
	// dose parked behind an in-flight one is visible to Wait at shutdown.
	e.wg.Add(1)
	defer e.wg.Done()

	lock := e.pairLock(req.Tower, req.Solution)
	lock.Lock()
	defer lock.Unlock()

	if e.gate != nil {
		decision, err := e.gate.Check(ctx, req.Tower, req.Solution, req.VolumeML, e.now())
		if err != nil {
			return model.DoseResult{}, err
		}
		if !decision.Allowed {
			return model.DoseResult{Denied: true, DenyReason: decision.Reason}, nil
		}
	}

	var phBefore, ecBefore *float64
	snap := e.readings.Snapshot(req.Tower)
	if r, ok := snap.Get(model.QuantityPH); ok {
		v := r.Value
		phBefore = &v
	}
	if r, ok := snap.Get(model.QuantityEC); ok {
		v := r.Value
		ecBefore = &v
	}

	runSeconds := req.VolumeML / e.pumpRate

	if err := e.actuator.Dispense(ctx, req.Tower, req.Solution, req.VolumeML, runSeconds); err != nil {
		return model.DoseResult{}, fmt.Errorf("%w: %v", model.ErrActuation, err)
	}

	e.log.Info().
		Str("tower", string(req.Tower)).
		Str("solution", string(req.Solution)).
		Float64("volume_ml", req.VolumeML).
		Float64("run_seconds", runSeconds).
		Bool("auto", req.Automatic).
		Msg("dosing started")

	// Once the pump command is out there is no cancelling the physical dose.
	// A cancelled wait only means we no longer know the mixing finished; the
	// record is written regardless so the daily sum stays honest.
	reason := req.Reason
	waitErr := e.sleep(ctx, time.Duration(runSeconds*float64(time.Second))+config.PumpSettle)
	if waitErr == nil {
		waitErr = e.sleep(ctx, config.MixingDelay)
	}
	if waitErr != nil {
		reason += " (interrupted during mix wait, outcome unknown)"
		e.log.Warn().Err(waitErr).
			Str("tower", string(req.Tower)).
			Str("solution", string(req.Solution)).
			Msg("dose wait interrupted after actuation")
	}

	rec := model.DoseRecord{
		Tower:     req.Tower,
		Solution:  req.Solution,
		VolumeML:  req.VolumeML,
		DosedAt:   e.now().UTC(),
		Reason:    reason,
		AutoDosed: req.Automatic,
		PHBefore:  phBefore,
		ECBefore:  ecBefore,
		Success:   true,
	}

	// Persistence must not be cut short by the cancelled request context.
	insertCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.history.InsertDose(insertCtx, rec); err != nil {
		metrics.DoseRecordFailures.Inc()
		e.log.Error().Err(err).
			Str("tower", string(req.Tower)).
			Str("solution", string(req.Solution)).
			Msg("dose executed but record not persisted; daily sums will undercount")
		return model.DoseResult{Dosed: true, Recorded: false, Record: rec},
			fmt.Errorf("%w: %v", model.ErrRecordFailed, err)
	}

	if e.events != nil {
		e.events(messages.DoseEvent{
			Tower:     req.Tower,
			Solution:  req.Solution,
			VolumeML:  req.VolumeML,
			Reason:    req.Reason,
			Auto:      req.Automatic,
			Timestamp: rec.DosedAt,
		})
	}

	return model.DoseResult{Dosed: true, Recorded: true, Record: rec}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
