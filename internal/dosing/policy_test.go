package dosing

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dualtower/hydroai/internal/model"
	"github.com/dualtower/hydroai/internal/state"
)

func newTestPolicy(enabled bool, history *fakeHistory, act Actuator, rec *fakeRecorder) *Policy {
	e := NewExecutor(act, rec, NewSafetyGate(history, 100), state.NewStore(), nil, 1.0, zerolog.Nop())
	e.SetSleep(noSleep)
	e.SetNow(func() time.Time { return execNow })
	return NewPolicy(enabled, 5.0, testConcentrations, e, zerolog.Nop())
}

func TestPolicyPHHighDosesPHDown(t *testing.T) {
	act := &fakeActuator{}
	rec := &fakeRecorder{}
	p := newTestPolicy(true, &fakeHistory{}, act, rec)

	p.OnPH(context.Background(), model.TowerCool, 6.5)

	records := rec.all()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if r.Solution != model.SolutionPHDown {
		t.Errorf("solution = %s, want ph_down", r.Solution)
	}
	if r.VolumeML != 15.0 {
		t.Errorf("volume = %v, want 15.0 for 0.3 points on 5 gal", r.VolumeML)
	}
	if r.Reason != "Auto pH down: 6.50 → 6.20" {
		t.Errorf("reason = %q", r.Reason)
	}
	if !r.AutoDosed {
		t.Error("policy doses must be marked automatic")
	}
	if got := p.Phase(model.TowerCool); got != PhaseIdle {
		t.Errorf("phase = %s, want idle after completion", got)
	}
}

func TestPolicyPHLowDosesBicarbonate(t *testing.T) {
	rec := &fakeRecorder{}
	p := newTestPolicy(true, &fakeHistory{}, &fakeActuator{}, rec)

	p.OnPH(context.Background(), model.TowerWarm, 5.5)

	records := rec.all()
	if len(records) != 1 || records[0].Solution != model.SolutionPotassiumBicarb {
		t.Fatalf("records = %+v, want one potassium_bicarbonate dose", records)
	}
	// 0.3 points at 8 mL per gallon per point on 5 gal.
	if records[0].VolumeML != 12.0 {
		t.Errorf("volume = %v, want 12.0", records[0].VolumeML)
	}
}

func TestPolicyPHInBandDoesNothing(t *testing.T) {
	rec := &fakeRecorder{}
	p := newTestPolicy(true, &fakeHistory{}, &fakeActuator{}, rec)

	for _, ph := range []float64{5.8, 6.0, 6.2} {
		p.OnPH(context.Background(), model.TowerCool, ph)
	}
	if len(rec.all()) != 0 {
		t.Errorf("in-band pH produced doses: %+v", rec.all())
	}
}

func TestPolicyDisabledDoesNothing(t *testing.T) {
	rec := &fakeRecorder{}
	p := newTestPolicy(false, &fakeHistory{}, &fakeActuator{}, rec)

	p.OnPH(context.Background(), model.TowerCool, 7.0)
	p.OnECLow(context.Background(), model.TowerCool, 0.5, 1.2)
	p.OnDeficiency(context.Background(), model.TowerCool, "magnesium")

	if len(rec.all()) != 0 {
		t.Errorf("disabled policy dosed: %+v", rec.all())
	}
}

func TestPolicyECLowTopsUpCalciumNitrate(t *testing.T) {
	rec := &fakeRecorder{}
	p := newTestPolicy(true, &fakeHistory{}, &fakeActuator{}, rec)

	p.OnECLow(context.Background(), model.TowerCool, 1.0, 1.2)

	records := rec.all()
	if len(records) != 1 || records[0].Solution != model.SolutionCalciumNitrate {
		t.Fatalf("records = %+v, want one calcium_nitrate dose", records)
	}
	// 0.2 mS/cm * 18.92705 L / 150 g/L stock.
	if records[0].VolumeML != 25.24 {
		t.Errorf("volume = %v, want 25.24", records[0].VolumeML)
	}

	rec.records = nil
	p.OnECLow(context.Background(), model.TowerCool, 1.3, 1.2)
	if len(rec.all()) != 0 {
		t.Error("EC at or above minimum must not dose")
	}
}

func TestPolicyDeficiencyFixedDose(t *testing.T) {
	rec := &fakeRecorder{}
	p := newTestPolicy(true, &fakeHistory{}, &fakeActuator{}, rec)

	p.OnDeficiency(context.Background(), model.TowerWarm, "magnesium")

	records := rec.all()
	if len(records) != 1 || records[0].Solution != model.SolutionEpsomSalt || records[0].VolumeML != DeficiencyDoseML {
		t.Fatalf("records = %+v, want one 10 mL epsom dose", records)
	}

	rec.records = nil
	p.OnDeficiency(context.Background(), model.TowerWarm, "iron")
	if len(rec.all()) != 0 {
		t.Error("unmapped deficiency must not dose")
	}
}

func TestPolicyDeniedByGateReturnsToIdle(t *testing.T) {
	act := &fakeActuator{}
	rec := &fakeRecorder{}
	p := newTestPolicy(true, &fakeHistory{total: 100}, act, rec)

	p.OnPH(context.Background(), model.TowerCool, 6.5)

	if act.callCount() != 0 {
		t.Error("denied adjustment reached the pump")
	}
	if got := p.Phase(model.TowerCool); got != PhaseIdle {
		t.Errorf("phase = %s, want idle after denial", got)
	}
}

// blockingActuator holds the dose open until released, so tests can observe
// the mid-dose state.
type blockingActuator struct {
	started chan struct{}
	release chan struct{}
	calls   int32
}

func (b *blockingActuator) Dispense(_ context.Context, _ model.Tower, _ model.Solution, _, _ float64) error {
	atomic.AddInt32(&b.calls, 1)
	b.started <- struct{}{}
	<-b.release
	return nil
}

func TestPolicyDropsTriggerWhileBusy(t *testing.T) {
	act := &blockingActuator{started: make(chan struct{}), release: make(chan struct{})}
	rec := &fakeRecorder{}
	p := newTestPolicy(true, &fakeHistory{}, act, rec)

	done := make(chan struct{})
	go func() {
		p.OnPH(context.Background(), model.TowerCool, 6.5)
		close(done)
	}()
	<-act.started

	// A second violation while the first adjustment is running is dropped.
	p.OnPH(context.Background(), model.TowerCool, 6.6)

	close(act.release)
	<-done

	if got := atomic.LoadInt32(&act.calls); got != 1 {
		t.Errorf("actuations = %d, want 1", got)
	}
	if len(rec.all()) != 1 {
		t.Errorf("records = %d, want 1", len(rec.all()))
	}
}
