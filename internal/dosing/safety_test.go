package dosing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dualtower/hydroai/internal/model"
)

type fakeHistory struct {
	total float64
	err   error
}

func (f *fakeHistory) SumVolumeToday(_ context.Context, _ model.Tower, _ model.Solution, _ time.Time) (float64, error) {
	return f.total, f.err
}

var safetyNow = time.Date(2025, 6, 10, 22, 0, 0, 0, time.UTC)

func TestSafetyGateAllowsWithinLimits(t *testing.T) {
	g := NewSafetyGate(&fakeHistory{total: 90}, 100)
	d, err := g.Check(context.Background(), model.TowerCool, model.SolutionPHDown, 5, safetyNow)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !d.Allowed {
		t.Errorf("denied: %s", d.Reason)
	}
}

func TestSafetyGateDeniesOverDailyCeiling(t *testing.T) {
	g := NewSafetyGate(&fakeHistory{total: 90}, 100)
	d, err := g.Check(context.Background(), model.TowerCool, model.SolutionPHDown, 15, safetyNow)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if d.Allowed || d.Reason != ReasonDailyLimit {
		t.Errorf("decision = %+v, want daily limit denial", d)
	}
}

func TestSafetyGateExactCeilingAllowed(t *testing.T) {
	g := NewSafetyGate(&fakeHistory{total: 90}, 100)
	d, err := g.Check(context.Background(), model.TowerCool, model.SolutionPHDown, 10, safetyNow)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !d.Allowed {
		t.Errorf("sum equal to the ceiling should pass, got %s", d.Reason)
	}
}

func TestSafetyGateDeniesNonPositiveVolume(t *testing.T) {
	g := NewSafetyGate(&fakeHistory{}, 100)
	for _, vol := range []float64{0, -3} {
		d, err := g.Check(context.Background(), model.TowerCool, model.SolutionPHDown, vol, safetyNow)
		if err != nil {
			t.Fatalf("check(%v): %v", vol, err)
		}
		if d.Allowed || d.Reason != ReasonInvalidVolume {
			t.Errorf("check(%v) = %+v, want invalid volume denial", vol, d)
		}
	}
}

func TestSafetyGateDeniesOverSingleDoseCap(t *testing.T) {
	g := NewSafetyGate(&fakeHistory{}, 1000)
	d, err := g.Check(context.Background(), model.TowerCool, model.SolutionPHDown, 51, safetyNow)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if d.Allowed || d.Reason != ReasonSingleDose {
		t.Errorf("decision = %+v, want single dose denial", d)
	}
}

func TestSafetyGateSurfacesHistoryError(t *testing.T) {
	boom := errors.New("db down")
	g := NewSafetyGate(&fakeHistory{err: boom}, 100)
	_, err := g.Check(context.Background(), model.TowerCool, model.SolutionPHDown, 5, safetyNow)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped db error", err)
	}
}
