// Package dosing implements the safety-gated dosing pipeline: volume
// computation, the daily-ceiling gate, the pump execution sequence and the
// per-tower auto-adjustment policy.
package dosing

import (
	"context"
	"fmt"
	"time"

	"github.com/dualtower/hydroai/internal/config"
	"github.com/dualtower/hydroai/internal/model"
)

// Denial reasons. Denials are expected operating conditions, not errors.
const (
	ReasonInvalidVolume = "invalid volume"
	ReasonSingleDose    = "single dose limit exceeded"
	ReasonDailyLimit    = "daily limit exceeded"
)

// Decision is the outcome of a safety check.
type Decision struct {
	Allowed bool
	Reason  string
}

var allow = Decision{Allowed: true}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// History is the slice of the dose store the gate needs.
type History interface {
	SumVolumeToday(ctx context.Context, tower model.Tower, solution model.Solution, day time.Time) (float64, error)
}

// SafetyGate enforces the per-dose and per-day volume ceilings. The gate
// itself only reads; the executor calls Check while holding the
// (tower, solution) pair lock, which is what makes check-then-dose atomic
// against concurrent requests for the same pair.
type SafetyGate struct {
	history        History
	dailyCeilingML float64
}

func NewSafetyGate(history History, dailyCeilingML float64) *SafetyGate {
	return &SafetyGate{history: history, dailyCeilingML: dailyCeilingML}
}

// Check validates a proposed dose against the single-dose cap and the daily
// ceiling for the UTC calendar day containing now. The single-dose cap is
// enforced upstream by the volume computation; re-checking here guards
// manual commands that bypass it.
func (g *SafetyGate) Check(ctx context.Context, tower model.Tower, solution model.Solution, volumeML float64, now time.Time) (Decision, error) {
	if volumeML <= 0 {
		return deny(ReasonInvalidVolume), nil
	}
	if volumeML > config.SingleDoseCapML {
		return deny(ReasonSingleDose), nil
	}

	total, err := g.history.SumVolumeToday(ctx, tower, solution, now)
	if err != nil {
		return Decision{}, fmt.Errorf("daily limit lookup: %w", err)
	}
	if total+volumeML > g.dailyCeilingML {
		return deny(ReasonDailyLimit), nil
	}
	return allow, nil
}
