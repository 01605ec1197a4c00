package dosing

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dualtower/hydroai/internal/metrics"
	"github.com/dualtower/hydroai/internal/model"
)

// Phase is the auto-adjustment state for one tower.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseDosing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending_adjustment"
	case PhaseDosing:
		return "dosing"
	}
	return "unknown"
}

// Policy decides whether a new pH/EC reading or deficiency alert warrants an
// automatic dose. Each tower moves Idle → PendingAdjustment → Dosing → Idle;
// triggers arriving while a tower is not Idle are dropped, so a single
// violation can never spawn two concurrent adjustments.
type Policy struct {
	enabled          bool
	reservoirGallons float64
	concentrations   map[model.Solution]float64
	exec             *Executor
	log              zerolog.Logger

	mu    sync.Mutex
	phase map[model.Tower]Phase
}

func NewPolicy(enabled bool, reservoirGallons float64, concentrations map[model.Solution]float64, exec *Executor, log zerolog.Logger) *Policy {
	return &Policy{
		enabled:          enabled,
		reservoirGallons: reservoirGallons,
		concentrations:   concentrations,
		exec:             exec,
		log:              log,
		phase: map[model.Tower]Phase{
			model.TowerCool: PhaseIdle,
			model.TowerWarm: PhaseIdle,
		},
	}
}

// Phase returns the tower's current state.
func (p *Policy) Phase(tower model.Tower) Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase[tower]
}

// begin transitions Idle → PendingAdjustment, or reports that the tower is
// already mid-adjustment.
func (p *Policy) begin(tower model.Tower) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase[tower] != PhaseIdle {
		return false
	}
	p.phase[tower] = PhasePending
	return true
}

func (p *Policy) setPhase(tower model.Tower, ph Phase) {
	p.mu.Lock()
	p.phase[tower] = ph
	p.mu.Unlock()
}

// OnPH reacts to a new pH reading. Outside [5.8, 6.2] and with auto-dosing
// enabled, it computes a corrective dose and runs it through the gate and
// executor. Blocks for the duration of the dose sequence; callers run it on
// its own goroutine so the other tower keeps moving.
func (p *Policy) OnPH(ctx context.Context, tower model.Tower, ph float64) {
	if !p.enabled {
		return
	}

	var solution model.Solution
	var adjustment float64
	var reason string
	switch {
	case ph > PHTargetMax:
		solution = model.SolutionPHDown
		adjustment = ph - PHTargetMax
		reason = fmt.Sprintf("Auto pH down: %.2f → %.2f", ph, PHTargetMax)
	case ph < PHTargetMin:
		solution = model.SolutionPotassiumBicarb
		adjustment = PHTargetMin - ph
		reason = fmt.Sprintf("Auto pH up: %.2f → %.2f", ph, PHTargetMin)
	default:
		return
	}

	volume := DoseVolume(solution, adjustment, p.reservoirGallons, p.concentrations)
	p.adjust(ctx, tower, solution, volume, reason)
}

// OnECLow reacts to an EC reading below the tower's minimum with a nutrient
// top-up toward the lower bound.
func (p *Policy) OnECLow(ctx context.Context, tower model.Tower, ec, ecMin float64) {
	if !p.enabled || ec >= ecMin {
		return
	}
	volume := DoseVolume(model.SolutionCalciumNitrate, ecMin-ec, p.reservoirGallons, p.concentrations)
	reason := fmt.Sprintf("Auto EC: %.2f → %.2f", ec, ecMin)
	p.adjust(ctx, tower, model.SolutionCalciumNitrate, volume, reason)
}

// OnDeficiency reacts to a camera-detected nutrient deficiency with a fixed
// conservative dose of the matching solution.
func (p *Policy) OnDeficiency(ctx context.Context, tower model.Tower, deficiency string) {
	if !p.enabled {
		return
	}
	solution, ok := SolutionForDeficiency(deficiency)
	if !ok {
		p.log.Warn().Str("deficiency", deficiency).Msg("no solution mapped for deficiency")
		return
	}
	reason := fmt.Sprintf("Auto nutrient: %s deficiency detected", deficiency)
	p.adjust(ctx, tower, solution, DeficiencyDoseML, reason)
}

func (p *Policy) adjust(ctx context.Context, tower model.Tower, solution model.Solution, volumeML float64, reason string) {
	if volumeML <= 0 {
		return
	}
	if !p.begin(tower) {
		p.log.Debug().
			Str("tower", string(tower)).
			Str("phase", p.Phase(tower).String()).
			Msg("adjustment already in progress, trigger dropped")
		return
	}
	defer p.setPhase(tower, PhaseIdle)

	p.setPhase(tower, PhaseDosing)
	req := model.DoseRequest{
		Tower:     tower,
		Solution:  solution,
		VolumeML:  volumeML,
		Reason:    reason,
		Automatic: true,
	}
	res, err := p.exec.Run(ctx, req)
	if err != nil {
		p.log.Error().Err(err).
			Str("tower", string(tower)).
			Str("solution", string(solution)).
			Msg("auto dose failed")
		return
	}
	if res.Denied {
		metrics.DosesDenied.WithLabelValues(string(tower), string(solution), res.DenyReason).Inc()
		p.log.Warn().
			Str("tower", string(tower)).
			Str("solution", string(solution)).
			Float64("volume_ml", volumeML).
			Str("reason", res.DenyReason).
			Msg("auto dose denied")
	}
}
