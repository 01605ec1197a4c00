// Package alert deduplicates repeated issues so a sustained violation does
// not re-fire on every evaluation cycle.
package alert

import (
	"strings"
	"sync"
	"time"

	"github.com/dualtower/hydroai/internal/model"
)

// Active is a standing issue with the time it last fired, kept for display.
type Active struct {
	Issue   model.Issue
	FiredAt time.Time
}

// Gate tracks the last-fired time per (tower, issue type) key. The
// check-cooldown-then-record sequence is atomic.
type Gate struct {
	mu        sync.Mutex
	cooldown  time.Duration
	lastFired map[string]time.Time
	active    map[string]Active
}

func NewGate(cooldown time.Duration) *Gate {
	return &Gate{
		cooldown:  cooldown,
		lastFired: make(map[string]time.Time),
		active:    make(map[string]Active),
	}
}

func key(tower model.Tower, t model.IssueType) string {
	return string(tower) + "/" + string(t)
}

// ShouldFire reports whether the issue may be dispatched now, recording the
// dispatch time if so. A fresh key always fires; a known key fires again only
// once the cooldown has elapsed.
func (g *Gate) ShouldFire(tower model.Tower, t model.IssueType, now time.Time) bool {
	k := key(tower, t)

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastFired[k]; ok && now.Sub(last) < g.cooldown {
		return false
	}
	g.lastFired[k] = now
	return true
}

// Record notes a fired issue as active, for callers that want to display
// standing conditions.
func (g *Gate) Record(issue model.Issue, firedAt time.Time) {
	g.mu.Lock()
	g.active[key(issue.Tower, issue.Type)] = Active{Issue: issue, FiredAt: firedAt}
	g.mu.Unlock()
}

// Clear removes every key for the tower whose issue type starts with prefix.
// Clearing keys that do not exist is a no-op.
func (g *Gate) Clear(tower model.Tower, prefix string) {
	pfx := string(tower) + "/" + prefix

	g.mu.Lock()
	defer g.mu.Unlock()

	for k := range g.lastFired {
		if strings.HasPrefix(k, pfx) {
			delete(g.lastFired, k)
		}
	}
	for k := range g.active {
		if strings.HasPrefix(k, pfx) {
			delete(g.active, k)
		}
	}
}

// ActiveIssues returns a copy of the standing issues.
func (g *Gate) ActiveIssues() []Active {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Active, 0, len(g.active))
	for _, a := range g.active {
		out = append(out, a)
	}
	return out
}
