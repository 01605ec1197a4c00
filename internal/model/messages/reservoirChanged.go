package messages

import "time"

// ReservoirChanged acknowledges a manual reservoir change. It resets the
// reservoir-age clock for the tower and clears standing reservoir-due alerts.
type ReservoirChanged struct {
	Tower     string    `json:"tower"`
	Timestamp time.Time `json:"timestamp"`
}
