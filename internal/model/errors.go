package model

import "errors"

// Error taxonomy for the dosing path. Safety denials are not errors; they are
// reported through dosing.Decision.
var (
	// ErrInvalidInput covers non-positive volumes and unknown tower or
	// solution identifiers, rejected before any side effect.
	ErrInvalidInput = errors.New("invalid input")

	// ErrActuation means the pump command could not be delivered. No dose
	// record is written and the core does not retry.
	ErrActuation = errors.New("actuation failed")

	// ErrRecordFailed means the pump has already run but the dose record
	// could not be persisted. Future daily-limit sums will undercount, so
	// callers must surface this loudly rather than drop it.
	ErrRecordFailed = errors.New("dose executed but record not persisted")
)
