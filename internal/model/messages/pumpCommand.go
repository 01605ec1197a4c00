package messages

import (
	"time"

	"github.com/dualtower/hydroai/internal/model"
)

// PumpCommand is sent to the pump board to run one peristaltic channel for a
// fixed time. The board offers no completion feedback; run time is the only
// control.
type PumpCommand struct {
	PumpID         int            `json:"pump_id"`
	RunTimeSeconds float64        `json:"run_time_seconds"`
	VolumeML       float64        `json:"volume_ml"`
	Solution       model.Solution `json:"solution"`
	Timestamp      time.Time      `json:"timestamp"`
}
