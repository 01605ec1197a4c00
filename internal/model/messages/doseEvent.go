package messages

import (
	"time"

	"github.com/dualtower/hydroai/internal/model"
)

// DoseEvent is published after a dose sequence completes.
type DoseEvent struct {
	Tower     model.Tower    `json:"tower"`
	Solution  model.Solution `json:"solution"`
	VolumeML  float64        `json:"volume_ml"`
	Reason    string         `json:"reason"`
	Auto      bool           `json:"auto"`
	Timestamp time.Time      `json:"timestamp"`
}
