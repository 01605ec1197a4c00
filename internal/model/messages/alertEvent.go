package messages

import (
	"time"

	"github.com/dualtower/hydroai/internal/model"
)

// AlertEvent is published when an issue passes the alert gate. The
// notification collaborator turns it into human-readable text.
type AlertEvent struct {
	Tower      model.Tower     `json:"tower"`
	Type       model.IssueType `json:"type"`
	Severity   model.Severity  `json:"severity"`
	Message    string          `json:"message"`
	Suggestion string          `json:"suggestion"`
	Timestamp  time.Time       `json:"timestamp"`
}
