package model

import "time"

// DoseRequest is a proposed actuation of one pump channel. It is constructed
// by the auto-adjustment policy or by a manual command and never mutated.
type DoseRequest struct {
	Tower     Tower    `json:"tower"`
	Solution  Solution `json:"solution"`
	VolumeML  float64  `json:"volume_ml"`
	Reason    string   `json:"reason"`
	Automatic bool     `json:"automatic"`
}

// DoseRecord is the persisted, append-only fact of a dose. Timestamps are
// stored in UTC so the daily-ceiling sum has an unambiguous midnight.
// Success reflects only that validation passed and the command was sent;
// there is no flow sensor confirming the pump physically ran.
type DoseRecord struct {
	Tower     Tower     `db:"tower" json:"tower"`
	Solution  Solution  `db:"solution" json:"solution"`
	VolumeML  float64   `db:"volume_ml" json:"volume_ml"`
	DosedAt   time.Time `db:"dosed_at" json:"dosed_at"`
	Reason    string    `db:"reason" json:"reason"`
	AutoDosed bool      `db:"auto_dosed" json:"auto_dosed"`
	PHBefore  *float64  `db:"ph_before" json:"ph_before,omitempty"`
	ECBefore  *float64  `db:"ec_before" json:"ec_before,omitempty"`
	Success   bool      `db:"success" json:"success"`
}

// DoseResult reports how far a dose sequence got. Denied means the safety
// gate refused the dose before actuation. Dosed means the pump command went
// out; Recorded means the history row was written. The Dosed && !Recorded
// combination is the persistence-failure state that callers must not swallow.
type DoseResult struct {
	Denied     bool
	DenyReason string
	Dosed      bool
	Recorded   bool
	Record     DoseRecord
}
