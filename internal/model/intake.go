package model

import (
	"encoding/json"
	"time"
)

// Intake is 1:1 with Session. While CompletedAt is nil the session is
// AWAITING and conversation access is refused.
type Intake struct {
	SessionToken  string          `db:"session_token" json:"sessionToken"`
	TravelerCount int             `db:"traveler_count" json:"travelerCount"`
	Profile       json.RawMessage `db:"profile" json:"profile"`
	CompletedAt   *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

func (i *Intake) State() IntakeState {
	if i.CompletedAt != nil {
		return IntakeStateActive
	}
	return IntakeStateAwaiting
}
