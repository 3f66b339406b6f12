package model

import "time"

// Participant lives independently from Session: it is registered by an
// operator and may exist long before (or without) any contact from its phone.
type Participant struct {
	ID        string    `db:"id" json:"id"`
	TripID    string    `db:"trip_id" json:"tripId"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	IsPrimary bool      `db:"is_primary" json:"isPrimary"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateParticipantParams struct {
	ID        string
	TripID    string
	Name      string
	Phone     string
	IsPrimary bool
}
