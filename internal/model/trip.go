package model

import (
	"encoding/json"
	"time"
)

type Trip struct {
	ID                   string           `db:"id" json:"id"`
	TenantID             string           `db:"tenant_id" json:"tenantId"`
	Name                 string           `db:"name" json:"name"`
	ShareToken           string           `db:"share_token" json:"shareToken"`
	DefaultTimezone      string           `db:"default_timezone" json:"defaultTimezone"`
	ProfileTemplate      *json.RawMessage `db:"profile_template" json:"profileTemplate,omitempty"`
	BehaviorInstructions *string          `db:"behavior_instructions" json:"behaviorInstructions,omitempty"`
	ItineraryRef         *string          `db:"itinerary_ref" json:"itineraryRef,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updatedAt"`
}

type CreateTripParams struct {
	ID                   string
	TenantID             string
	Name                 string
	ShareToken           string
	DefaultTimezone      string
	ProfileTemplate      *json.RawMessage
	BehaviorInstructions *string
	ItineraryRef         *string
}

type UpdateTripParams struct {
	Name                 *string
	ProfileTemplate      *json.RawMessage
	BehaviorInstructions *string
	ItineraryRef         *string
}
