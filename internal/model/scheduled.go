package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ScheduledMessage is a single-delivery notification job. It transitions
// sent=false -> sent=true at most once; failed attempts leave sent=false and
// the row is kept as an audit trail even after delivery.
type ScheduledMessage struct {
	ID             string           `db:"id" json:"id"`
	TripID         string           `db:"trip_id" json:"tripId"`
	RecipientPhone string           `db:"recipient_phone" json:"recipientPhone"`
	Body           *string          `db:"body" json:"body,omitempty"`
	TemplateID     *string          `db:"template_id" json:"templateId,omitempty"`
	Variables      *json.RawMessage `db:"variables" json:"variables,omitempty"`
	SendDate       string           `db:"send_date" json:"sendDate"` // YYYY-MM-DD
	SendTime       string           `db:"send_time" json:"sendTime"` // HH:MM
	Timezone       string           `db:"timezone" json:"timezone"`
	MessageType    MessageType      `db:"message_type" json:"messageType"`
	Sent           bool             `db:"sent" json:"sent"`
	SentAt         *time.Time       `db:"sent_at" json:"sentAt,omitempty"`
	DeliveryID     *string          `db:"delivery_id" json:"deliveryId,omitempty"`
	AttemptCount   int              `db:"attempt_count" json:"attemptCount"`
	LastError      *string          `db:"last_error" json:"lastError,omitempty"`
	ClaimedAt      *time.Time       `db:"claimed_at" json:"-"`
	Alerted        bool             `db:"alerted" json:"alerted"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
}

// DueAt interprets (send_date, send_time) in the job's named timezone.
func (m *ScheduledMessage) DueAt() (time.Time, error) {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", m.Timezone, err)
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", m.SendDate+" "+m.SendTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q %q: %w", m.SendDate, m.SendTime, err)
	}
	return due, nil
}

type CreateScheduledMessageParams struct {
	ID             string
	TripID         string
	RecipientPhone string
	Body           *string
	TemplateID     *string
	Variables      *json.RawMessage
	SendDate       string
	SendTime       string
	Timezone       string
	MessageType    MessageType
}
