// Package audit emits operator-visible engine events as structured log lines.
package audit

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventIntakeCompleted   EventType = "intake_completed"
	EventFanOutEnqueued    EventType = "fanout_enqueued"
	EventDeliverySucceeded EventType = "delivery_succeeded"
	EventDeliveryFailed    EventType = "delivery_failed"
	EventRetriesExhausted  EventType = "retries_exhausted"
	EventGenerationFailed  EventType = "generation_failed"
	EventTripCreated       EventType = "trip_created"
	EventJobDeleted        EventType = "job_deleted"
)

type Event struct {
	Type         EventType
	TripID       string
	SessionToken string
	JobID        string
	Details      map[string]interface{}
}

func Log(event Event) {
	logger := log.With().
		Str("audit", "engine").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.TripID != "" {
		logger = logger.With().Str("trip_id", event.TripID).Logger()
	}
	if event.SessionToken != "" {
		logger = logger.With().Str("session_token", event.SessionToken).Logger()
	}
	if event.JobID != "" {
		logger = logger.With().Str("job_id", event.JobID).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("engine audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
