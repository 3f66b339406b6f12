package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/apperrors"
	"github.com/wanderplan/trip-engine/internal/audit"
	"github.com/wanderplan/trip-engine/internal/identity"
	"github.com/wanderplan/trip-engine/internal/model"
	"github.com/wanderplan/trip-engine/internal/repository"
	"github.com/wanderplan/trip-engine/internal/util"
)

// TripService covers the operator surface: trip setup, participant
// registration, and ad-hoc scheduled messages.
type TripService struct {
	tripRepo           repository.TripRepository
	participantRepo    repository.ParticipantRepository
	scheduledRepo      repository.ScheduledMessageRepository
	defaultTimezone    string
	defaultCountryCode string
}

func NewTripService(
	tripRepo repository.TripRepository,
	participantRepo repository.ParticipantRepository,
	scheduledRepo repository.ScheduledMessageRepository,
	defaultTimezone string,
	defaultCountryCode string,
) *TripService {
	return &TripService{
		tripRepo:           tripRepo,
		participantRepo:    participantRepo,
		scheduledRepo:      scheduledRepo,
		defaultTimezone:    defaultTimezone,
		defaultCountryCode: defaultCountryCode,
	}
}

type CreateTripParams struct {
	TenantID             string
	Name                 string
	DefaultTimezone      string
	ProfileTemplate      *json.RawMessage
	BehaviorInstructions *string
	ItineraryRef         *string
}

// CreateTrip creates a trip with a fresh unguessable share token. The token
// is the web channel's only credential and is immutable afterwards.
func (s *TripService) CreateTrip(ctx context.Context, params CreateTripParams) (*model.Trip, error) {
	if params.TenantID == "" {
		return nil, apperrors.MissingRequired("tenantId")
	}
	if params.Name == "" {
		return nil, apperrors.MissingRequired("name")
	}

	tz := params.DefaultTimezone
	if tz == "" {
		tz = s.defaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, apperrors.InvalidInput("defaultTimezone", "unknown timezone name")
	}

	shareToken, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate share token: %w", err)
	}

	trip, err := s.tripRepo.Create(ctx, model.CreateTripParams{
		ID:                   uuid.NewString(),
		TenantID:             params.TenantID,
		Name:                 params.Name,
		ShareToken:           shareToken,
		DefaultTimezone:      tz,
		ProfileTemplate:      params.ProfileTemplate,
		BehaviorInstructions: params.BehaviorInstructions,
		ItineraryRef:         params.ItineraryRef,
	})
	if err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}

	log.Info().Str("tripId", trip.ID).Str("tenantId", trip.TenantID).Msg("trip created")
	audit.Log(audit.Event{Type: audit.EventTripCreated, TripID: trip.ID})
	return trip, nil
}

func (s *TripService) GetTrip(ctx context.Context, id string) (*model.Trip, error) {
	trip, err := s.tripRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find trip: %w", err)
	}
	if trip == nil {
		return nil, apperrors.NotFound("Trip")
	}
	return trip, nil
}

// GetTripByShareToken resolves the web channel's credential to a trip.
func (s *TripService) GetTripByShareToken(ctx context.Context, shareToken string) (*model.Trip, error) {
	trip, err := s.tripRepo.FindByShareToken(ctx, shareToken)
	if err != nil {
		return nil, fmt.Errorf("find trip by share token: %w", err)
	}
	if trip == nil {
		return nil, apperrors.NotFound("Trip")
	}
	return trip, nil
}

func (s *TripService) UpdateTrip(ctx context.Context, id string, params model.UpdateTripParams) (*model.Trip, error) {
	trip, err := s.tripRepo.Update(ctx, id, params)
	if err != nil {
		return nil, fmt.Errorf("update trip: %w", err)
	}
	if trip == nil {
		return nil, apperrors.NotFound("Trip")
	}
	return trip, nil
}

// AddParticipant registers a participant. The phone is stored normalized so
// fan-out and later inbound contacts agree on the channel address. At most
// one primary contact per trip is advisory, not enforced.
func (s *TripService) AddParticipant(ctx context.Context, tripID, name, phone string, isPrimary bool) (*model.Participant, error) {
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if phone == "" {
		return nil, apperrors.MissingRequired("phone")
	}

	trip, err := s.tripRepo.FindByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("find trip: %w", err)
	}
	if trip == nil {
		return nil, apperrors.NotFound("Trip")
	}

	participant, err := s.participantRepo.Create(ctx, model.CreateParticipantParams{
		ID:        uuid.NewString(),
		TripID:    tripID,
		Name:      name,
		Phone:     identity.Normalize(phone, s.defaultCountryCode),
		IsPrimary: isPrimary,
	})
	if err != nil {
		return nil, fmt.Errorf("create participant: %w", err)
	}
	return participant, nil
}

func (s *TripService) ListParticipants(ctx context.Context, tripID string) ([]model.Participant, error) {
	return s.participantRepo.ListByTrip(ctx, tripID)
}

type ScheduleMessageParams struct {
	TripID         string
	RecipientPhone string
	Body           string
	SendDate       string // YYYY-MM-DD
	SendTime       string // HH:MM
	Timezone       string
}

// ScheduleMessage enqueues an operator-created ad-hoc job on the same
// delivery machinery as fan-out jobs.
func (s *TripService) ScheduleMessage(ctx context.Context, params ScheduleMessageParams) (*model.ScheduledMessage, error) {
	if params.RecipientPhone == "" {
		return nil, apperrors.MissingRequired("recipientPhone")
	}
	if params.Body == "" {
		return nil, apperrors.MissingRequired("body")
	}

	trip, err := s.tripRepo.FindByID(ctx, params.TripID)
	if err != nil {
		return nil, fmt.Errorf("find trip: %w", err)
	}
	if trip == nil {
		return nil, apperrors.NotFound("Trip")
	}

	tz := params.Timezone
	if tz == "" {
		tz = trip.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, apperrors.InvalidInput("timezone", "unknown timezone name")
	}
	if _, err := time.ParseInLocation("2006-01-02 15:04", params.SendDate+" "+params.SendTime, loc); err != nil {
		return nil, apperrors.InvalidInput("schedule", "expected date YYYY-MM-DD and time HH:MM")
	}

	body := params.Body
	job, err := s.scheduledRepo.Create(ctx, model.CreateScheduledMessageParams{
		ID:             uuid.NewString(),
		TripID:         params.TripID,
		RecipientPhone: identity.Normalize(params.RecipientPhone, s.defaultCountryCode),
		Body:           &body,
		SendDate:       params.SendDate,
		SendTime:       params.SendTime,
		Timezone:       tz,
		MessageType:    model.MessageTypeAdHoc,
	})
	if err != nil {
		return nil, fmt.Errorf("schedule message: %w", err)
	}

	log.Info().Str("jobId", job.ID).Str("tripId", params.TripID).Msg("ad-hoc message scheduled")
	return job, nil
}

func (s *TripService) ListScheduledMessages(ctx context.Context, tripID string) ([]model.ScheduledMessage, error) {
	return s.scheduledRepo.ListByTrip(ctx, tripID)
}

// DeleteScheduledMessage removes a job. Jobs are never deleted automatically;
// this is the only deletion path and it is operator-initiated.
func (s *TripService) DeleteScheduledMessage(ctx context.Context, id string) error {
	job, err := s.scheduledRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find job: %w", err)
	}
	if job == nil {
		return apperrors.NotFound("Scheduled message")
	}
	if err := s.scheduledRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	audit.Log(audit.Event{Type: audit.EventJobDeleted, TripID: job.TripID, JobID: id})
	return nil
}
