package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/audit"
	"github.com/wanderplan/trip-engine/internal/identity"
	"github.com/wanderplan/trip-engine/internal/model"
	"github.com/wanderplan/trip-engine/internal/repository"
	"github.com/wanderplan/trip-engine/internal/util"
)

// FanOutService registers a session for every participant phone on a trip
// and enqueues one intake-completed notification job per participant. It is
// idempotent per (trip, phone, job type): invoking it twice for the same
// intake transition enqueues nothing new.
type FanOutService struct {
	tripRepo           repository.TripRepository
	participantRepo    repository.ParticipantRepository
	sessionRepo        repository.SessionRepository
	intakeRepo         repository.IntakeRepository
	scheduledRepo      repository.ScheduledMessageRepository
	defaultCountryCode string
	shareLink          func(shareToken string) string
	now                func() time.Time
}

func NewFanOutService(
	tripRepo repository.TripRepository,
	participantRepo repository.ParticipantRepository,
	sessionRepo repository.SessionRepository,
	intakeRepo repository.IntakeRepository,
	scheduledRepo repository.ScheduledMessageRepository,
	defaultCountryCode string,
	shareLink func(shareToken string) string,
) *FanOutService {
	return &FanOutService{
		tripRepo:           tripRepo,
		participantRepo:    participantRepo,
		sessionRepo:        sessionRepo,
		intakeRepo:         intakeRepo,
		scheduledRepo:      scheduledRepo,
		defaultCountryCode: defaultCountryCode,
		shareLink:          shareLink,
		now:                time.Now,
	}
}

// Run fans out to every participant with a non-empty phone. Each phone gets
// its own session (a different channel address than the one the intake came
// in on) so later inbound messages from that number resolve to the right
// conversation.
func (s *FanOutService) Run(ctx context.Context, tripID string) error {
	trip, err := s.tripRepo.FindByID(ctx, tripID)
	if err != nil {
		return fmt.Errorf("find trip: %w", err)
	}
	if trip == nil {
		return fmt.Errorf("trip %s not found", tripID)
	}

	participants, err := s.participantRepo.ListByTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}

	enqueued := 0
	for _, p := range participants {
		if p.Phone == "" {
			continue
		}
		phone := identity.Normalize(p.Phone, s.defaultCountryCode)

		if err := s.ensureSession(ctx, tripID, phone); err != nil {
			return fmt.Errorf("participant session %s: %w", p.ID, err)
		}

		exists, err := s.scheduledRepo.ExistsByTripPhoneType(ctx, tripID, phone, model.MessageTypeIntakeCompleted)
		if err != nil {
			return fmt.Errorf("check existing job: %w", err)
		}
		if exists {
			continue
		}

		vars, _ := json.Marshal(map[string]string{
			"participantName": p.Name,
			"tripName":        trip.Name,
			"shareLink":       s.shareLink(trip.ShareToken),
		})
		rawVars := json.RawMessage(vars)
		templateID := string(model.MessageTypeIntakeCompleted)

		now := s.now().In(s.location(trip.DefaultTimezone))
		_, err = s.scheduledRepo.Create(ctx, model.CreateScheduledMessageParams{
			ID:             uuid.NewString(),
			TripID:         tripID,
			RecipientPhone: phone,
			TemplateID:     &templateID,
			Variables:      &rawVars,
			SendDate:       now.Format("2006-01-02"),
			SendTime:       now.Format("15:04"),
			Timezone:       trip.DefaultTimezone,
			MessageType:    model.MessageTypeIntakeCompleted,
		})
		if err != nil {
			return fmt.Errorf("enqueue job for %s: %w", p.ID, err)
		}
		enqueued++
	}

	log.Info().
		Str("tripId", tripID).
		Int("participants", len(participants)).
		Int("enqueued", enqueued).
		Msg("participant fan-out finished")
	if enqueued > 0 {
		audit.Log(audit.Event{
			Type:    audit.EventFanOutEnqueued,
			TripID:  tripID,
			Details: map[string]interface{}{"jobs": enqueued},
		})
	}
	return nil
}

func (s *FanOutService) ensureSession(ctx context.Context, tripID, phone string) error {
	token, err := util.GenerateToken()
	if err != nil {
		return err
	}
	session, err := s.sessionRepo.Upsert(ctx, model.UpsertSessionParams{
		Token:          token,
		TripID:         tripID,
		ChannelAddress: phone,
	})
	if err != nil {
		return err
	}
	return s.intakeRepo.CreateIfMissing(ctx, session.Token)
}

func (s *FanOutService) location(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
