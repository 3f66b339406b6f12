package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/apperrors"
	"github.com/wanderplan/trip-engine/internal/audit"
	"github.com/wanderplan/trip-engine/internal/repository"
	"github.com/wanderplan/trip-engine/internal/util"
)

// IntakeService owns the AWAITING -> ACTIVE gate. The transition happens at
// most once per session and is the single trigger point for participant
// fan-out.
type IntakeService struct {
	intakeRepo  repository.IntakeRepository
	sessionRepo repository.SessionRepository
	fanOut      *FanOutService
}

func NewIntakeService(
	intakeRepo repository.IntakeRepository,
	sessionRepo repository.SessionRepository,
	fanOut *FanOutService,
) *IntakeService {
	return &IntakeService{
		intakeRepo:  intakeRepo,
		sessionRepo: sessionRepo,
		fanOut:      fanOut,
	}
}

// Submit stores the traveler profile and transitions the session to ACTIVE.
// A duplicate submission returns AlreadyCompleted without touching the
// stored profile. The transition itself happens exactly once, but fan-out
// runs on the duplicate path too: it is idempotent per (trip, phone, type),
// and re-running it lets a retry finish jobs a failed first call never
// enqueued.
func (s *IntakeService) Submit(ctx context.Context, sessionToken string, travelerCount int, profile json.RawMessage) error {
	if travelerCount < 1 {
		return apperrors.InvalidInput("travelerCount", "must be at least 1")
	}
	if len(profile) == 0 {
		profile = json.RawMessage(`{}`)
	}

	session, err := s.sessionRepo.FindByToken(ctx, sessionToken)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.SessionNotFound()
	}

	transitioned, err := s.intakeRepo.Complete(ctx, sessionToken, travelerCount, profile)
	if err != nil {
		return fmt.Errorf("complete intake: %w", err)
	}
	if !transitioned {
		// The stored profile is untouched, but the caller that performed the
		// transition may have failed partway through fan-out. Re-run it here
		// so the missing jobs still get enqueued; dedup keeps already-created
		// jobs from doubling.
		if err := s.fanOut.Run(ctx, session.TripID); err != nil {
			return fmt.Errorf("participant fan-out: %w", err)
		}
		return apperrors.IntakeAlreadyCompleted()
	}

	log.Info().
		Str("sessionToken", util.MaskToken(sessionToken)).
		Str("tripId", session.TripID).
		Int("travelerCount", travelerCount).
		Msg("intake completed")
	audit.Log(audit.Event{
		Type:         audit.EventIntakeCompleted,
		TripID:       session.TripID,
		SessionToken: util.MaskToken(sessionToken),
	})

	if err := s.fanOut.Run(ctx, session.TripID); err != nil {
		// The gate is already ACTIVE; fan-out jobs that did get inserted are
		// deduped on the next run, so surface the error for a caller retry.
		return fmt.Errorf("participant fan-out: %w", err)
	}
	return nil
}

// State returns the intake for a session, repairing a missing row on the way.
func (s *IntakeService) State(ctx context.Context, sessionToken string) (*IntakeState, error) {
	session, err := s.sessionRepo.FindByToken(ctx, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.SessionNotFound()
	}

	intake, err := s.intakeRepo.FindBySessionToken(ctx, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("find intake: %w", err)
	}
	if intake == nil {
		if err := s.intakeRepo.CreateIfMissing(ctx, sessionToken); err != nil {
			return nil, fmt.Errorf("repair intake: %w", err)
		}
		return &IntakeState{SessionToken: sessionToken, Completed: false}, nil
	}

	return &IntakeState{
		SessionToken:  sessionToken,
		Completed:     intake.CompletedAt != nil,
		TravelerCount: intake.TravelerCount,
	}, nil
}

type IntakeState struct {
	SessionToken  string `json:"sessionToken"`
	Completed     bool   `json:"completed"`
	TravelerCount int    `json:"travelerCount,omitempty"`
}
