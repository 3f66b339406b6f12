package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/apperrors"
	"github.com/wanderplan/trip-engine/internal/audit"
	"github.com/wanderplan/trip-engine/internal/generation"
	"github.com/wanderplan/trip-engine/internal/model"
	"github.com/wanderplan/trip-engine/internal/repository"
	"github.com/wanderplan/trip-engine/internal/util"
)

const apologyText = "Sorry, I couldn't come up with an answer just now. Please try again in a moment."

// ConversationService owns the per-session transcript and the synchronous
// exchange with the generation collaborator.
type ConversationService struct {
	sessionRepo       repository.SessionRepository
	intakeRepo        repository.IntakeRepository
	messageRepo       repository.ConversationMessageRepository
	tripRepo          repository.TripRepository
	generator         generation.Generator
	generationTimeout time.Duration
}

func NewConversationService(
	sessionRepo repository.SessionRepository,
	intakeRepo repository.IntakeRepository,
	messageRepo repository.ConversationMessageRepository,
	tripRepo repository.TripRepository,
	generator generation.Generator,
	generationTimeout time.Duration,
) *ConversationService {
	return &ConversationService{
		sessionRepo:       sessionRepo,
		intakeRepo:        intakeRepo,
		messageRepo:       messageRepo,
		tripRepo:          tripRepo,
		generator:         generator,
		generationTimeout: generationTimeout,
	}
}

func welcomeText(tripName string) string {
	return fmt.Sprintf("Welcome to the %s trip chat! Ask me anything about your itinerary, the area, or practical travel matters.", tripName)
}

// Respond appends the traveler's message and returns the assistant's reply.
// The traveler entry is appended before the generation call and survives any
// generation failure; on failure the reply is a fixed apology entry, never an
// error. The caller only sees an error for access refusal or storage trouble.
func (s *ConversationService) Respond(ctx context.Context, sessionToken, travelerText string) (string, error) {
	if travelerText == "" {
		return "", apperrors.MissingRequired("message text")
	}

	session, err := s.sessionRepo.FindByToken(ctx, sessionToken)
	if err != nil {
		return "", fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return "", apperrors.SessionNotFound()
	}

	intake, err := s.intakeRepo.FindBySessionToken(ctx, sessionToken)
	if err != nil {
		return "", fmt.Errorf("find intake: %w", err)
	}
	if intake == nil || intake.CompletedAt == nil {
		return "", apperrors.IntakeRequired()
	}

	trip, err := s.tripRepo.FindByID(ctx, session.TripID)
	if err != nil {
		return "", fmt.Errorf("find trip: %w", err)
	}
	if trip == nil {
		return "", apperrors.NotFound("Trip")
	}

	// First access to an ACTIVE session with an empty log synthesizes the
	// welcome entry. The insert is guarded so a retried first call cannot
	// produce a second welcome.
	inserted, err := s.messageRepo.AppendIfEmpty(ctx, model.AppendMessageParams{
		ID:           uuid.NewString(),
		SessionToken: sessionToken,
		Role:         model.RoleAssistant,
		Body:         welcomeText(trip.Name),
	})
	if err != nil {
		return "", fmt.Errorf("append welcome: %w", err)
	}
	if inserted {
		log.Debug().Str("sessionToken", util.MaskToken(sessionToken)).Msg("welcome entry synthesized")
	}

	transcript, err := s.messageRepo.ListBySessionToken(ctx, sessionToken)
	if err != nil {
		return "", fmt.Errorf("load transcript: %w", err)
	}

	// The traveler's utterance is never lost, even if generation fails next.
	if _, err := s.messageRepo.Append(ctx, model.AppendMessageParams{
		ID:           uuid.NewString(),
		SessionToken: sessionToken,
		Role:         model.RoleTraveler,
		Body:         travelerText,
	}); err != nil {
		return "", fmt.Errorf("append traveler message: %w", err)
	}

	if err := s.sessionRepo.Touch(ctx, sessionToken); err != nil {
		log.Warn().Err(err).Str("sessionToken", util.MaskToken(sessionToken)).Msg("touch session failed")
	}

	behavior := ""
	if trip.BehaviorInstructions != nil {
		behavior = *trip.BehaviorInstructions
	}

	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	replyText, genErr := s.generator.Generate(genCtx, transcript, behavior, travelerText)
	if genErr != nil {
		// Timeouts and provider errors are handled identically: the channel
		// gets the fixed apology, never a raw error.
		log.Error().Err(genErr).
			Str("sessionToken", util.MaskToken(sessionToken)).
			Str("tripId", trip.ID).
			Msg("generation failed, substituting apology")
		audit.Log(audit.Event{
			Type:         audit.EventGenerationFailed,
			TripID:       trip.ID,
			SessionToken: util.MaskToken(sessionToken),
			Details:      map[string]interface{}{"error": genErr.Error()},
		})
		replyText = apologyText
	}

	if _, err := s.messageRepo.Append(ctx, model.AppendMessageParams{
		ID:           uuid.NewString(),
		SessionToken: sessionToken,
		Role:         model.RoleAssistant,
		Body:         replyText,
	}); err != nil {
		return "", fmt.Errorf("append assistant message: %w", err)
	}

	return replyText, nil
}

// Transcript returns the ordered conversation log for a session.
func (s *ConversationService) Transcript(ctx context.Context, sessionToken string) ([]model.ConversationMessage, error) {
	session, err := s.sessionRepo.FindByToken(ctx, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.SessionNotFound()
	}
	return s.messageRepo.ListBySessionToken(ctx, sessionToken)
}
