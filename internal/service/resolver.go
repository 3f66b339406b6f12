package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/wanderplan/trip-engine/internal/database"
	"github.com/wanderplan/trip-engine/internal/identity"
	"github.com/wanderplan/trip-engine/internal/model"
	"github.com/wanderplan/trip-engine/internal/repository"
	"github.com/wanderplan/trip-engine/internal/util"
)

// TxRunner runs a function inside a database transaction. *database.DB
// satisfies it; tests substitute a pass-through runner.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

var _ TxRunner = (*database.DB)(nil)

// SessionResolver maps a (trip, channel address) pair to exactly one session
// token, creating the session and its intake row on first contact.
type SessionResolver struct {
	db                 TxRunner
	sessionRepo        repository.SessionRepository
	intakeRepo         repository.IntakeRepository
	defaultCountryCode string
}

func NewSessionResolver(
	db TxRunner,
	sessionRepo repository.SessionRepository,
	intakeRepo repository.IntakeRepository,
	defaultCountryCode string,
) *SessionResolver {
	return &SessionResolver{
		db:                 db,
		sessionRepo:        sessionRepo,
		intakeRepo:         intakeRepo,
		defaultCountryCode: defaultCountryCode,
	}
}

// Resolve returns the session token for (tripID, rawAddress), creating the
// pairing on first contact. Two callers racing on first contact converge on
// one session: the upsert is keyed on (trip_id, channel_address) and the
// race loser receives the winner's token with isNew=false.
func (s *SessionResolver) Resolve(ctx context.Context, tripID, rawAddress string) (token string, isNew bool, err error) {
	address := identity.Normalize(rawAddress, s.defaultCountryCode)

	existing, err := s.sessionRepo.FindByTripAndAddress(ctx, tripID, address)
	if err != nil {
		return "", false, fmt.Errorf("find session: %w", err)
	}
	if existing != nil {
		if err := s.sessionRepo.Touch(ctx, existing.Token); err != nil {
			return "", false, fmt.Errorf("touch session: %w", err)
		}
		// Repair an orphaned session whose intake write was lost. Creation
		// is transactional, but rows written before that guard existed (or
		// by external tooling) must not stay silently inconsistent.
		if err := s.intakeRepo.CreateIfMissing(ctx, existing.Token); err != nil {
			return "", false, fmt.Errorf("repair intake: %w", err)
		}
		return existing.Token, false, nil
	}

	candidate, err := util.GenerateToken()
	if err != nil {
		return "", false, fmt.Errorf("generate session token: %w", err)
	}

	var session *model.Session
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		sessions := s.sessionRepo.WithTx(tx)
		intakes := s.intakeRepo.WithTx(tx)

		created, err := sessions.Upsert(ctx, model.UpsertSessionParams{
			Token:          candidate,
			TripID:         tripID,
			ChannelAddress: address,
		})
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		if err := intakes.CreateIfMissing(ctx, created.Token); err != nil {
			return fmt.Errorf("create intake: %w", err)
		}
		session = created
		return nil
	})
	if err != nil {
		return "", false, err
	}

	// The upsert returns the surviving row; if its token is not the one we
	// generated, a concurrent first contact won the insert.
	isNew = session.Token == candidate
	if isNew {
		log.Info().
			Str("tripId", tripID).
			Str("sessionToken", util.MaskToken(session.Token)).
			Msg("session created")
	}
	return session.Token, isNew, nil
}

// ResolveExisting returns the session for a normalized address without
// creating one. Inbound messaging webhooks use it to route by sender.
func (s *SessionResolver) ResolveExisting(ctx context.Context, rawAddress string) (*model.Session, error) {
	address := identity.Normalize(rawAddress, s.defaultCountryCode)
	return s.sessionRepo.FindLatestByAddress(ctx, address)
}

// Session looks up a session by token, nil when unknown.
func (s *SessionResolver) Session(ctx context.Context, token string) (*model.Session, error) {
	return s.sessionRepo.FindByToken(ctx, token)
}

// ListByTrip returns all sessions for a trip, most recently seen first.
func (s *SessionResolver) ListByTrip(ctx context.Context, tripID string) ([]model.Session, error) {
	return s.sessionRepo.ListByTrip(ctx, tripID)
}
