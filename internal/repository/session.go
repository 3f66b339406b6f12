package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/wanderplan/trip-engine/internal/model"
)

type SessionRepository interface {
	FindByToken(ctx context.Context, token string) (*model.Session, error)
	FindByTripAndAddress(ctx context.Context, tripID, address string) (*model.Session, error)
	// FindLatestByAddress returns the most recently active session for a
	// normalized channel address across all trips. Used to route inbound
	// messaging-channel webhooks, which carry no trip reference.
	FindLatestByAddress(ctx context.Context, address string) (*model.Session, error)
	// Upsert inserts a session for (trip_id, channel_address) or, on
	// conflict, touches last_seen_at on the existing row. The returned row's
	// token tells the caller which happened: it equals params.Token only
	// when this call created the row.
	Upsert(ctx context.Context, params model.UpsertSessionParams) (*model.Session, error)
	Touch(ctx context.Context, token string) error
	ListByTrip(ctx context.Context, tripID string) ([]model.Session, error)
	// WithTx returns a repository bound to the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE token = $1
	`, token)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindByTripAndAddress(ctx context.Context, tripID, address string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions
		WHERE trip_id = $1 AND channel_address = $2
	`, tripID, address)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindLatestByAddress(ctx context.Context, address string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions
		WHERE channel_address = $1
		ORDER BY last_seen_at DESC
		LIMIT 1
	`, address)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Upsert(ctx context.Context, params model.UpsertSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (token, trip_id, channel_address)
		VALUES ($1, $2, $3)
		ON CONFLICT (trip_id, channel_address) DO UPDATE SET
			last_seen_at = NOW()
		RETURNING *
	`, params.Token, params.TripID, params.ChannelAddress)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Touch(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET last_seen_at = NOW() WHERE token = $1
	`, token)
	return err
}

func (r *sessionRepo) ListByTrip(ctx context.Context, tripID string) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE trip_id = $1
		ORDER BY last_seen_at DESC
	`, tripID)
	return sessions, err
}
