package repository

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/wanderplan/trip-engine/internal/model"
)

type IntakeRepository interface {
	FindBySessionToken(ctx context.Context, token string) (*model.Intake, error)
	// CreateIfMissing inserts the zeroed intake row for a session. Calling it
	// for a session that already has one is a no-op, which makes it safe both
	// inside the resolver transaction and as orphan repair on later lookups.
	CreateIfMissing(ctx context.Context, sessionToken string) error
	// Complete performs the AWAITING -> ACTIVE transition. It returns true
	// only for the single caller whose conditional update flipped
	// completed_at from NULL; every other caller gets false.
	Complete(ctx context.Context, sessionToken string, travelerCount int, profile json.RawMessage) (bool, error)
	WithTx(tx *sqlx.Tx) IntakeRepository
}

type intakeRepo struct {
	db sessionDB
}

func NewIntakeRepository(db *sqlx.DB) IntakeRepository {
	return &intakeRepo{db: db}
}

func (r *intakeRepo) WithTx(tx *sqlx.Tx) IntakeRepository {
	return &intakeRepo{db: tx}
}

func (r *intakeRepo) FindBySessionToken(ctx context.Context, token string) (*model.Intake, error) {
	var intake model.Intake
	err := r.db.GetContext(ctx, &intake, `
		SELECT * FROM intakes WHERE session_token = $1
	`, token)
	return HandleNotFound(&intake, err)
}

func (r *intakeRepo) CreateIfMissing(ctx context.Context, sessionToken string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO intakes (session_token, traveler_count, profile)
		VALUES ($1, 0, '{}'::jsonb)
		ON CONFLICT (session_token) DO NOTHING
	`, sessionToken)
	return err
}

func (r *intakeRepo) Complete(ctx context.Context, sessionToken string, travelerCount int, profile json.RawMessage) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE intakes SET
			traveler_count = $2,
			profile = $3,
			completed_at = NOW()
		WHERE session_token = $1 AND completed_at IS NULL
	`, sessionToken, travelerCount, profile)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
