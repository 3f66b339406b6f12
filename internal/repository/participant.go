package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wanderplan/trip-engine/internal/model"
)

type ParticipantRepository interface {
	FindByID(ctx context.Context, id string) (*model.Participant, error)
	ListByTrip(ctx context.Context, tripID string) ([]model.Participant, error)
	Create(ctx context.Context, params model.CreateParticipantParams) (*model.Participant, error)
	Delete(ctx context.Context, id string) error
}

type participantRepo struct {
	db *sqlx.DB
}

func NewParticipantRepository(db *sqlx.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) FindByID(ctx context.Context, id string) (*model.Participant, error) {
	var p model.Participant
	err := r.db.GetContext(ctx, &p, `
		SELECT * FROM participants WHERE id = $1
	`, id)
	return HandleNotFound(&p, err)
}

func (r *participantRepo) ListByTrip(ctx context.Context, tripID string) ([]model.Participant, error) {
	var participants []model.Participant
	err := r.db.SelectContext(ctx, &participants, `
		SELECT * FROM participants
		WHERE trip_id = $1
		ORDER BY created_at ASC
	`, tripID)
	return participants, err
}

func (r *participantRepo) Create(ctx context.Context, params model.CreateParticipantParams) (*model.Participant, error) {
	var p model.Participant
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO participants (id, trip_id, name, phone, is_primary)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ID, params.TripID, params.Name, params.Phone, params.IsPrimary)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id)
	return err
}
