package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wanderplan/trip-engine/internal/model"
)

type TripRepository interface {
	FindByID(ctx context.Context, id string) (*model.Trip, error)
	FindByShareToken(ctx context.Context, shareToken string) (*model.Trip, error)
	Create(ctx context.Context, params model.CreateTripParams) (*model.Trip, error)
	Update(ctx context.Context, id string, params model.UpdateTripParams) (*model.Trip, error)
	ListByTenant(ctx context.Context, tenantID string) ([]model.Trip, error)
}

type tripRepo struct {
	db *sqlx.DB
}

func NewTripRepository(db *sqlx.DB) TripRepository {
	return &tripRepo{db: db}
}

func (r *tripRepo) FindByID(ctx context.Context, id string) (*model.Trip, error) {
	var trip model.Trip
	err := r.db.GetContext(ctx, &trip, `
		SELECT * FROM trips WHERE id = $1
	`, id)
	return HandleNotFound(&trip, err)
}

func (r *tripRepo) FindByShareToken(ctx context.Context, shareToken string) (*model.Trip, error) {
	var trip model.Trip
	err := r.db.GetContext(ctx, &trip, `
		SELECT * FROM trips WHERE share_token = $1
	`, shareToken)
	return HandleNotFound(&trip, err)
}

func (r *tripRepo) Create(ctx context.Context, params model.CreateTripParams) (*model.Trip, error) {
	var trip model.Trip
	err := r.db.GetContext(ctx, &trip, `
		INSERT INTO trips
			(id, tenant_id, name, share_token, default_timezone, profile_template, behavior_instructions, itinerary_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.ID, params.TenantID, params.Name, params.ShareToken, params.DefaultTimezone,
		params.ProfileTemplate, params.BehaviorInstructions, params.ItineraryRef)
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (r *tripRepo) Update(ctx context.Context, id string, params model.UpdateTripParams) (*model.Trip, error) {
	// Share token is immutable once created; only content fields are mutable.
	var trip model.Trip
	err := r.db.GetContext(ctx, &trip, `
		UPDATE trips SET
			name = COALESCE($2, name),
			profile_template = COALESCE($3, profile_template),
			behavior_instructions = COALESCE($4, behavior_instructions),
			itinerary_ref = COALESCE($5, itinerary_ref),
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, params.Name, params.ProfileTemplate, params.BehaviorInstructions, params.ItineraryRef)
	return HandleNotFound(&trip, err)
}

func (r *tripRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Trip, error) {
	var trips []model.Trip
	err := r.db.SelectContext(ctx, &trips, `
		SELECT * FROM trips
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	return trips, err
}
