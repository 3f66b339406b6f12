package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wanderplan/trip-engine/internal/model"
)

type ScheduledMessageRepository interface {
	FindByID(ctx context.Context, id string) (*model.ScheduledMessage, error)
	Create(ctx context.Context, params model.CreateScheduledMessageParams) (*model.ScheduledMessage, error)
	// ExistsByTripPhoneType reports whether a job of the given type already
	// exists for (trip, phone), sent or not. Fan-out uses it as its
	// idempotency check.
	ExistsByTripPhoneType(ctx context.Context, tripID, phone string, msgType model.MessageType) (bool, error)
	// FindPending returns unsent, unalerted jobs that are not currently
	// claimed (or whose claim lease has expired), oldest first.
	FindPending(ctx context.Context, claimLease time.Duration, limit int) ([]model.ScheduledMessage, error)
	// Claim atomically takes a job for delivery. It succeeds only if the job
	// is still unsent and unclaimed (or the previous claim is older than the
	// lease), so two overlapping scheduler passes never both deliver it.
	Claim(ctx context.Context, id string, claimLease time.Duration) (bool, error)
	// MarkSent flips sent=false -> sent=true. The conditional guard makes the
	// transition happen at most once.
	MarkSent(ctx context.Context, id, deliveryID string) (bool, error)
	// ReleaseFailed records a failed attempt and releases the claim so a
	// later pass may retry.
	ReleaseFailed(ctx context.Context, id, reason string) error
	// MarkAlerted flags a job whose attempts are exhausted; alerted jobs are
	// no longer returned by FindPending.
	MarkAlerted(ctx context.Context, id string) error
	ListByTrip(ctx context.Context, tripID string) ([]model.ScheduledMessage, error)
	Delete(ctx context.Context, id string) error
}

type scheduledMessageRepo struct {
	db *sqlx.DB
}

func NewScheduledMessageRepository(db *sqlx.DB) ScheduledMessageRepository {
	return &scheduledMessageRepo{db: db}
}

func (r *scheduledMessageRepo) FindByID(ctx context.Context, id string) (*model.ScheduledMessage, error) {
	var msg model.ScheduledMessage
	err := r.db.GetContext(ctx, &msg, `
		SELECT * FROM scheduled_messages WHERE id = $1
	`, id)
	return HandleNotFound(&msg, err)
}

func (r *scheduledMessageRepo) Create(ctx context.Context, params model.CreateScheduledMessageParams) (*model.ScheduledMessage, error) {
	var msg model.ScheduledMessage
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO scheduled_messages
			(id, trip_id, recipient_phone, body, template_id, variables,
			 send_date, send_time, timezone, message_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *
	`, params.ID, params.TripID, params.RecipientPhone, params.Body, params.TemplateID,
		params.Variables, params.SendDate, params.SendTime, params.Timezone, params.MessageType)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *scheduledMessageRepo) ExistsByTripPhoneType(ctx context.Context, tripID, phone string, msgType model.MessageType) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM scheduled_messages
			WHERE trip_id = $1 AND recipient_phone = $2 AND message_type = $3
		)
	`, tripID, phone, msgType)
	return exists, err
}

func (r *scheduledMessageRepo) FindPending(ctx context.Context, claimLease time.Duration, limit int) ([]model.ScheduledMessage, error) {
	var msgs []model.ScheduledMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM scheduled_messages
		WHERE sent = FALSE
		AND alerted = FALSE
		AND (claimed_at IS NULL OR claimed_at < NOW() - ($1 * interval '1 second'))
		ORDER BY created_at ASC
		LIMIT $2
	`, int64(claimLease.Seconds()), limit)
	return msgs, err
}

func (r *scheduledMessageRepo) Claim(ctx context.Context, id string, claimLease time.Duration) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET
			claimed_at = NOW(),
			attempt_count = attempt_count + 1
		WHERE id = $1
		AND sent = FALSE
		AND (claimed_at IS NULL OR claimed_at < NOW() - ($2 * interval '1 second'))
	`, id, int64(claimLease.Seconds()))
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *scheduledMessageRepo) MarkSent(ctx context.Context, id, deliveryID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET
			sent = TRUE,
			sent_at = NOW(),
			delivery_id = $2,
			last_error = NULL
		WHERE id = $1 AND sent = FALSE
	`, id, deliveryID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *scheduledMessageRepo) ReleaseFailed(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET
			claimed_at = NULL,
			last_error = $2
		WHERE id = $1 AND sent = FALSE
	`, id, reason)
	return err
}

func (r *scheduledMessageRepo) MarkAlerted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages SET
			alerted = TRUE,
			claimed_at = NULL
		WHERE id = $1 AND sent = FALSE
	`, id)
	return err
}

func (r *scheduledMessageRepo) ListByTrip(ctx context.Context, tripID string) ([]model.ScheduledMessage, error) {
	var msgs []model.ScheduledMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM scheduled_messages
		WHERE trip_id = $1
		ORDER BY created_at DESC
	`, tripID)
	return msgs, err
}

func (r *scheduledMessageRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_messages WHERE id = $1`, id)
	return err
}
