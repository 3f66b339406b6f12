package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wanderplan/trip-engine/internal/model"
)

type ConversationMessageRepository interface {
	Append(ctx context.Context, params model.AppendMessageParams) (*model.ConversationMessage, error)
	// AppendIfEmpty inserts the entry only when the session has no prior
	// entries. Returns true if the row was inserted. This is the exactly-once
	// guard for the synthesized welcome entry.
	AppendIfEmpty(ctx context.Context, params model.AppendMessageParams) (bool, error)
	ListBySessionToken(ctx context.Context, token string) ([]model.ConversationMessage, error)
	CountBySessionToken(ctx context.Context, token string) (int, error)
}

type conversationMessageRepo struct {
	db *sqlx.DB
}

func NewConversationMessageRepository(db *sqlx.DB) ConversationMessageRepository {
	return &conversationMessageRepo{db: db}
}

func (r *conversationMessageRepo) Append(ctx context.Context, params model.AppendMessageParams) (*model.ConversationMessage, error) {
	var msg model.ConversationMessage
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO conversation_messages (id, session_token, role, body)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.ID, params.SessionToken, params.Role, params.Body)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *conversationMessageRepo) AppendIfEmpty(ctx context.Context, params model.AppendMessageParams) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, session_token, role, body)
		SELECT $1, $2, $3, $4
		WHERE NOT EXISTS (
			SELECT 1 FROM conversation_messages WHERE session_token = $2
		)
	`, params.ID, params.SessionToken, params.Role, params.Body)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *conversationMessageRepo) ListBySessionToken(ctx context.Context, token string) ([]model.ConversationMessage, error) {
	var msgs []model.ConversationMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM conversation_messages
		WHERE session_token = $1
		ORDER BY created_at ASC, id ASC
	`, token)
	return msgs, err
}

func (r *conversationMessageRepo) CountBySessionToken(ctx context.Context, token string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM conversation_messages WHERE session_token = $1
	`, token)
	return count, err
}
