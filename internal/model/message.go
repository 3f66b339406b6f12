package model

import "time"

// ConversationMessage is an append-only transcript entry. Entries are never
// mutated or removed; per-session ordering follows insertion order.
type ConversationMessage struct {
	ID           string      `db:"id" json:"id"`
	SessionToken string      `db:"session_token" json:"sessionToken"`
	Role         MessageRole `db:"role" json:"role"`
	Body         string      `db:"body" json:"body"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
}

type AppendMessageParams struct {
	ID           string
	SessionToken string
	Role         MessageRole
	Body         string
}
