package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Conversation is a persisted snapshot of one chat: the ordered turn list
// plus display metadata. The in-memory session registry is the source of
// truth while a chat is live; snapshots are best effort, overwrite by id.
type Conversation struct {
	ID        string     `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"` // nil for guest-owned snapshots
	Title     string     `json:"title"`
	Turns     []Turn     `json:"turns"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ConversationRepository defines the interface for conversation storage
type ConversationRepository interface {
	Upsert(ctx context.Context, conv *Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Conversation, error)

	// Claim assigns an ownerless conversation to a user. It reports whether
	// a row was adopted; a conversation already owned by someone else is
	// left untouched.
	Claim(ctx context.Context, id string, userID uuid.UUID) (bool, error)

	Delete(ctx context.Context, id string) error
}
