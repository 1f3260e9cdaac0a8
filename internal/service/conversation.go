package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rensmac/sparq-chat/internal/domain"
)

// ConversationService persists conversation snapshots. The live history
// in the session registry is authoritative while a chat runs; snapshots
// are best effort, overwrite by id.
type ConversationService struct {
	convs domain.ConversationRepository
}

// NewConversationService creates a new conversation service
func NewConversationService(convs domain.ConversationRepository) *ConversationService {
	return &ConversationService{convs: convs}
}

// ConversationSave is a snapshot submitted by a client
type ConversationSave struct {
	ID    string        `json:"id" validate:"required,max=50"`
	Title string        `json:"title" validate:"max=200"`
	Turns []domain.Turn `json:"turns"`
}

// Save upserts a snapshot. When the caller is authenticated the snapshot
// is owned by them; an existing ownerless row is adopted on the way.
func (s *ConversationService) Save(ctx context.Context, input ConversationSave, userID *uuid.UUID) error {
	title := input.Title
	if title == "" {
		title = "New Chat"
	}

	now := time.Now()
	conv := &domain.Conversation{
		ID:        input.ID,
		UserID:    userID,
		Title:     title,
		Turns:     input.Turns,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if conv.Turns == nil {
		conv.Turns = []domain.Turn{}
	}

	if err := s.convs.Upsert(ctx, conv); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// List returns all conversations owned by the user
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	return s.convs.ListByUser(ctx, userID)
}

// Get returns one conversation snapshot
func (s *ConversationService) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	return s.convs.Get(ctx, id)
}

// Migrate adopts guest-era snapshots into an account after login: existing
// ownerless rows are claimed, unknown ids are inserted fresh. Returns how
// many conversations the account gained.
func (s *ConversationService) Migrate(ctx context.Context, userID uuid.UUID, snapshots []ConversationSave) (int, error) {
	migrated := 0
	for _, snap := range snapshots {
		claimed, err := s.convs.Claim(ctx, snap.ID, userID)
		if err != nil {
			return migrated, err
		}
		if claimed {
			migrated++
			continue
		}

		_, err = s.convs.Get(ctx, snap.ID)
		if errors.Is(err, domain.ErrConversationNotFound) {
			if err := s.Save(ctx, snap, &userID); err != nil {
				return migrated, err
			}
			migrated++
			continue
		}
		if err != nil {
			return migrated, err
		}
		// Row exists and belongs to someone; leave it alone.
	}
	return migrated, nil
}

// Delete removes a conversation snapshot
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	return s.convs.Delete(ctx, id)
}
