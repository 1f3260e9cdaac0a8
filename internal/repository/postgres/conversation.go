package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rensmac/sparq-chat/internal/domain"
)

// ConversationRepository implements domain.ConversationRepository
type ConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{pool: db.Pool}
}

func (r *ConversationRepository) Upsert(ctx context.Context, conv *domain.Conversation) error {
	turns, err := json.Marshal(conv.Turns)
	if err != nil {
		return fmt.Errorf("failed to marshal turns: %w", err)
	}

	query := `
		INSERT INTO conversations (id, user_id, title, turns, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET user_id = COALESCE(conversations.user_id, EXCLUDED.user_id),
		    title = EXCLUDED.title,
		    turns = EXCLUDED.turns,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		turns,
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `
		SELECT id, user_id, title, turns, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`
	var c domain.Conversation
	var turns []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.UserID,
		&c.Title,
		&turns,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	if err := json.Unmarshal(turns, &c.Turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal turns: %w", err)
	}
	return &c, nil
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT id, user_id, title, turns, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var turns []byte
		if err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.Title,
			&turns,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if err := json.Unmarshal(turns, &c.Turns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turns: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, nil
}

func (r *ConversationRepository) Claim(ctx context.Context, id string, userID uuid.UUID) (bool, error) {
	query := `UPDATE conversations SET user_id = $1 WHERE id = $2 AND user_id IS NULL`
	tag, err := r.pool.Exec(ctx, query, userID, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim conversation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}
