package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rensmac/sparq-chat/internal/domain"
)

// UserRepository implements domain.UserRepository
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsVerified,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, password_hash, is_verified, otp_code, otp_created_at,
	daily_message_count, last_message_date, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.IsVerified,
		&u.OTPCode,
		&u.OTPCreatedAt,
		&u.DailyMessageCount,
		&u.LastMessageDate,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) SetOTP(ctx context.Context, id uuid.UUID, code string, at time.Time) error {
	query := `UPDATE users SET otp_code = $1, otp_created_at = $2 WHERE id = $3`
	tag, err := r.pool.Exec(ctx, query, code, at, id)
	if err != nil {
		return fmt.Errorf("failed to set otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET is_verified = TRUE, otp_code = NULL, otp_created_at = NULL WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// ConsumeDailyMessage spends one unit of the user's daily quota. The day
// reset, ceiling check and increment happen in one statement so that
// concurrent requests for the same account serialize in the database and
// can never both spend the last message.
func (r *UserRepository) ConsumeDailyMessage(ctx context.Context, id uuid.UUID, ceiling int) (int, bool, error) {
	query := `
		UPDATE users
		SET daily_message_count = CASE
				WHEN last_message_date = CURRENT_DATE THEN daily_message_count + 1
				ELSE 1
			END,
			last_message_date = CURRENT_DATE
		WHERE id = $1
		  AND (last_message_date IS DISTINCT FROM CURRENT_DATE OR daily_message_count < $2)
		RETURNING daily_message_count
	`
	var used int
	err := r.pool.QueryRow(ctx, query, id, ceiling).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the ceiling is reached or the user is gone; distinguish so
		// a deleted account is not reported as out of quota.
		exists, existsErr := r.userExists(ctx, id)
		if existsErr != nil {
			return 0, false, existsErr
		}
		if !exists {
			return 0, false, domain.ErrUserNotFound
		}
		return ceiling, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to consume daily message: %w", err)
	}
	return used, true, nil
}

func (r *UserRepository) userExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) MessagesUsedToday(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		SELECT CASE WHEN last_message_date = CURRENT_DATE THEN daily_message_count ELSE 0 END
		FROM users
		WHERE id = $1
	`
	var used int
	err := r.pool.QueryRow(ctx, query, id).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read daily counter: %w", err)
	}
	return used, nil
}
