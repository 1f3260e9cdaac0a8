package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User represents a registered account
type User struct {
	ID                uuid.UUID  `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	IsVerified        bool       `json:"is_verified"`
	OTPCode           *string    `json:"-"`
	OTPCreatedAt      *time.Time `json:"-"`
	DailyMessageCount int        `json:"-"`
	LastMessageDate   *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
}

// DailyLimit returns the message ceiling for the user's verification tier.
func (u *User) DailyLimit(verified, unverified int) int {
	if u.IsVerified {
		return verified
	}
	return unverified
}

// UserCreate represents registration input
type UserCreate struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UserLogin represents login credentials
type UserLogin struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenPair represents a JWT token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	SetOTP(ctx context.Context, id uuid.UUID, code string, at time.Time) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ConsumeDailyMessage atomically increments the user's daily counter,
	// resetting it first when the stored day is stale. It reports the count
	// after the increment and whether the ceiling allowed the message.
	ConsumeDailyMessage(ctx context.Context, id uuid.UUID, ceiling int) (used int, allowed bool, err error)

	// MessagesUsedToday reads the current day's counter without mutating it.
	MessagesUsedToday(ctx context.Context, id uuid.UUID) (int, error)
}
