package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyMessage is returned when a turn request carries no text.
	// Rejected before any history mutation.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNotEnoughTurns is returned by regenerate when the history does not
	// contain a completed exchange to redo.
	ErrNotEnoughTurns = errors.New("not enough turns to regenerate")

	// ErrInvalidTurnIndex is returned by edit-and-resend when the exchange
	// index does not address an existing user turn.
	ErrInvalidTurnIndex = errors.New("turn index out of range")

	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrInvalidOTP           = errors.New("invalid or expired verification code")
)

// QuotaExceededError reports a denied message with the time the daily
// counter resets.
type QuotaExceededError struct {
	Ceiling int
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily limit of %d messages reached, resets in %s",
		e.Ceiling, time.Until(e.ResetAt).Round(time.Minute))
}
