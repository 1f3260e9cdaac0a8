package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rensmac/sparq-chat/internal/chat"
	"github.com/rensmac/sparq-chat/internal/domain"
	"github.com/rensmac/sparq-chat/internal/security"
	"github.com/rs/zerolog/log"
)

// OTPSender delivers verification codes; implemented by the SMTP mailer.
type OTPSender interface {
	SendOTP(to, username, code string) error
	IsConfigured() bool
}

// AuthService handles account lifecycle: registration, OTP verification,
// login and deletion.
type AuthService struct {
	users      domain.UserRepository
	validator  *security.CredentialValidator
	jwtManager *security.JWTManager
	mailer     OTPSender
	registry   *chat.Registry
	otpTTL     time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(
	users domain.UserRepository,
	jwtManager *security.JWTManager,
	mailer OTPSender,
	registry *chat.Registry,
	otpTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:      users,
		validator:  security.NewCredentialValidator(),
		jwtManager: jwtManager,
		mailer:     mailer,
		registry:   registry,
		otpTTL:     otpTTL,
	}
}

// RegisterResult reports a created account and whether the verification
// email went out.
type RegisterResult struct {
	User      *domain.User
	EmailSent bool
}

// Register creates an unverified account and sends the first OTP. Email
// delivery failure does not fail registration; the user can request a
// resend.
func (s *AuthService) Register(ctx context.Context, input domain.UserCreate) (*RegisterResult, error) {
	if err := s.validator.ValidateUsername(input.Username); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := s.validator.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	taken, err := s.users.UsernameExists(ctx, input.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return nil, errors.New("username already taken")
	}

	exists, err := s.users.EmailExists(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, errors.New("email already registered")
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		IsVerified:   false,
		CreatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	sent, err := s.issueOTP(ctx, user)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{User: user, EmailSent: sent}, nil
}

func (s *AuthService) issueOTP(ctx context.Context, user *domain.User) (bool, error) {
	code, err := security.GenerateOTP()
	if err != nil {
		return false, err
	}
	if err := s.users.SetOTP(ctx, user.ID, code, time.Now()); err != nil {
		return false, err
	}

	if !s.mailer.IsConfigured() {
		log.Warn().Str("user", user.Username).Msg("Mailer not configured, skipping OTP email")
		return false, nil
	}
	if err := s.mailer.SendOTP(user.Email, user.Username, code); err != nil {
		log.Error().Err(err).Str("user", user.Username).Msg("Failed to send OTP email")
		return false, nil
	}
	return true, nil
}

// VerifyOTP checks the code, marks the account verified and logs it in.
func (s *AuthService) VerifyOTP(ctx context.Context, userID uuid.UUID, code string) (*domain.TokenPair, *domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, nil, domain.ErrUserNotFound
	}

	if user.OTPCode == nil || user.OTPCreatedAt == nil {
		return nil, nil, domain.ErrInvalidOTP
	}
	if time.Since(*user.OTPCreatedAt) > s.otpTTL {
		return nil, nil, domain.ErrInvalidOTP
	}
	if *user.OTPCode != code {
		return nil, nil, domain.ErrInvalidOTP
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, nil, err
	}
	user.IsVerified = true

	tokens, err := s.tokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return tokens, user, nil
}

// ResendOTP issues a fresh code for an unverified account.
func (s *AuthService) ResendOTP(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return domain.ErrUserNotFound
	}
	if user.IsVerified {
		return errors.New("account already verified")
	}

	sent, err := s.issueOTP(ctx, user)
	if err != nil {
		return err
	}
	if !sent {
		return errors.New("failed to send verification email")
	}
	return nil
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, input domain.UserLogin) (*domain.TokenPair, *domain.User, error) {
	user, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(user.PasswordHash, input.Password) {
		return nil, nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.tokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return tokens, user, nil
}

// Refresh exchanges a refresh token for a new token pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	userID, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	return s.tokenPair(user)
}

func (s *AuthService) tokenPair(user *domain.User) (*domain.TokenPair, error) {
	access, refresh, expiresIn, err := s.jwtManager.GenerateTokenPair(user.ID, user.Username, user.IsVerified)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
	}, nil
}

// Logout drops the user's live chat session.
func (s *AuthService) Logout(userID uuid.UUID) {
	s.registry.Discard(chat.UserKey(userID))
}

// DeleteAccount removes the account and its live session. Persisted
// conversations go with the user row via the FK cascade.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	s.registry.Discard(chat.UserKey(userID))

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}
