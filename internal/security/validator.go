package security

import (
	"regexp"
	"strings"
)

// CredentialValidator checks registration input beyond what struct tags
// can express: username shape, password strength and throwaway email
// domains.
type CredentialValidator struct {
	usernamePattern *regexp.Regexp
	blockedDomains  map[string]struct{}
}

// NewCredentialValidator creates a new credential validator
func NewCredentialValidator() *CredentialValidator {
	blocked := map[string]struct{}{
		"test.com":    {},
		"fake.com":    {},
		"example.com": {},
	}
	return &CredentialValidator{
		usernamePattern: regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`),
		blockedDomains:  blocked,
	}
}

// ValidationError carries a user-facing validation message
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateUsername checks the username shape
func (v *CredentialValidator) ValidateUsername(username string) error {
	if !v.usernamePattern.MatchString(username) {
		return &ValidationError{Message: "username must be 3-20 characters, letters, digits and underscores only"}
	}
	return nil
}

// ValidateEmail rejects addresses on throwaway domains. Format validation
// happens at the handler via struct tags.
func (v *CredentialValidator) ValidateEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return &ValidationError{Message: "invalid email address"}
	}
	domain := strings.ToLower(email[at+1:])
	if _, blocked := v.blockedDomains[domain]; blocked {
		return &ValidationError{Message: "email domain is not allowed"}
	}
	return nil
}

// ValidatePassword enforces minimum password strength
func (v *CredentialValidator) ValidatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{Message: "password must be at least 8 characters"}
	}

	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasDigit = true
		}
	}

	switch {
	case !hasUpper:
		return &ValidationError{Message: "password must contain an uppercase letter"}
	case !hasLower:
		return &ValidationError{Message: "password must contain a lowercase letter"}
	case !hasDigit:
		return &ValidationError{Message: "password must contain a digit"}
	}

	return nil
}
