package chat

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// UserKey builds the session key for a registered account. The "user_"
// and "guest_" prefixes keep the two identity namespaces disjoint.
func UserKey(id uuid.UUID) string {
	return "user_" + id.String()
}

// GuestKey builds the session key for an anonymous visitor token.
func GuestKey(token string) string {
	return "guest_" + token
}

// NewGuestToken mints a random token for an anonymous visitor, carried in
// their session cookie.
func NewGuestToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the platform entropy source is broken
		panic(err)
	}
	return hex.EncodeToString(b)
}

// UserIdentity builds the turn identity for a registered account.
func UserIdentity(id uuid.UUID, ceiling int) Identity {
	return Identity{
		Key:      UserKey(id),
		QuotaKey: id.String(),
		Ceiling:  ceiling,
		Durable:  true,
	}
}

// GuestIdentity builds the turn identity for an anonymous visitor. The
// quota is keyed by network address, not by the cookie token, so clearing
// cookies does not mint fresh quota.
func GuestIdentity(token, remoteAddr string, ceiling int) Identity {
	return Identity{
		Key:      GuestKey(token),
		QuotaKey: remoteAddr,
		Ceiling:  ceiling,
		Durable:  false,
	}
}
