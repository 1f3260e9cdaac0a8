package chat

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestIdentityKeys_DisjointNamespaces(t *testing.T) {
	id := uuid.New()
	userKey := UserKey(id)
	guestKey := GuestKey(id.String())

	if !strings.HasPrefix(userKey, "user_") {
		t.Errorf("user key = %q", userKey)
	}
	if !strings.HasPrefix(guestKey, "guest_") {
		t.Errorf("guest key = %q", guestKey)
	}
	// Even with identical raw material the two namespaces never collide.
	if userKey == guestKey {
		t.Error("user and guest keys must differ")
	}
}

func TestNewGuestToken(t *testing.T) {
	a := NewGuestToken()
	b := NewGuestToken()

	if len(a) != 32 {
		t.Errorf("token length = %d, want 32 hex chars", len(a))
	}
	if a == b {
		t.Error("tokens must be random")
	}
}

func TestUserIdentity(t *testing.T) {
	id := uuid.New()
	identity := UserIdentity(id, 30)

	if identity.Key != "user_"+id.String() {
		t.Errorf("key = %q", identity.Key)
	}
	if identity.QuotaKey != id.String() {
		t.Errorf("quota key = %q, want the account id", identity.QuotaKey)
	}
	if identity.Ceiling != 30 {
		t.Errorf("ceiling = %d, want 30", identity.Ceiling)
	}
	if !identity.Durable {
		t.Error("account quota must use the durable backend")
	}
}

func TestGuestIdentity(t *testing.T) {
	identity := GuestIdentity("abc123", "203.0.113.7", 10)

	if identity.Key != "guest_abc123" {
		t.Errorf("key = %q", identity.Key)
	}
	// The quota follows the network address, not the cookie token, so
	// clearing cookies does not mint fresh quota.
	if identity.QuotaKey != "203.0.113.7" {
		t.Errorf("quota key = %q, want the network address", identity.QuotaKey)
	}
	if identity.Durable {
		t.Error("guest quota must stay in the volatile backend")
	}
}
