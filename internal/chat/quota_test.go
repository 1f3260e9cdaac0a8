package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rensmac/sparq-chat/internal/domain"
)

func TestMemoryLedger_ConsumeToCeiling(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		dec, err := l.CheckAndConsume(ctx, "203.0.113.7", 3)
		if err != nil {
			t.Fatal(err)
		}
		if !dec.Allowed {
			t.Fatalf("message %d denied below ceiling", i+1)
		}
		if dec.Remaining != 3-(i+1) {
			t.Errorf("message %d remaining = %d, want %d", i+1, dec.Remaining, 3-(i+1))
		}
	}

	dec, err := l.CheckAndConsume(ctx, "203.0.113.7", 3)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed {
		t.Error("message over ceiling must be denied")
	}
	if dec.Remaining != 0 {
		t.Errorf("denied remaining = %d, want 0", dec.Remaining)
	}
	if dec.ResetAt.IsZero() {
		t.Error("denied decision must carry the reset time")
	}
}

func TestMemoryLedger_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	if dec, _ := l.CheckAndConsume(ctx, "203.0.113.7", 1); !dec.Allowed {
		t.Fatal("first key denied")
	}
	if dec, _ := l.CheckAndConsume(ctx, "203.0.113.7", 1); dec.Allowed {
		t.Fatal("first key should be exhausted")
	}
	if dec, _ := l.CheckAndConsume(ctx, "198.51.100.9", 1); !dec.Allowed {
		t.Error("second key must have its own counter")
	}
}

func TestMemoryLedger_DayRollover(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 23, 50, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if dec, _ := l.CheckAndConsume(ctx, "203.0.113.7", 2); !dec.Allowed {
			t.Fatalf("message %d denied", i+1)
		}
	}
	if dec, _ := l.CheckAndConsume(ctx, "203.0.113.7", 2); dec.Allowed {
		t.Fatal("ceiling should be reached before midnight")
	}

	// Crossing UTC midnight resets the counter.
	now = time.Date(2025, 6, 2, 0, 5, 0, 0, time.UTC)
	dec, err := l.CheckAndConsume(ctx, "203.0.113.7", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allowed {
		t.Error("counter must reset on the next UTC day")
	}
	if dec.Remaining != 1 {
		t.Errorf("remaining after rollover = %d, want 1", dec.Remaining)
	}
}

func TestMemoryLedger_Remaining(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	remaining, err := l.Remaining(ctx, "203.0.113.7", 5)
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 5 {
		t.Errorf("untouched key remaining = %d, want 5", remaining)
	}

	l.CheckAndConsume(ctx, "203.0.113.7", 5)
	if remaining, _ = l.Remaining(ctx, "203.0.113.7", 5); remaining != 4 {
		t.Errorf("remaining = %d, want 4", remaining)
	}

	// A lowered ceiling never reports negative remaining.
	if remaining, _ = l.Remaining(ctx, "203.0.113.7", 0); remaining != 0 {
		t.Errorf("remaining with zero ceiling = %d, want 0", remaining)
	}
}

func TestMemoryLedger_ConcurrentLastMessage(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	// Spend all but one unit.
	for i := 0; i < 4; i++ {
		l.CheckAndConsume(ctx, "203.0.113.7", 5)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := l.CheckAndConsume(ctx, "203.0.113.7", 5)
			if err == nil && dec.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Errorf("%d goroutines won the last message, want exactly 1", allowed)
	}
}

// countingUserRepo implements just enough of domain.UserRepository for the
// persistent ledger.
type countingUserRepo struct {
	used    int
	ceiling int
	failErr error
}

func (r *countingUserRepo) ConsumeDailyMessage(_ context.Context, _ uuid.UUID, ceiling int) (int, bool, error) {
	if r.failErr != nil {
		return 0, false, r.failErr
	}
	if r.used >= ceiling {
		return r.used, false, nil
	}
	r.used++
	return r.used, true, nil
}

func (r *countingUserRepo) MessagesUsedToday(context.Context, uuid.UUID) (int, error) {
	if r.failErr != nil {
		return 0, r.failErr
	}
	return r.used, nil
}

func (r *countingUserRepo) Create(context.Context, *domain.User) error { return nil }
func (r *countingUserRepo) GetByID(context.Context, uuid.UUID) (*domain.User, error) {
	return nil, nil
}
func (r *countingUserRepo) GetByUsername(context.Context, string) (*domain.User, error) {
	return nil, nil
}
func (r *countingUserRepo) UsernameExists(context.Context, string) (bool, error) { return false, nil }
func (r *countingUserRepo) EmailExists(context.Context, string) (bool, error)    { return false, nil }
func (r *countingUserRepo) SetOTP(context.Context, uuid.UUID, string, time.Time) error {
	return nil
}
func (r *countingUserRepo) MarkVerified(context.Context, uuid.UUID) error { return nil }
func (r *countingUserRepo) Delete(context.Context, uuid.UUID) error       { return nil }

func TestPersistentLedger_ConsumeAndRemaining(t *testing.T) {
	repo := &countingUserRepo{}
	l := NewPersistentLedger(repo)
	ctx := context.Background()
	key := uuid.New().String()

	dec, err := l.CheckAndConsume(ctx, key, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allowed || dec.Remaining != 1 {
		t.Errorf("first consume = %+v, want allowed with 1 remaining", dec)
	}

	l.CheckAndConsume(ctx, key, 2)
	dec, err = l.CheckAndConsume(ctx, key, 2)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed {
		t.Error("consume over ceiling must be denied")
	}

	remaining, err := l.Remaining(ctx, key, 2)
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}

func TestPersistentLedger_InvalidKey(t *testing.T) {
	l := NewPersistentLedger(&countingUserRepo{})

	if _, err := l.CheckAndConsume(context.Background(), "not-a-uuid", 5); err == nil {
		t.Error("malformed quota key must be rejected")
	}
	if _, err := l.Remaining(context.Background(), "not-a-uuid", 5); err == nil {
		t.Error("malformed quota key must be rejected")
	}
}

func TestPersistentLedger_BackendFailureIsNotAllowed(t *testing.T) {
	boom := errors.New("connection refused")
	l := NewPersistentLedger(&countingUserRepo{failErr: boom})

	dec, err := l.CheckAndConsume(context.Background(), uuid.New().String(), 5)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the backend failure", err)
	}
	if dec.Allowed {
		t.Error("a backend failure must never come back as an allowed decision")
	}
}

func TestNextMidnight(t *testing.T) {
	at := time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)
	want := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if got := nextMidnight(at); !got.Equal(want) {
		t.Errorf("nextMidnight = %v, want %v", got, want)
	}

	// Non-UTC input normalizes to the UTC day boundary.
	loc := time.FixedZone("UTC+5", 5*3600)
	at = time.Date(2025, 6, 2, 3, 0, 0, 0, loc) // 22:00 June 1 UTC
	if got := nextMidnight(at); !got.Equal(want) {
		t.Errorf("nextMidnight across zones = %v, want %v", got, want)
	}
}
