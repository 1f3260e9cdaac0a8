package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rensmac/sparq-chat/internal/domain"
)

// Decision is the outcome of a quota consumption attempt.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Ledger tracks per-identity daily message counters. CheckAndConsume must
// be atomic per key: two concurrent calls with one message of quota left
// must not both succeed. A backend failure is reported as an error, never
// as an allowed decision.
type Ledger interface {
	CheckAndConsume(ctx context.Context, key string, ceiling int) (Decision, error)
	Remaining(ctx context.Context, key string, ceiling int) (int, error)
}

// nextMidnight returns the start of the next UTC day, the moment daily
// counters reset.
func nextMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

type dayCounter struct {
	count int
	day   time.Time
}

// MemoryLedger is the volatile quota backend for anonymous visitors,
// keyed by network address. Counters live only as long as the process;
// losing them on restart is acceptable for guests.
type MemoryLedger struct {
	mu       sync.Mutex
	counters map[string]dayCounter
	now      func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		counters: make(map[string]dayCounter),
		now:      time.Now,
	}
}

func (l *MemoryLedger) CheckAndConsume(_ context.Context, key string, ceiling int) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c := l.counters[key]
	if !sameDay(c.day, now) {
		c = dayCounter{day: now}
	}

	if c.count >= ceiling {
		return Decision{Allowed: false, Remaining: 0, ResetAt: nextMidnight(now)}, nil
	}

	c.count++
	l.counters[key] = c

	return Decision{Allowed: true, Remaining: ceiling - c.count, ResetAt: nextMidnight(now)}, nil
}

func (l *MemoryLedger) Remaining(_ context.Context, key string, ceiling int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || !sameDay(c.day, now) {
		return ceiling, nil
	}

	remaining := ceiling - c.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// PersistentLedger is the durable quota backend for registered accounts.
// The day-reset and check-and-increment happen in a single statement in
// the user repository, so concurrent requests for one account cannot both
// spend the last message.
type PersistentLedger struct {
	users domain.UserRepository
	now   func() time.Time
}

func NewPersistentLedger(users domain.UserRepository) *PersistentLedger {
	return &PersistentLedger{
		users: users,
		now:   time.Now,
	}
}

func (l *PersistentLedger) CheckAndConsume(ctx context.Context, key string, ceiling int) (Decision, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return Decision{}, fmt.Errorf("invalid quota key %q: %w", key, err)
	}

	used, allowed, err := l.users.ConsumeDailyMessage(ctx, id, ceiling)
	if err != nil {
		return Decision{}, fmt.Errorf("consume daily message: %w", err)
	}

	resetAt := nextMidnight(l.now())
	if !allowed {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining, ResetAt: resetAt}, nil
}

func (l *PersistentLedger) Remaining(ctx context.Context, key string, ceiling int) (int, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return 0, fmt.Errorf("invalid quota key %q: %w", key, err)
	}

	used, err := l.users.MessagesUsedToday(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("read daily counter: %w", err)
	}

	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
