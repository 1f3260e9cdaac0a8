package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rensmac/sparq-chat/internal/domain"
	"github.com/rensmac/sparq-chat/internal/llm"
	"github.com/rs/zerolog/log"
)

// ErrorPrefix tags the single in-band error fragment a failed generation
// yields on the chunk stream. The transport is a continuous text stream,
// so failures travel in-band rather than as a status code.
const ErrorPrefix = "ERROR_SERVER: "

// ErrorFragment formats err as an in-band stream fragment.
func ErrorFragment(err error) string {
	return ErrorPrefix + err.Error()
}

// Identity names a conversation owner for one protocol invocation.
// Registered accounts and anonymous visitors draw their keys from disjoint
// namespaces ("user_…" and "guest_…"), so they can never collide.
type Identity struct {
	// Key addresses the live session in the registry.
	Key string
	// QuotaKey addresses the daily counter: the account id for registered
	// users, the remote network address for guests.
	QuotaKey string
	// Ceiling is the identity's daily message allowance.
	Ceiling int
	// Durable selects the persistent counter backend. Guest counters are
	// process-local and reset on restart.
	Durable bool
}

// Sink receives completion chunks in production order. Returning an error
// tells the engine the consumer is gone; the upstream stream is canceled
// and whatever text accumulated so far is committed.
type Sink func(chunk string) error

// Engine implements the three turn protocols against the session registry.
// Every protocol runs under the target session's lock from first history
// mutation to final commit; streaming yields chunks to the sink but does
// not release the lock, trading throughput under a slow stream for a
// history that is never observed half-written.
type Engine struct {
	registry *Registry
	guests   Ledger
	users    Ledger
	client   llm.GenerationClient
}

func NewEngine(registry *Registry, guests, users Ledger, client llm.GenerationClient) *Engine {
	return &Engine{
		registry: registry,
		guests:   guests,
		users:    users,
		client:   client,
	}
}

func (e *Engine) ledgerFor(id Identity) Ledger {
	if id.Durable {
		return e.users
	}
	return e.guests
}

// Remaining reports how many messages the identity may still send today.
func (e *Engine) Remaining(ctx context.Context, id Identity) (int, error) {
	return e.ledgerFor(id).Remaining(ctx, id.QuotaKey, id.Ceiling)
}

// History returns a copy of the identity's committed history.
func (e *Engine) History(id Identity) []domain.Turn {
	return e.registry.Resolve(id.Key).History()
}

// RestoreHistory replaces the identity's live history with a previously
// persisted turn list.
func (e *Engine) RestoreHistory(id Identity, history []domain.Turn) {
	e.registry.Resolve(id.Key).Restore(history)
}

// Send appends the user's message, streams a fresh reply to sink and
// commits the completed exchange. The message spends one unit of quota;
// all other preconditions are checked before any history mutation.
func (e *Engine) Send(ctx context.Context, id Identity, text string, sink Sink) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyMessage
	}

	dec, err := e.ledgerFor(id).CheckAndConsume(ctx, id.QuotaKey, id.Ceiling)
	if err != nil {
		return fmt.Errorf("quota check: %w", err)
	}
	if !dec.Allowed {
		return &domain.QuotaExceededError{Ceiling: id.Ceiling, ResetAt: dec.ResetAt}
	}

	sess := e.registry.Resolve(id.Key)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	prior := append([]domain.Turn(nil), sess.history...)
	sess.history = append(sess.history, domain.Turn{Role: domain.RoleUser, Text: text})

	return e.generate(ctx, sess, prior, text, sink)
}

// Regenerate discards the most recent exchange and replays its user
// message for a fresh reply. Errors without mutating history when no
// completed exchange exists.
func (e *Engine) Regenerate(ctx context.Context, id Identity, sink Sink) error {
	sess := e.registry.Resolve(id.Key)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.history) < 2 {
		return domain.ErrNotEnoughTurns
	}

	text := sess.history[len(sess.history)-2].Text
	sess.history = sess.history[:len(sess.history)-2]

	prior := append([]domain.Turn(nil), sess.history...)
	sess.history = append(sess.history, domain.Turn{Role: domain.RoleUser, Text: text})

	return e.generate(ctx, sess, prior, text, sink)
}

// EditAndResend rewrites the user turn at exchangeIndex, discards that
// exchange and everything after it, and streams a reply to the new text.
// An index that does not address an existing user turn is rejected before
// any mutation.
func (e *Engine) EditAndResend(ctx context.Context, id Identity, exchangeIndex int, text string, sink Sink) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyMessage
	}

	sess := e.registry.Resolve(id.Key)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	offset := domain.ExchangeOffset(exchangeIndex)
	if exchangeIndex < 0 || offset >= len(sess.history) {
		return domain.ErrInvalidTurnIndex
	}

	sess.history = sess.history[:offset]

	prior := append([]domain.Turn(nil), sess.history...)
	sess.history = append(sess.history, domain.Turn{Role: domain.RoleUser, Text: text})

	return e.generate(ctx, sess, prior, text, sink)
}

// generate runs the shared streaming step. The caller has already appended
// the user turn and holds the session lock.
//
// Failure policy: the exchange is always committed as a pair. On a stream
// error or consumer disconnect the accumulated partial text (possibly
// empty) becomes the model turn, so history never ends on an unmatched
// user turn, and a single in-band error fragment is emitted.
func (e *Engine) generate(ctx context.Context, sess *Session, prior []domain.Turn, text string, sink Sink) error {
	full, streamErr := e.relay(ctx, prior, text, sink)

	sess.history = append(sess.history, domain.Turn{Role: domain.RoleModel, Text: full})

	if streamErr != nil {
		log.Warn().Err(streamErr).Int("partial_len", len(full)).Msg("Generation stream failed")
		// Best effort: the consumer may already be gone.
		_ = sink(ErrorFragment(streamErr))
		return streamErr
	}

	return nil
}

// relay forwards chunks from the generation client to the sink in
// production order, accumulating the full reply as it goes.
func (e *Engine) relay(ctx context.Context, history []domain.Turn, text string, sink Sink) (string, error) {
	stream, err := e.client.StartStream(ctx, history, text)
	if err != nil {
		return "", fmt.Errorf("start generation: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), fmt.Errorf("generation stream: %w", err)
		}
		if chunk == "" {
			continue
		}

		full.WriteString(chunk)
		if err := sink(chunk); err != nil {
			return full.String(), fmt.Errorf("deliver chunk: %w", err)
		}
	}
}
