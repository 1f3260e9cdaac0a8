package llm

import (
	"context"

	"github.com/rensmac/sparq-chat/internal/domain"
)

// GenerationClient is the capability the turn engine depends on: start a
// streaming completion for a new message given the prior committed history.
type GenerationClient interface {
	// StartStream begins a completion. history is the conversational context
	// and must not include the new message. The returned stream is finite
	// and not restartable.
	StartStream(ctx context.Context, history []domain.Turn, text string) (Stream, error)
}

// Stream yields completion text chunk by chunk. Recv returns io.EOF after
// the final chunk. Close releases the underlying transport and cancels an
// unfinished stream; it is safe to call after Recv returned an error.
type Stream interface {
	Recv() (string, error)
	Close()
}
