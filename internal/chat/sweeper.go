package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper evicts idle sessions from the registry on a fixed interval.
// Eviction only costs a structural-lock scan, so it never delays an
// in-flight turn.
type Sweeper struct {
	registry *Registry
	ttl      time.Duration
	interval time.Duration
}

func NewSweeper(registry *Registry, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		registry: registry,
		ttl:      ttl,
		interval: interval,
	}
}

// Run sweeps until ctx is canceled. Intended to run as a goroutine for
// the lifetime of the process.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.registry.Sweep(s.ttl); removed > 0 {
				log.Debug().Int("removed", removed).Msg("Evicted idle chat sessions")
			}
		}
	}
}
