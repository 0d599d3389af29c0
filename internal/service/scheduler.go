package service

import (
	"context"
	"log"
	"time"
)

// Run drives the fixed-interval tick loop until the context is cancelled.
// Cancellation is honoured only between ticks; a tick in flight always
// completes, so shared state is consistent at shutdown.
func (s *Simulation) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	log.Printf("simulation: starting, tick interval %v", s.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("simulation: stopped after tick %d", s.tick)
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			s.Tick()
			if elapsed := time.Since(start); elapsed > s.cfg.TickInterval {
				log.Printf("simulation: tick %d overran budget (%v > %v)", s.tick, elapsed, s.cfg.TickInterval)
			}
		}
	}
}
