package amqp

import (
	"context"
	"sync"

	"github.com/smartcity/simulator/internal/domain"
)

// NoopGateway satisfies domain.Gateway without a broker. Published data is
// discarded; the adjustment queue can still be fed programmatically, which
// the HTTP delivery layer and tests use.
type NoopGateway struct {
	mu      sync.Mutex
	pending []domain.LightAdjustment
}

func NewNoop() *NoopGateway { return &NoopGateway{} }

func (g *NoopGateway) PublishUpdate(domain.TrafficUpdate)     {}
func (g *NoopGateway) PublishAlerts([]domain.CongestionAlert) {}

// Inject stages an adjustment as if it arrived from the bus.
func (g *NoopGateway) Inject(adj domain.LightAdjustment) {
	g.mu.Lock()
	g.pending = append(g.pending, adj)
	g.mu.Unlock()
}

func (g *NoopGateway) Adjustments() []domain.LightAdjustment {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.pending
	g.pending = nil
	return out
}

func (g *NoopGateway) Health(context.Context) error { return nil }
func (g *NoopGateway) Close() error                 { return nil }
