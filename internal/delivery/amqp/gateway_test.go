package amqp

import (
	"testing"

	"github.com/smartcity/simulator/internal/domain"
)

func TestDecodeAdjustment(t *testing.T) {
	adj, err := DecodeAdjustment([]byte(`{"intersection_id": 5, "add_seconds_green": -3}`))
	if err != nil {
		t.Fatalf("DecodeAdjustment failed: %v", err)
	}
	if adj.IntersectionID != 5 || adj.AddSecondsGreen != -3 {
		t.Errorf("Unexpected decode result %+v", adj)
	}
}

func TestDecodeAdjustmentMalformed(t *testing.T) {
	cases := []string{
		`{not json`,
		`[]`,
		`"just a string"`,
	}
	for _, body := range cases {
		if _, err := DecodeAdjustment([]byte(body)); err == nil {
			t.Errorf("Expected an error for %q", body)
		}
	}
}

// TestNoopGatewayDrain verifies Adjustments hands back staged commands
// exactly once.
func TestNoopGatewayDrain(t *testing.T) {
	g := NewNoop()
	g.Inject(domain.LightAdjustment{IntersectionID: 1, AddSecondsGreen: 2})
	g.Inject(domain.LightAdjustment{IntersectionID: 2, AddSecondsGreen: -1})

	first := g.Adjustments()
	if len(first) != 2 {
		t.Fatalf("Expected 2 staged commands, got %d", len(first))
	}
	if second := g.Adjustments(); len(second) != 0 {
		t.Errorf("Expected the queue drained, got %d", len(second))
	}

	// Published data is discarded without error.
	g.PublishUpdate(domain.TrafficUpdate{Tick: 1})
	g.PublishAlerts([]domain.CongestionAlert{{Tick: 1}})
	if err := g.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
