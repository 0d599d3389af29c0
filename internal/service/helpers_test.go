package service

import (
	"testing"
	"time"

	"github.com/smartcity/simulator/internal/config"
	"github.com/smartcity/simulator/internal/domain"
	"github.com/smartcity/simulator/internal/network"
)

// testConfig returns a deterministic configuration with short phases so
// tests cover full light cycles in few ticks.
func testConfig() *config.Config {
	return &config.Config{
		Env:  "test",
		Port: "0",

		TickInterval: 10 * time.Millisecond,
		LaneCapacity: 10,

		SpawnProbability: 0.3,

		GreenBaseTicks: 4,
		YellowTicks:    1,
		AllRedTicks:    1,
		GreenMinTicks:  2,
		GreenMaxTicks:  8,
		AdjustClampMin: -6,
		AdjustClampMax: 6,

		HistoryWindow:       5,
		HalfLifeTicks:       5,
		HighWaterRatio:      0.8,
		LowWaterRatio:       0.3,
		RecommendGain:       2.0,
		RecommendMaxPerTick: 6,
		AlertLaneRatio:      0.75,
		AlertNodeRatio:      0.8,

		AccidentProbability: 0,
		BaseBlockTicks:      2,

		ReplanOccupancyRatio: 0.75,
		MaxReplanFailures:    3,

		PublishTimeout:   100 * time.Millisecond,
		PublishRetries:   1,
		AdjustmentBuffer: 16,
		RandomSeed:       1,
	}
}

// testGrid builds the default city grid with the test configuration's lane
// capacity.
func testGrid(t *testing.T) *network.Network {
	t.Helper()
	net, err := network.DefaultGrid(10)
	if err != nil {
		t.Fatalf("DefaultGrid failed: %v", err)
	}
	return net
}

// laneStatesFor mirrors the simulation's lane state construction for tests
// that exercise components below the Simulation facade.
func laneStatesFor(net *network.Network) map[domain.LaneID]*laneState {
	lanes := make(map[domain.LaneID]*laneState, len(net.Lanes()))
	for _, lane := range net.Lanes() {
		lanes[lane.ID] = newLaneState(lane)
	}
	return lanes
}
