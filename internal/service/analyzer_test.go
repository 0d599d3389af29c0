package service

import (
	"math"
	"testing"

	"github.com/smartcity/simulator/internal/domain"
)

func ingestConstant(a *FlowAnalyzer, stat LaneStat, from, to uint64) {
	for tick := from; tick <= to; tick++ {
		a.Ingest(tick, []LaneStat{stat})
	}
}

// TestPredictConvergesOnConstantInput verifies the weighted average of a
// constant series is that constant.
func TestPredictConvergesOnConstantInput(t *testing.T) {
	net := testGrid(t)
	a := NewFlowAnalyzer(testConfig(), net)
	lane := net.Lanes()[0]

	ingestConstant(a, LaneStat{Lane: lane.ID, Intersection: lane.To, Occupancy: 6, Capacity: 10}, 1, 8)

	predicted, ok := a.Predict(lane.ID)
	if !ok {
		t.Fatal("Expected a prediction after ingesting samples")
	}
	if math.Abs(predicted-6) > 1e-9 {
		t.Errorf("Expected prediction 6, got %v", predicted)
	}

	if _, ok := a.Predict(net.Lanes()[1].ID); ok {
		t.Error("Expected no prediction for a lane without history")
	}
}

func TestPredictWeighsRecentSamplesHigher(t *testing.T) {
	net := testGrid(t)
	a := NewFlowAnalyzer(testConfig(), net)
	lane := net.Lanes()[0]

	stat := LaneStat{Lane: lane.ID, Intersection: lane.To, Capacity: 10}
	stat.Occupancy = 2
	a.Ingest(1, []LaneStat{stat})
	stat.Occupancy = 8
	a.Ingest(2, []LaneStat{stat})

	predicted, _ := a.Predict(lane.ID)
	if predicted <= 5 {
		t.Errorf("Expected the newer sample to dominate, got %v", predicted)
	}
	if predicted >= 8 {
		t.Errorf("Expected the older sample to still contribute, got %v", predicted)
	}
}

// TestHistoryWindowEviction verifies the per-lane window stays bounded and
// drops oldest samples first.
func TestHistoryWindowEviction(t *testing.T) {
	net := testGrid(t)
	cfg := testConfig() // window 5
	a := NewFlowAnalyzer(cfg, net)
	lane := net.Lanes()[0]

	ingestConstant(a, LaneStat{Lane: lane.ID, Intersection: lane.To, Occupancy: 1, Capacity: 10}, 1, 12)

	window := a.history[lane.ID]
	if len(window) != cfg.HistoryWindow {
		t.Fatalf("Expected window of %d samples, got %d", cfg.HistoryWindow, len(window))
	}
	if window[0].tick != 8 || window[len(window)-1].tick != 12 {
		t.Errorf("Expected ticks 8..12 retained, got %d..%d", window[0].tick, window[len(window)-1].tick)
	}
}

// TestRecommendBand verifies the analyzer extends green above the high-water
// mark, stays quiet inside the band, and reduces below the low-water mark
// only while a positive adjustment remains.
func TestRecommendBand(t *testing.T) {
	net := testGrid(t)
	a := NewFlowAnalyzer(testConfig(), net)
	lane := net.Lanes()[0]
	noAdjustment := func(domain.IntersectionID) int { return 0 }
	positiveAdjustment := func(domain.IntersectionID) int { return 4 }

	// Above high water (8 of 10): predicted 9 -> +2 seconds.
	ingestConstant(a, LaneStat{Lane: lane.ID, Intersection: lane.To, Occupancy: 9, Capacity: 10}, 1, 5)
	recs := a.Recommend(5, noAdjustment)
	if len(recs) != 1 {
		t.Fatalf("Expected one recommendation, got %d", len(recs))
	}
	if recs[0].Intersection != lane.To || recs[0].AddSeconds != 2 {
		t.Errorf("Expected +2 for intersection %d, got %+v", lane.To, recs[0])
	}

	// Inside the band: silence.
	a = NewFlowAnalyzer(testConfig(), net)
	ingestConstant(a, LaneStat{Lane: lane.ID, Intersection: lane.To, Occupancy: 5, Capacity: 10}, 1, 5)
	if recs := a.Recommend(5, positiveAdjustment); len(recs) != 0 {
		t.Errorf("Expected no recommendation inside the band, got %v", recs)
	}

	// Below low water (3 of 10): reduce, but only with a positive adjustment
	// to wind back.
	a = NewFlowAnalyzer(testConfig(), net)
	ingestConstant(a, LaneStat{Lane: lane.ID, Intersection: lane.To, Occupancy: 1, Capacity: 10}, 1, 5)
	if recs := a.Recommend(5, noAdjustment); len(recs) != 0 {
		t.Errorf("Expected no reduction without a standing adjustment, got %v", recs)
	}
	recs = a.Recommend(5, positiveAdjustment)
	if len(recs) != 1 || recs[0].AddSeconds != -4 {
		t.Errorf("Expected one -4 recommendation, got %v", recs)
	}
}

func TestRecommendClampsPerTick(t *testing.T) {
	net := testGrid(t)
	a := NewFlowAnalyzer(testConfig(), net)
	lane := net.Lanes()[0]

	// Predicted excess of 2 at gain 2 wants +4; occupancy 10 of 10 pushes
	// the raw value to exactly the per-tick cap.
	ingestConstant(a, LaneStat{Lane: lane.ID, Intersection: lane.To, Occupancy: 10, Capacity: 10}, 1, 5)
	recs := a.Recommend(5, func(domain.IntersectionID) int { return 0 })
	if len(recs) != 1 {
		t.Fatalf("Expected one recommendation, got %d", len(recs))
	}
	if recs[0].AddSeconds > testConfig().RecommendMaxPerTick {
		t.Errorf("Recommendation %+d exceeds the per-tick cap", recs[0].AddSeconds)
	}
}

// TestAlerts verifies lane and intersection congestion thresholds.
func TestAlerts(t *testing.T) {
	net := testGrid(t)
	a := NewFlowAnalyzer(testConfig(), net)
	approaches := net.Incoming(5)

	stats := make([]LaneStat, 0, len(approaches))
	for _, lane := range approaches {
		stats = append(stats, LaneStat{Lane: lane.ID, Intersection: 5, Occupancy: 9, Capacity: 10})
	}

	alerts := a.Alerts(7, stats)
	var laneAlerts, nodeAlerts int
	for _, alert := range alerts {
		if alert.Tick != 7 {
			t.Errorf("Expected alert tick 7, got %d", alert.Tick)
		}
		if alert.Lane != nil {
			laneAlerts++
		}
		if alert.Intersection != nil {
			nodeAlerts++
		}
	}
	if laneAlerts != len(approaches) {
		t.Errorf("Expected %d lane alerts, got %d", len(approaches), laneAlerts)
	}
	if nodeAlerts != 1 {
		t.Errorf("Expected one intersection alert, got %d", nodeAlerts)
	}

	// Below thresholds nothing fires.
	for i := range stats {
		stats[i].Occupancy = 3
	}
	if alerts := a.Alerts(8, stats); len(alerts) != 0 {
		t.Errorf("Expected no alerts at low occupancy, got %d", len(alerts))
	}
}
