package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/smartcity/simulator/internal/config"
	"github.com/smartcity/simulator/internal/domain"
	"github.com/smartcity/simulator/internal/network"
	"github.com/smartcity/simulator/pkg/utils"
)

// flowSample is one tick's observation of a lane.
type flowSample struct {
	tick      uint64
	occupancy int
	avgWait   float64
}

// FlowAnalyzer keeps a bounded per-lane history of occupancy and waiting
// time, predicts near-future occupancy with an exponentially-weighted moving
// average, and issues green-duration recommendations when predictions leave
// the configured band. It is single-owner: only the scheduler touches it.
type FlowAnalyzer struct {
	cfg *config.Config
	net *network.Network

	history  map[domain.LaneID][]flowSample
	lastTick uint64
}

func NewFlowAnalyzer(cfg *config.Config, net *network.Network) *FlowAnalyzer {
	return &FlowAnalyzer{
		cfg:     cfg,
		net:     net,
		history: make(map[domain.LaneID][]flowSample),
	}
}

// Ingest appends this tick's lane statistics, evicting the oldest sample of
// any lane whose window is full.
func (a *FlowAnalyzer) Ingest(tick uint64, stats []LaneStat) {
	a.lastTick = tick
	for _, stat := range stats {
		window := append(a.history[stat.Lane], flowSample{
			tick:      tick,
			occupancy: stat.Occupancy,
			avgWait:   stat.AverageWait,
		})
		if len(window) > a.cfg.HistoryWindow {
			window = window[len(window)-a.cfg.HistoryWindow:]
		}
		a.history[stat.Lane] = window
	}
}

// Predict estimates the lane's near-future occupancy: a weighted average of
// the window where a sample's weight halves every HalfLifeTicks of age.
// Constant input therefore predicts that constant.
func (a *FlowAnalyzer) Predict(lane domain.LaneID) (float64, bool) {
	window := a.history[lane]
	if len(window) == 0 {
		return 0, false
	}

	var weighted, total float64
	for _, s := range window {
		w := utils.DecayWeight(float64(a.lastTick-s.tick), a.cfg.HalfLifeTicks)
		weighted += w * float64(s.occupancy)
		total += w
	}
	return weighted / total, true
}

// Predictions returns the current per-lane estimates in lane order.
func (a *FlowAnalyzer) Predictions() []domain.LanePrediction {
	predictions := make([]domain.LanePrediction, 0, len(a.history))
	for _, lane := range a.net.Lanes() {
		if predicted, ok := a.Predict(lane.ID); ok {
			predictions = append(predictions, domain.LanePrediction{
				Lane:               lane.ID,
				PredictedOccupancy: utils.RoundTo(predicted, 3),
			})
		}
	}
	return predictions
}

// Recommend emits green-duration changes for intersections whose approach
// lanes are predicted outside the occupancy band. Above the high-water mark
// the green is extended proportionally to the excess; below the low-water
// mark, and only while the intersection still carries a positive adjustment,
// a symmetric reduction is emitted. Inside the band the analyzer stays quiet.
func (a *FlowAnalyzer) Recommend(tick uint64, adjustmentOf func(domain.IntersectionID) int) []domain.Recommendation {
	var recs []domain.Recommendation
	for _, lane := range a.net.Lanes() {
		predicted, ok := a.Predict(lane.ID)
		if !ok {
			continue
		}
		high := a.cfg.HighWaterRatio * float64(lane.Capacity)
		low := a.cfg.LowWaterRatio * float64(lane.Capacity)

		switch {
		case predicted > high:
			seconds := int(math.Round((predicted - high) * a.cfg.RecommendGain))
			seconds = utils.ClampInt(seconds, 1, a.cfg.RecommendMaxPerTick)
			recs = append(recs, domain.Recommendation{
				Intersection: lane.To,
				AddSeconds:   seconds,
				Tick:         tick,
			})
		case predicted < low && adjustmentOf(lane.To) > 0:
			seconds := int(math.Round((low - predicted) * a.cfg.RecommendGain))
			seconds = utils.ClampInt(seconds, 1, a.cfg.RecommendMaxPerTick)
			recs = append(recs, domain.Recommendation{
				Intersection: lane.To,
				AddSeconds:   -seconds,
				Tick:         tick,
			})
		}
	}
	return recs
}

// Alerts flags lanes and intersections whose current occupancy crosses the
// alert thresholds. These are advisory and published on the congestion queue.
func (a *FlowAnalyzer) Alerts(tick uint64, stats []LaneStat) []domain.CongestionAlert {
	var alerts []domain.CongestionAlert

	for _, stat := range stats {
		ratio := float64(stat.Occupancy) / float64(stat.Capacity)
		if ratio <= a.cfg.AlertLaneRatio {
			continue
		}
		lane := stat.Lane
		laneInfo, _ := a.net.Lane(lane)
		alerts = append(alerts, domain.CongestionAlert{
			Lane:    &lane,
			Message: fmt.Sprintf("lane %s heavily congested (occupancy %.2f)", laneInfo.Name, ratio),
			Action:  "vehicles routed through this lane will be replanned",
			Tick:    tick,
		})
	}

	byIntersection := lo.GroupBy(stats, func(s LaneStat) domain.IntersectionID { return s.Intersection })
	ids := lo.Keys(byIntersection)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		group := byIntersection[id]
		ratio := lo.SumBy(group, func(s LaneStat) float64 {
			return float64(s.Occupancy) / float64(s.Capacity)
		}) / float64(len(group))
		if ratio <= a.cfg.AlertNodeRatio {
			continue
		}
		intersection := id
		alerts = append(alerts, domain.CongestionAlert{
			Intersection: &intersection,
			Message:      fmt.Sprintf("intersection %d heavily congested (%.2f)", id, ratio),
			Action:       "adjust traffic light timings",
			Tick:         tick,
		})
	}
	return alerts
}

// IntersectionCongestion returns the average occupancy ratio of an
// intersection's approaches, for the telemetry snapshot.
func IntersectionCongestion(stats []LaneStat) float64 {
	if len(stats) == 0 {
		return 0
	}
	return lo.SumBy(stats, func(s LaneStat) float64 {
		return float64(s.Occupancy) / float64(s.Capacity)
	}) / float64(len(stats))
}
