package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the simulator process. Values come from the
// environment (optionally seeded from a .env file) with sensible defaults, so
// the simulator runs out of the box without a broker or database.
type Config struct {
	Env  string
	Port string

	// External collaborators. Empty values mean "run without".
	DatabaseURL string
	AMQPUrl     string

	// Scheduler
	TickInterval time.Duration

	// Road network
	LaneCapacity int // uniform capacity of the default grid's lanes

	// Vehicle spawning
	SpawnProbability float64 // Bernoulli draw per entry intersection per tick

	// Traffic lights (durations in ticks)
	GreenBaseTicks int
	YellowTicks    int
	AllRedTicks    int
	GreenMinTicks  int
	GreenMaxTicks  int
	AdjustClampMin int // seconds, inclusive
	AdjustClampMax int // seconds, inclusive

	// Flow analyzer
	HistoryWindow       int
	HalfLifeTicks       float64 // EWMA weight halves every this many ticks
	HighWaterRatio      float64 // predicted occupancy/capacity above which green is extended
	LowWaterRatio       float64 // below which a positive adjustment is wound back
	RecommendGain       float64 // seconds per vehicle of predicted excess
	RecommendMaxPerTick int
	AlertLaneRatio      float64 // occupancy/capacity ratio that raises a congestion alert
	AlertNodeRatio      float64 // intersection congestion ratio that raises an alert

	// Accidents
	AccidentProbability float64 // base Bernoulli rate, scaled by occupancy/capacity
	BaseBlockTicks      int     // clearTick = start + severity*BaseBlockTicks

	// Route planning
	ReplanOccupancyRatio float64 // next-lane congestion that triggers a replan
	MaxReplanFailures    int     // consecutive failures before a vehicle is Stuck

	// Messaging gateway
	PublishTimeout   time.Duration
	PublishRetries   int
	AdjustmentBuffer int
	RandomSeed       int64 // 0 = seed from time
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("GO_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		AMQPUrl:     getEnv("AMQP_URL", ""),

		TickInterval: time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,

		LaneCapacity: getEnvInt("LANE_CAPACITY", 10),

		SpawnProbability: getEnvFloat("SPAWN_PROBABILITY", 0.3),

		GreenBaseTicks: getEnvInt("LIGHT_GREEN_TICKS", 8),
		YellowTicks:    getEnvInt("LIGHT_YELLOW_TICKS", 2),
		AllRedTicks:    getEnvInt("LIGHT_ALL_RED_TICKS", 1),
		GreenMinTicks:  getEnvInt("LIGHT_GREEN_MIN_TICKS", 3),
		GreenMaxTicks:  getEnvInt("LIGHT_GREEN_MAX_TICKS", 20),
		AdjustClampMin: getEnvInt("LIGHT_ADJUST_MIN", -6),
		AdjustClampMax: getEnvInt("LIGHT_ADJUST_MAX", 6),

		HistoryWindow:       getEnvInt("ANALYZER_WINDOW", 10),
		HalfLifeTicks:       getEnvFloat("ANALYZER_HALF_LIFE_TICKS", 5),
		HighWaterRatio:      getEnvFloat("ANALYZER_HIGH_WATER", 0.8),
		LowWaterRatio:       getEnvFloat("ANALYZER_LOW_WATER", 0.3),
		RecommendGain:       getEnvFloat("ANALYZER_RECOMMEND_GAIN", 2.0),
		RecommendMaxPerTick: getEnvInt("ANALYZER_RECOMMEND_MAX", 6),
		AlertLaneRatio:      getEnvFloat("ANALYZER_ALERT_LANE_RATIO", 0.75),
		AlertNodeRatio:      getEnvFloat("ANALYZER_ALERT_NODE_RATIO", 0.8),

		AccidentProbability: getEnvFloat("ACCIDENT_PROBABILITY", 0.01),
		BaseBlockTicks:      getEnvInt("ACCIDENT_BASE_BLOCK_TICKS", 2),

		ReplanOccupancyRatio: getEnvFloat("REPLAN_OCCUPANCY_RATIO", 0.75),
		MaxReplanFailures:    getEnvInt("REPLAN_MAX_FAILURES", 3),

		PublishTimeout:   time.Duration(getEnvInt("PUBLISH_TIMEOUT_MS", 500)) * time.Millisecond,
		PublishRetries:   getEnvInt("PUBLISH_RETRIES", 2),
		AdjustmentBuffer: getEnvInt("ADJUSTMENT_BUFFER", 64),
		RandomSeed:       int64(getEnvInt("RANDOM_SEED", 0)),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tick interval must be positive, got %v", c.TickInterval)
	}
	if c.LaneCapacity < 1 {
		return fmt.Errorf("config: lane capacity must be at least 1, got %d", c.LaneCapacity)
	}
	if c.SpawnProbability < 0 || c.SpawnProbability > 1 {
		return fmt.Errorf("config: spawn probability must be in [0,1], got %v", c.SpawnProbability)
	}
	if c.GreenMinTicks > c.GreenBaseTicks || c.GreenBaseTicks > c.GreenMaxTicks {
		return fmt.Errorf("config: green ticks must satisfy min <= base <= max (%d, %d, %d)",
			c.GreenMinTicks, c.GreenBaseTicks, c.GreenMaxTicks)
	}
	if c.AdjustClampMin > c.AdjustClampMax {
		return fmt.Errorf("config: adjustment clamp min %d exceeds max %d", c.AdjustClampMin, c.AdjustClampMax)
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("config: analyzer window must be at least 1, got %d", c.HistoryWindow)
	}
	if c.LowWaterRatio >= c.HighWaterRatio {
		return fmt.Errorf("config: low water %v must be below high water %v", c.LowWaterRatio, c.HighWaterRatio)
	}
	if c.BaseBlockTicks < 1 {
		return fmt.Errorf("config: base block ticks must be at least 1, got %d", c.BaseBlockTicks)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
