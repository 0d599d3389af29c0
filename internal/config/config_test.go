package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("Expected default tick interval 1s, got %v", cfg.TickInterval)
	}
	if cfg.AdjustClampMin != -6 || cfg.AdjustClampMax != 6 {
		t.Errorf("Unexpected default clamp [%d,%d]", cfg.AdjustClampMin, cfg.AdjustClampMax)
	}
	if cfg.LaneCapacity != 10 {
		t.Errorf("Expected default lane capacity 10, got %d", cfg.LaneCapacity)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("SPAWN_PROBABILITY", "0.5")
	t.Setenv("LIGHT_GREEN_TICKS", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Errorf("Expected 250ms tick interval, got %v", cfg.TickInterval)
	}
	if cfg.SpawnProbability != 0.5 {
		t.Errorf("Expected spawn probability 0.5, got %v", cfg.SpawnProbability)
	}
	if cfg.GreenBaseTicks != 6 {
		t.Errorf("Expected 6 green ticks, got %d", cfg.GreenBaseTicks)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"spawn probability above 1", "SPAWN_PROBABILITY", "1.5"},
		{"green min above base", "LIGHT_GREEN_MIN_TICKS", "100"},
		{"inverted clamp", "LIGHT_ADJUST_MIN", "10"},
		{"zero analyzer window", "ANALYZER_WINDOW", "0"},
		{"low water above high water", "ANALYZER_LOW_WATER", "0.9"},
		{"zero lane capacity", "LANE_CAPACITY", "0"},
		{"zero block ticks", "ACCIDENT_BASE_BLOCK_TICKS", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected a validation error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("SOME_INT", "not a number")
	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Errorf("Expected unparseable int to fall back, got %d", got)
	}
	if got := getEnvFloat("UNSET_FLOAT", 0.25); got != 0.25 {
		t.Errorf("Expected unset float fallback, got %v", got)
	}
	if got := getEnv("UNSET_STRING", "fallback"); got != "fallback" {
		t.Errorf("Expected string fallback, got %q", got)
	}
}
