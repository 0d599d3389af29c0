package utils

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Errorf("Clamp(5,0,10) = %v", got)
	}
	if got := Clamp(-1, 0, 10); got != 0 {
		t.Errorf("Clamp(-1,0,10) = %v", got)
	}
	if got := Clamp(11, 0, 10); got != 10 {
		t.Errorf("Clamp(11,0,10) = %v", got)
	}
}

func TestClampInt(t *testing.T) {
	if got := ClampInt(9, -6, 6); got != 6 {
		t.Errorf("ClampInt(9,-6,6) = %d", got)
	}
	if got := ClampInt(-9, -6, 6); got != -6 {
		t.Errorf("ClampInt(-9,-6,6) = %d", got)
	}
	if got := ClampInt(3, -6, 6); got != 3 {
		t.Errorf("ClampInt(3,-6,6) = %d", got)
	}
}

func TestRoundTo(t *testing.T) {
	if got := RoundTo(3.14159, 2); got != 3.14 {
		t.Errorf("RoundTo(3.14159,2) = %v", got)
	}
	if got := RoundTo(2.675, 0); got != 3 {
		t.Errorf("RoundTo(2.675,0) = %v", got)
	}
}

func TestDecayWeight(t *testing.T) {
	if got := DecayWeight(0, 5); got != 1 {
		t.Errorf("Expected weight 1 at age 0, got %v", got)
	}
	if got := DecayWeight(5, 5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected weight 0.5 at one half-life, got %v", got)
	}
	if got := DecayWeight(10, 5); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("Expected weight 0.25 at two half-lives, got %v", got)
	}
	if got := DecayWeight(3, 0); got != 1 {
		t.Errorf("Expected weight 1 for non-positive half-life, got %v", got)
	}
}
