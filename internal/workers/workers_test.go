package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{"cpu bound", 1.0, 0, 1, availableCPU},
		{"io bound", 2.0, 0, 1, availableCPU * 2},
		{"mixed", 1.5, 0, 1, availableCPU*3/2 + 1},
		{"limited", 4.0, 2, 1, 2},
		{"tiny multiplier never yields zero", 0.0001, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountOverride(t *testing.T) {
	tests := []struct {
		name     string
		override string
		limit    int
		want     int
	}{
		{"override used", "7", 0, 7},
		{"override capped by limit", "12", 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.override)
			if got := Count(1.0, tt.limit); got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCountInvalidOverrideIgnored(t *testing.T) {
	t.Setenv(EnvOverride, "not-a-number")
	if got := ForCPU(1); got != 1 {
		t.Errorf("ForCPU(1) = %d, want 1", got)
	}
}

func TestHelpers(t *testing.T) {
	t.Setenv(EnvOverride, "")
	if ForIO(0) < ForCPU(0) {
		t.Error("ForIO should not be smaller than ForCPU")
	}
	if ForMixed(0) < ForCPU(0) {
		t.Error("ForMixed should not be smaller than ForCPU")
	}
}
