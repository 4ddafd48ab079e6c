package ordered

import (
	"math"
	"testing"
)

func TestQuantizeOutputLevels(t *testing.T) {
	for q := 1; q <= 8; q++ {
		for i := 0; i <= 100; i++ {
			v := float64(i) / 100
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					got := Quantize(v, x, y, q)
					k := got * float64(q)
					if math.Abs(k-math.Round(k)) > 1e-9 || k < -1e-9 || k > float64(q)+1e-9 {
						t.Fatalf("Quantize(%v, %d, %d, %d) = %v, not one of k/%d", v, x, y, q, got, q)
					}
				}
			}
		}
	}
}

func TestQuantizeMonotonic(t *testing.T) {
	for q := 1; q <= 6; q++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				prev := Quantize(0, x, y, q)
				for i := 1; i <= 1000; i++ {
					got := Quantize(float64(i)/1000, x, y, q)
					if got < prev {
						t.Fatalf("q=%d (%d,%d): Quantize(%v) = %v < %v", q, x, y, float64(i)/1000, got, prev)
					}
					prev = got
				}
			}
		}
	}
}

func TestQuantizeBoundaries(t *testing.T) {
	for q := 1; q <= 10; q++ {
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				if got := Quantize(0, x, y, q); got != 0 {
					t.Errorf("Quantize(0, %d, %d, %d) = %v, want 0", x, y, q, got)
				}
				if got := Quantize(1, x, y, q); got != 1 {
					t.Errorf("Quantize(1, %d, %d, %d) = %v, want 1", x, y, q, got)
				}
			}
		}
	}
}

func TestQuantizeScenarios(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		q     int
		want  func(x, y int) float64
	}{
		{
			name:  "exact level",
			value: 0.6,
			q:     5,
			want:  func(x, y int) float64 { return 0.6 },
		},
		{
			name:  "small remainder bumps on the two lowest thresholds",
			value: 0.22,
			q:     5,
			want: func(x, y int) float64 {
				if (x == 0 && y == 0) || (x == 2 && y == 2) {
					return 0.4
				}
				return 0.2
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					if got, want := Quantize(tt.value, x, y, tt.q), tt.want(x, y); got != want {
						t.Errorf("Quantize(%v, %d, %d, %d) = %v, want %v", tt.value, x, y, tt.q, got, want)
					}
				}
			}
		})
	}
}

func TestQuantizeEqualThresholdBumps(t *testing.T) {
	// fraction 0.5 against the 8/16 threshold at (0,1) and the 12/16 threshold at (1,0).
	if got := Quantize(0.5, 0, 1, 1); got != 1 {
		t.Errorf("Quantize(0.5, 0, 1, 1) = %v, want 1", got)
	}
	if got := Quantize(0.5, 1, 0, 1); got != 0 {
		t.Errorf("Quantize(0.5, 1, 0, 1) = %v, want 0", got)
	}
}

func TestQuantizeTileBalance(t *testing.T) {
	const q = 4
	for j := 1; j < 32; j += 2 {
		fraction := float64(j) / 32
		v := (1 + fraction) / q

		bumps := 0
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if Quantize(v, x, y, q) > 1.0/q {
					bumps++
				}
			}
		}
		if want := (j + 1) / 2; bumps != want {
			t.Errorf("fraction %v: %d of 16 positions bumped, want %d", fraction, bumps, want)
		}
	}
}

func TestQuantizeUnclamped(t *testing.T) {
	if got := Quantize(1.3, 0, 0, 5); got <= 1 {
		t.Errorf("Quantize(1.3, 0, 0, 5) = %v, want > 1", got)
	}
	if got := Quantize(-0.3, 3, 0, 5); got >= 0 {
		t.Errorf("Quantize(-0.3, 3, 0, 5) = %v, want < 0", got)
	}
}

func TestQuantizeZeroLevelsPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Quantize with q=0 did not panic")
		}
	}()
	Quantize(0.5, 0, 0, 0)
}

func TestLevel(t *testing.T) {
	tests := []struct {
		c    float64
		q    int
		want int
	}{
		{0, 5, 0},
		{0.2, 5, 1},
		{0.6, 5, 3},
		{1, 5, 5},
		{1.7, 5, 5},
		{-0.2, 5, 0},
		{0.5, 1, 1},
	}
	for _, tt := range tests {
		if got := Level(tt.c, tt.q); got != tt.want {
			t.Errorf("Level(%v, %d) = %d, want %d", tt.c, tt.q, got, tt.want)
		}
	}
}
