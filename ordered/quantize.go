package ordered

import "math"

// Ditherer quantizes a single normalized channel sample at a pixel position.
type Ditherer interface {
	Name() string
	Quantize(value float64, x, y, q int) float64
}

var _ Ditherer = (*Matrix)(nil)

// Quantize maps value to one of the q+1 levels {0, 1/q, ..., 1}. The integer step below value*q is kept
// and bumped by one when the fractional remainder reaches the threshold at (x, y).
//
// A value that already sits exactly on a level is returned unchanged at every position, including where
// the threshold is 0.
//
// value is not clamped; inputs outside [0,1] produce results outside [0,1]. q must be at least 1.
func (m *Matrix) Quantize(value float64, x, y, q int) float64 {
	if q < 1 {
		panic("ordered: level count must be positive")
	}
	scaled := value * float64(q)
	base := math.Floor(scaled)
	fraction := scaled - base

	// A sample sitting exactly on a level stays there, even on a zero threshold.
	if fraction > 0 && fraction >= m.ThresholdAt(x, y) {
		base++
	}
	return base / float64(q)
}

// Quantize applies Bayer4x4 ordered dithering to one channel sample.
func Quantize(value float64, x, y, q int) float64 {
	return Bayer4x4.Quantize(value, x, y, q)
}

// Level returns the level index k in 0..q nearest to c after clamping c to [0,1].
func Level(c float64, q int) int {
	return int(math.Round(clamp(c) * float64(q)))
}

func clamp(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
