// Package ordered implements ordered (threshold matrix) dithering for per-channel level quantization.
//
// A Matrix is a small table of thresholds in [0,1) tiled across the image plane by coordinate modulo.
// Quantize maps a normalized channel sample to one of q+1 levels, rounding up or down depending on the
// threshold at the pixel position, so that neighborhoods average out to the input value.
package ordered

import (
	"errors"
	"fmt"
	"sort"

	"github.com/makeworld-the-better-one/dither/v2"
)

// ErrUnknownMatrix is returned by Lookup for names that are not registered.
var ErrUnknownMatrix = errors.New("ordered: unknown threshold matrix")

// Bayer4x4Table is the classic 4x4 Bayer index table. Every value in 0..15 appears exactly once.
var Bayer4x4Table = dither.OrderedDitherMatrix{
	Matrix: [][]uint{
		{0, 12, 3, 15},
		{8, 4, 11, 7},
		{2, 14, 1, 13},
		{10, 6, 9, 5},
	},
	Max: 16,
}

// Bayer4x4 is the default threshold matrix.
var Bayer4x4 = mustMatrix("Bayer4x4", Bayer4x4Table)

// Matrix is an immutable tileable threshold table.
type Matrix struct {
	name       string
	width      int
	height     int
	thresholds []float64 // row-major, each value/Max
}

// NewMatrix builds a Matrix from an index table. Each entry is divided by m.Max and must be below it,
// so every threshold lies in [0,1).
func NewMatrix(name string, m dither.OrderedDitherMatrix) (*Matrix, error) {
	if m.Max == 0 {
		return nil, fmt.Errorf("ordered: matrix %q has zero max", name)
	}
	if len(m.Matrix) == 0 || len(m.Matrix[0]) == 0 {
		return nil, fmt.Errorf("ordered: matrix %q is empty", name)
	}
	height := len(m.Matrix)
	width := len(m.Matrix[0])
	thresholds := make([]float64, 0, width*height)
	for y, row := range m.Matrix {
		if len(row) != width {
			return nil, fmt.Errorf("ordered: matrix %q row %d has %d entries, want %d", name, y, len(row), width)
		}
		for x, v := range row {
			if v >= m.Max {
				return nil, fmt.Errorf("ordered: matrix %q entry (%d, %d) = %d, want below max %d", name, x, y, v, m.Max)
			}
			thresholds = append(thresholds, float64(v)/float64(m.Max))
		}
	}
	return &Matrix{
		name:       name,
		width:      width,
		height:     height,
		thresholds: thresholds,
	}, nil
}

func mustMatrix(name string, m dither.OrderedDitherMatrix) *Matrix {
	mat, err := NewMatrix(name, m)
	if err != nil {
		panic(err)
	}
	return mat
}

// Name returns the name the matrix was registered under.
func (m *Matrix) Name() string {
	return m.name
}

// Size returns the tile width and height.
func (m *Matrix) Size() (width, height int) {
	return m.width, m.height
}

// Thresholds returns a copy of the normalized table in row-major order.
func (m *Matrix) Thresholds() []float64 {
	out := make([]float64, len(m.thresholds))
	copy(out, m.thresholds)
	return out
}

// ThresholdAt returns the threshold tiled onto pixel (x, y). Coordinates must be non-negative.
func (m *Matrix) ThresholdAt(x, y int) float64 {
	return m.thresholds[(y%m.height)*m.width+x%m.width]
}

// ThresholdAt returns the Bayer4x4 threshold at pixel (x, y).
func ThresholdAt(x, y int) float64 {
	return Bayer4x4.ThresholdAt(x, y)
}

// Tables that ship with the dither library, keyed the same way devices name them.
var libraryTables = map[string]dither.OrderedDitherMatrix{
	"ClusteredDot4x4":           dither.ClusteredDot4x4,
	"ClusteredDot6x6":           dither.ClusteredDot6x6,
	"ClusteredDot6x6_2":         dither.ClusteredDot6x6_2,
	"ClusteredDot6x6_3":         dither.ClusteredDot6x6_3,
	"ClusteredDot8x8":           dither.ClusteredDot8x8,
	"ClusteredDotDiagonal16x16": dither.ClusteredDotDiagonal16x16,
	"ClusteredDotDiagonal6x6":   dither.ClusteredDotDiagonal6x6,
	"ClusteredDotDiagonal8x8":   dither.ClusteredDotDiagonal8x8,
	"ClusteredDotDiagonal8x8_2": dither.ClusteredDotDiagonal8x8_2,
	"ClusteredDotDiagonal8x8_3": dither.ClusteredDotDiagonal8x8_3,
	"ClusteredDotSpiral5x5":     dither.ClusteredDotSpiral5x5,
	"Horizontal3x5":             dither.Horizontal3x5,
	"Vertical5x3":               dither.Vertical5x3,
}

// Lookup returns the matrix registered under name. An empty name selects Bayer4x4.
func Lookup(name string) (*Matrix, error) {
	if name == "" || name == Bayer4x4.name {
		return Bayer4x4, nil
	}
	table, ok := libraryTables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMatrix, name)
	}
	return NewMatrix(name, table)
}

// Names lists every name Lookup accepts, sorted.
func Names() []string {
	names := make([]string, 0, len(libraryTables)+1)
	names = append(names, Bayer4x4.name)
	for name := range libraryTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
