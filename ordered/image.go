package ordered

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"golang.org/x/image/draw"
)

var (
	ErrLevels          = errors.New("ordered: level count must be positive")
	ErrBufferSize      = errors.New("ordered: pixel buffer does not match dimensions")
	ErrPaletteOverflow = errors.New("ordered: level count too large for one byte per pixel")
)

const channels = 4

// ApplyPix dithers a flat row-major RGBA buffer of width*height pixels and returns a new buffer.
// Each of R, G and B is quantized on its own, clamped to [0,1] and rescaled to 0..255. Alpha is
// always written as 255.
func (m *Matrix) ApplyPix(pix []uint8, width, height, q int) ([]uint8, error) {
	if q < 1 {
		return nil, fmt.Errorf("%w: %d", ErrLevels, q)
	}
	if width < 0 || height < 0 || len(pix) != width*height*channels {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrBufferSize, len(pix), width, height)
	}

	out := make([]uint8, len(pix))
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				i := (y*width + x) * channels
				for c := 0; c < 3; c++ {
					v := float64(pix[i+c]) / 255
					out[i+c] = toByte(m.Quantize(v, x, y, q))
				}
				out[i+3] = 255
			}
		}
	})
	return out, nil
}

// Apply dithers src and returns an opaque image of the same size anchored at the origin.
// src is read as non-premultiplied RGBA.
func (m *Matrix) Apply(src image.Image, q int) (*image.NRGBA, error) {
	b := src.Bounds()
	rect := image.Rect(0, 0, b.Dx(), b.Dy())

	n := rect.Dx() * rect.Dy() * channels
	in, ok := src.(*image.NRGBA)
	if !ok || in.Rect != rect || in.Stride != rect.Dx()*channels || len(in.Pix) < n {
		in = image.NewNRGBA(rect)
		draw.Draw(in, rect, src, b.Min, draw.Src)
	}

	// SubImage keeps the tail of its parent's buffer
	pix, err := m.ApplyPix(in.Pix[:n], rect.Dx(), rect.Dy(), q)
	if err != nil {
		return nil, err
	}
	return &image.NRGBA{
		Pix:    pix,
		Stride: rect.Dx() * channels,
		Rect:   rect,
	}, nil
}

// PackIndices encodes every pixel of a quantized image as one byte, r*(q+1)^2 + g*(q+1) + b, where r, g
// and b are level indices in 0..q. For q=5 this addresses a 216 color cube.
func PackIndices(img *image.NRGBA, q int) ([]byte, error) {
	if q < 1 {
		return nil, fmt.Errorf("%w: %d", ErrLevels, q)
	}
	n := q + 1
	if n*n*n > 256 {
		return nil, fmt.Errorf("%w: %d", ErrPaletteOverflow, q)
	}

	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			r := Level(float64(img.Pix[i])/255, q)
			g := Level(float64(img.Pix[i+1])/255, q)
			bl := Level(float64(img.Pix[i+2])/255, q)
			out = append(out, byte(r*n*n+g*n+bl))
		}
	}
	return out, nil
}

func toByte(v float64) uint8 {
	return uint8(math.Round(clamp(v) * 255))
}
