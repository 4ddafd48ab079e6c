// Package pipeline glues image loading, resizing and ordered dithering into one conversion.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/HighDoping/MapDither/imageio"
	"github.com/HighDoping/MapDither/ordered"
)

// Reference output: a 128x128 map with six levels per channel.
const (
	DefaultSize   = 128
	DefaultLevels = 5
)

// MaxSize bounds the output edge so a single conversion stays within a few megabytes.
const MaxSize = 1024

var ErrInvalidOptions = errors.New("invalid conversion options")

// Options control a conversion. Zero values select the defaults.
type Options struct {
	Size   int    // output width and height
	Levels int    // q, steps per channel
	Matrix string // threshold matrix name
	Filter string // resample filter
	Method string // resize method
}

// Defaults returns the reference options.
func Defaults() Options {
	return Options{
		Size:   DefaultSize,
		Levels: DefaultLevels,
		Matrix: ordered.Bayer4x4.Name(),
		Filter: imageio.DefaultFilter,
		Method: imageio.MethodStretch,
	}
}

// WithDefaults returns o with every zero field replaced by its default.
func (o Options) WithDefaults() Options {
	d := Defaults()
	if o.Size == 0 {
		o.Size = d.Size
	}
	if o.Levels == 0 {
		o.Levels = d.Levels
	}
	if o.Matrix == "" {
		o.Matrix = d.Matrix
	}
	if o.Filter == "" {
		o.Filter = d.Filter
	}
	if o.Method == "" {
		o.Method = d.Method
	}
	return o
}

// Validate checks o after defaults are applied.
func (o Options) Validate() error {
	o = o.WithDefaults()
	if o.Size < 1 || o.Size > MaxSize {
		return fmt.Errorf("%w: size %d, want 1..%d", ErrInvalidOptions, o.Size, MaxSize)
	}
	if o.Levels < 1 {
		return fmt.Errorf("%w: levels %d", ErrInvalidOptions, o.Levels)
	}
	if _, err := ordered.Lookup(o.Matrix); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if !imageio.ValidFilter(o.Filter) {
		return fmt.Errorf("%w: filter %q", ErrInvalidOptions, o.Filter)
	}
	if !imageio.ValidMethod(o.Method) {
		return fmt.Errorf("%w: resize method %q", ErrInvalidOptions, o.Method)
	}
	return nil
}

// Run resizes src to a Size x Size square and dithers it.
func Run(src image.Image, opts Options) (*image.NRGBA, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	m, err := ordered.Lookup(opts.Matrix)
	if err != nil {
		return nil, err
	}
	resized := imageio.Resize(src, opts.Size, opts.Size, opts.Filter, opts.Method)
	return m.Apply(resized, opts.Levels)
}

// ConvertFile loads input, converts it and writes the result to output.
func ConvertFile(input, output string, opts Options) (*image.NRGBA, error) {
	src, err := imageio.Load(input)
	if err != nil {
		return nil, err
	}
	img, err := Run(src, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to dither %s: %w", input, err)
	}
	if err := imageio.Save(output, img); err != nil {
		return nil, err
	}
	log.Printf("Dithered %s into %s", input, output)
	return img, nil
}
