// Command mapdither downscales an image to a small square and quantizes it with ordered dithering.
//
//	mapdither [flags] [input] [output]
//
// input defaults to in.png and output to out.png.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/HighDoping/MapDither/imageio"
	"github.com/HighDoping/MapDither/ordered"
	"github.com/HighDoping/MapDither/pipeline"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "mapdither",
		Usage:     "dither an image down to a fixed size and a few levels per channel",
		ArgsUsage: "[input] [output]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "size",
				Value: pipeline.DefaultSize,
				Usage: "output width and height in pixels",
			},
			&cli.IntFlag{
				Name:    "levels",
				Aliases: []string{"q"},
				Value:   pipeline.DefaultLevels,
				Usage:   "quantization steps per channel (levels+1 output values)",
			},
			&cli.StringFlag{
				Name:  "matrix",
				Value: ordered.Bayer4x4.Name(),
				Usage: "threshold matrix: " + strings.Join(ordered.Names(), ", "),
			},
			&cli.StringFlag{
				Name:  "filter",
				Value: imageio.DefaultFilter,
				Usage: "resample filter",
			},
			&cli.StringFlag{
				Name:  "resize",
				Value: imageio.MethodStretch,
				Usage: "resize method: stretch, cut, fill_white, fill_black",
			},
			&cli.StringFlag{
				Name:  "indices",
				Usage: "also write one palette index byte per pixel to this file",
			},
		},
		OnUsageError: func(c *cli.Context, err error, isSubcommand bool) error {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	input := "in.png"
	output := "out.png"
	if c.NArg() > 0 {
		input = c.Args().Get(0)
	}
	if c.NArg() > 1 {
		output = c.Args().Get(1)
	}

	opts := pipeline.Options{
		Size:   c.Int("size"),
		Levels: c.Int("levels"),
		Matrix: c.String("matrix"),
		Filter: c.String("filter"),
		Method: c.String("resize"),
	}
	if err := opts.Validate(); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	img, err := pipeline.ConvertFile(input, output, opts)
	switch {
	case errors.Is(err, imageio.ErrInputNotFound):
		return cli.Exit("Error: Input file doesn't exist.", 1)
	case errors.Is(err, imageio.ErrUndecodable):
		return cli.Exit(fmt.Sprintf("Error: Input file couldn't be decoded: %v", err), 1)
	case errors.Is(err, imageio.ErrOutputWrite):
		return cli.Exit(fmt.Sprintf("Error: Failed to write output: %v", err), 1)
	case err != nil:
		return cli.Exit(err.Error(), 1)
	}

	if path := c.String("indices"); path != "" {
		data, err := ordered.PackIndices(img, opts.Levels)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if err := imageio.SaveBytes(path, data); err != nil {
			return cli.Exit(fmt.Sprintf("Error: Failed to write output: %v", err), 1)
		}
		log.Printf("Saved %d palette indices to %s", len(data), path)
	}
	return nil
}
