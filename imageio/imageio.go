// Package imageio loads, resizes and writes the images around the dithering pipeline.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	_ "golang.org/x/image/webp"
)

var (
	ErrInputNotFound = errors.New("input file not found")
	ErrUndecodable   = errors.New("input file could not be decoded")
	ErrOutputWrite   = errors.New("failed to write output")
)

// Extensions are the file types Load understands.
var Extensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// Load opens and decodes the image at path.
func Load(path string) (image.Image, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	img, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUndecodable, path, err)
	}

	b := img.Bounds()
	if b.Dx() != b.Dy() {
		log.Printf("Warning: aspect ratio of %s (%dx%d) isn't 1:1", path, b.Dx(), b.Dy())
	}
	return img, nil
}

// Encoder returns the encoder for a file extension such as ".jpg". Unknown extensions encode as PNG.
func Encoder(ext string) imgio.Encoder {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return imgio.JPEGEncoder(95)
	case ".bmp":
		return imgio.BMPEncoder()
	default:
		return imgio.PNGEncoder()
	}
}

// Encode writes img to w in the format named by ext.
func Encode(w io.Writer, img image.Image, ext string) error {
	if err := Encoder(ext)(w, img); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}
	return nil
}

// Save encodes img to path, picking the format from the extension.
func Save(path string, img image.Image) error {
	if err := imgio.Save(path, img, Encoder(filepath.Ext(path))); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputWrite, path, err)
	}
	return nil
}

// SaveBytes writes raw data to path.
func SaveBytes(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputWrite, path, err)
	}
	return nil
}

// ListImages walks dir and returns every file whose extension is in exts.
func ListImages(dir string, exts []string) ([]string, error) {
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = true
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && allowed[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return files, nil
}
