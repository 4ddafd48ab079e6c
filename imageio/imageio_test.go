package imageio

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.png"))
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrInputNotFound", err)
	}

	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = Load(garbage)
	if !errors.Is(err, ErrUndecodable) {
		t.Errorf("Load(garbage) error = %v, want ErrUndecodable", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	src := solid(6, 4, color.NRGBA{51, 102, 153, 255})

	for _, name := range []string{"out.png", "out.bmp", "out.PNG"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Save(path, src); err != nil {
				t.Fatal(err)
			}
			img, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if img.Bounds() != src.Bounds() {
				t.Fatalf("Bounds() = %v, want %v", img.Bounds(), src.Bounds())
			}
			r, g, b, a := img.At(3, 2).RGBA()
			got := []uint32{r >> 8, g >> 8, b >> 8, a >> 8}
			if diff := cmp.Diff([]uint32{51, 102, 153, 255}, got); diff != "" {
				t.Errorf("pixel mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSaveErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.png")
	if err := Save(path, solid(2, 2, color.White)); !errors.Is(err, ErrOutputWrite) {
		t.Errorf("Save() error = %v, want ErrOutputWrite", err)
	}
	if err := SaveBytes(path, []byte{1, 2, 3}); !errors.Is(err, ErrOutputWrite) {
		t.Errorf("SaveBytes() error = %v, want ErrOutputWrite", err)
	}
}

func TestResize(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		method string
	}{
		{"stretch wide", 300, 100, MethodStretch},
		{"default method", 50, 80, ""},
		{"cut wide", 300, 100, MethodCut},
		{"cut tall", 100, 300, MethodCut},
		{"fill white", 300, 100, MethodFillWhite},
		{"fill black tall", 100, 300, MethodFillBlack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resize(solid(tt.w, tt.h, color.Gray{200}), 128, 128, "", tt.method)
			if out.Bounds() != image.Rect(0, 0, 128, 128) {
				t.Errorf("Bounds() = %v, want 128x128", out.Bounds())
			}
		})
	}
}

func TestResizeFillBlackLetterboxes(t *testing.T) {
	out := Resize(solid(200, 100, color.White), 128, 128, "NearestNeighbor", MethodFillBlack)

	r, _, _, _ := out.At(64, 4).RGBA()
	if r != 0 {
		t.Errorf("letterbox pixel red = %d, want 0", r)
	}
	r, _, _, _ = out.At(64, 64).RGBA()
	if r != 0xffff {
		t.Errorf("center pixel red = %d, want 0xffff", r)
	}
}

func TestValidFilterAndMethod(t *testing.T) {
	if !ValidFilter("Lanczos") || ValidFilter("Bicubic") {
		t.Error("ValidFilter() gave wrong answer")
	}
	if !ValidMethod("") || !ValidMethod(MethodCut) || ValidMethod("zoom") {
		t.Error("ValidMethod() gave wrong answer")
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.JPG", "c.txt", "sub/d.webp"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ListImages(dir, Extensions)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(got)
	want := []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.JPG"),
		filepath.Join(dir, "sub", "d.webp"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListImages() mismatch (-want +got):\n%s", diff)
	}

	if _, err := ListImages(filepath.Join(dir, "nope"), Extensions); err == nil {
		t.Error("ListImages(missing dir) returned no error")
	}
}
