package ordered

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func gradientPix(w, h int) []uint8 {
	pix := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			pix[i] = uint8(x * 255 / (w - 1))
			pix[i+1] = uint8(y * 255 / (h - 1))
			pix[i+2] = uint8((x + y) * 255 / (w + h - 2))
			pix[i+3] = uint8(x * 16)
		}
	}
	return pix
}

func TestApplyPixLevelsAndAlpha(t *testing.T) {
	const w, h, q = 16, 16, 5
	out, err := Bayer4x4.ApplyPix(gradientPix(w, h), w, h, q)
	if err != nil {
		t.Fatal(err)
	}

	levels := map[uint8]bool{0: true, 51: true, 102: true, 153: true, 204: true, 255: true}
	for i := 0; i < len(out); i += 4 {
		for c := 0; c < 3; c++ {
			if !levels[out[i+c]] {
				t.Fatalf("pixel %d channel %d = %d, not a level of q=5", i/4, c, out[i+c])
			}
		}
		if out[i+3] != 255 {
			t.Fatalf("pixel %d alpha = %d, want 255", i/4, out[i+3])
		}
	}
}

func TestApplyPixMatchesSequential(t *testing.T) {
	const w, h, q = 37, 29, 5
	pix := gradientPix(w, h)

	want := make([]uint8, len(pix))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			for c := 0; c < 3; c++ {
				want[i+c] = toByte(Quantize(float64(pix[i+c])/255, x, y, q))
			}
			want[i+3] = 255
		}
	}

	got, err := Bayer4x4.ApplyPix(pix, w, h, q)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parallel result differs from sequential (-want +got):\n%s", diff)
	}
}

func TestApplyPixErrors(t *testing.T) {
	tests := []struct {
		name    string
		pix     []uint8
		w, h, q int
		wantErr error
	}{
		{"zero levels", make([]uint8, 16), 2, 2, 0, ErrLevels},
		{"short buffer", make([]uint8, 15), 2, 2, 5, ErrBufferSize},
		{"long buffer", make([]uint8, 20), 2, 2, 5, ErrBufferSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bayer4x4.ApplyPix(tt.pix, tt.w, tt.h, tt.q)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ApplyPix() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyUniformGray(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 14, 14))
	for y := 10; y < 14; y++ {
		for x := 10; x < 14; x++ {
			src.Set(x, y, color.RGBA{128, 128, 128, 255})
		}
	}

	out, err := Bayer4x4.Apply(src, 5)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Fatalf("Bounds() = %v, want (0,0)-(4,4)", out.Bounds())
	}

	// 128/255*5 leaves a remainder just above 8/16, so nine of the sixteen thresholds bump.
	up := 0
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := out.NRGBAAt(x, y)
			switch c.R {
			case 153:
				up++
			case 102:
			default:
				t.Fatalf("(%d,%d) = %d, want 102 or 153", x, y, c.R)
			}
			if c.R != c.G || c.G != c.B {
				t.Errorf("(%d,%d) = %v, channels differ for gray input", x, y, c)
			}
		}
	}
	if up != 9 {
		t.Errorf("%d pixels rounded up, want 9", up)
	}
}

func TestApplySubImage(t *testing.T) {
	full := &image.NRGBA{Pix: gradientPix(8, 8), Stride: 8 * 4, Rect: image.Rect(0, 0, 8, 8)}
	whole, err := Bayer4x4.Apply(full, 5)
	if err != nil {
		t.Fatal(err)
	}

	top := full.SubImage(image.Rect(0, 0, 8, 4))
	out, err := Bayer4x4.Apply(top, 5)
	if err != nil {
		t.Fatalf("Apply(top half) error = %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 8, 4) {
		t.Fatalf("Bounds() = %v, want (0,0)-(8,4)", out.Bounds())
	}
	if diff := cmp.Diff(whole.Pix[:8*4*4], out.Pix); diff != "" {
		t.Errorf("top half mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyKeepsExtremes(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				src.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 0})
			} else {
				src.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			}
		}
	}

	out, err := Bayer4x4.Apply(src, 5)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := color.NRGBA{0, 0, 0, 255}
			if x >= 4 {
				want = color.NRGBA{255, 255, 255, 255}
			}
			if got := out.NRGBAAt(x, y); got != want {
				t.Errorf("(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestPackIndices(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 51, 255})
	img.SetNRGBA(1, 0, color.NRGBA{0, 102, 255, 255})

	got, err := PackIndices(img, 5)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{5*36 + 1, 2*6 + 5}, got); diff != "" {
		t.Errorf("PackIndices() mismatch (-want +got):\n%s", diff)
	}

	if _, err := PackIndices(img, 6); !errors.Is(err, ErrPaletteOverflow) {
		t.Errorf("PackIndices(q=6) error = %v, want ErrPaletteOverflow", err)
	}
	if _, err := PackIndices(img, 0); !errors.Is(err, ErrLevels) {
		t.Errorf("PackIndices(q=0) error = %v, want ErrLevels", err)
	}
}
