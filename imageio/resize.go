package imageio

import (
	"image"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"
)

// Resize methods.
const (
	MethodStretch   = "stretch"
	MethodCut       = "cut"
	MethodFillWhite = "fill_white"
	MethodFillBlack = "fill_black"
)

// DefaultFilter is used when the requested filter is empty or unknown.
const DefaultFilter = "MitchellNetravali"

var resizeFilters = map[string]transform.ResampleFilter{
	"Linear":            transform.Linear,
	"NearestNeighbor":   transform.NearestNeighbor,
	"Box":               transform.Box,
	"Gaussian":          transform.Gaussian,
	"MitchellNetravali": transform.MitchellNetravali,
	"CatmullRom":        transform.CatmullRom,
	"Lanczos":           transform.Lanczos,
}

// ValidFilter reports whether name is a known resample filter.
func ValidFilter(name string) bool {
	_, ok := resizeFilters[name]
	return ok
}

// ValidMethod reports whether method is a known resize method. Empty selects stretch.
func ValidMethod(method string) bool {
	switch method {
	case "", MethodStretch, MethodCut, MethodFillWhite, MethodFillBlack:
		return true
	}
	return false
}

// Resize scales img to width x height. "stretch" ignores the aspect ratio, "cut" crops the center to the
// target aspect ratio first and "fill_white"/"fill_black" letterbox the image on a solid canvas.
func Resize(img image.Image, width, height int, filter string, method string) image.Image {
	resampleFilter, ok := resizeFilters[filter]
	if !ok {
		resampleFilter = resizeFilters[DefaultFilter]
	}

	imgWidth := img.Bounds().Dx()
	imgHeight := img.Bounds().Dy()
	aspectRatio := float64(imgWidth) / float64(imgHeight)
	targetAspectRatio := float64(width) / float64(height)

	switch method {
	case MethodCut:
		if aspectRatio > targetAspectRatio {
			// wider than the target, crop width
			newWidth := int(float64(imgHeight) * targetAspectRatio)
			xOffset := (imgWidth - newWidth) / 2
			img = transform.Crop(img, image.Rect(xOffset, 0, xOffset+newWidth, imgHeight))
		} else if aspectRatio < targetAspectRatio {
			newHeight := int(float64(imgWidth) / targetAspectRatio)
			yOffset := (imgHeight - newHeight) / 2
			img = transform.Crop(img, image.Rect(0, yOffset, imgWidth, yOffset+newHeight))
		}
	case MethodFillWhite, MethodFillBlack:
		fillColor := image.White
		if method == MethodFillBlack {
			fillColor = image.Black
		}

		var canvas *image.RGBA
		var xOffset, yOffset int
		if aspectRatio > targetAspectRatio {
			newHeight := int(float64(imgWidth) / targetAspectRatio)
			canvas = image.NewRGBA(image.Rect(0, 0, imgWidth, newHeight))
			yOffset = (newHeight - imgHeight) / 2
		} else {
			newWidth := int(float64(imgHeight) * targetAspectRatio)
			canvas = image.NewRGBA(image.Rect(0, 0, newWidth, imgHeight))
			xOffset = (newWidth - imgWidth) / 2
		}

		draw.Draw(canvas, canvas.Bounds(), fillColor, image.Point{}, draw.Src)
		dst := image.Rect(xOffset, yOffset, xOffset+imgWidth, yOffset+imgHeight)
		draw.Draw(canvas, dst, img, img.Bounds().Min, draw.Over)
		img = canvas
	}

	return transform.Resize(img, width, height, resampleFilter)
}
