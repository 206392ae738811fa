package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// PreprocessOptions controls the image cleanup applied before recognition.
// The zero value leaves the image untouched.
type PreprocessOptions struct {
	Enabled   bool
	Contrast  float64 // percentage, passed to imaging.AdjustContrast
	Sharpen   float64 // sigma, passed to imaging.Sharpen
	MinHeight int     // upscale crops shorter than this (pixels)
	Threshold uint8   // global binarization threshold, 0 disables
	Adaptive  bool    // mean adaptive threshold instead of a global one
}

// DefaultPreprocess mirrors the settings that worked best on scanned invoices.
func DefaultPreprocess() PreprocessOptions {
	return PreprocessOptions{
		Enabled:   true,
		Contrast:  15,
		Sharpen:   0.7,
		MinHeight: 300,
	}
}

// Preprocess returns the cleaned image and the factor it was resized by, so
// boxes can be mapped back with ScaleLines.
func Preprocess(img image.Image, opts PreprocessOptions) (image.Image, float64) {
	if !opts.Enabled {
		return img, 1
	}
	out := imaging.Grayscale(img)
	if opts.Contrast != 0 {
		out = imaging.AdjustContrast(out, opts.Contrast)
	}
	if opts.Sharpen > 0 {
		out = imaging.Sharpen(out, opts.Sharpen)
	}
	scale := 1.0
	if h := out.Bounds().Dy(); opts.MinHeight > 0 && h > 0 && h < opts.MinHeight {
		out = imaging.Resize(out, 0, opts.MinHeight, imaging.Lanczos)
		scale = float64(out.Bounds().Dy()) / float64(h)
	}
	switch {
	case opts.Adaptive:
		return adaptiveThreshold(out, 15, 7), scale
	case opts.Threshold > 0:
		return binarize(out, opts.Threshold), scale
	}
	return out, scale
}

func luma(img image.Image, x, y int) int {
	r, g, b, _ := img.At(x, y).RGBA()
	return int((r + g + b) / 3 >> 8)
}

// binarize performs a simple global threshold on a grayscale image.
func binarize(img image.Image, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint8 = 255
			if luma(img, x, y) <= int(threshold) {
				v = 0
			}
			out.Set(x-b.Min.X, y-b.Min.Y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// adaptiveThreshold compares every pixel against the mean of its window,
// using an integral image so each lookup is constant time.
func adaptiveThreshold(img image.Image, window int, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	if w == 0 || h == 0 {
		return out
	}
	sums := make([]int, w*h)
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			row += luma(img, b.Min.X+x, b.Min.Y+y)
			sums[y*w+x] = row
			if y > 0 {
				sums[y*w+x] += sums[(y-1)*w+x]
			}
		}
	}
	at := func(x, y int) int {
		if x < 0 || y < 0 {
			return 0
		}
		return sums[y*w+x]
	}
	half := window / 2
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half, w-1)
			sum := at(x1, y1) - at(x0-1, y1) - at(x1, y0-1) + at(x0-1, y0-1)
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			if luma(img, b.Min.X+x, b.Min.Y+y) < max(mean-bias, 0) {
				out.Set(x, y, color.NRGBA{0, 0, 0, 255})
			}
		}
	}
	return out
}
