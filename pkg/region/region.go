// Package region crops the part of an invoice that holds the client block.
package region

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrInvalid is returned for regions outside the unit square or with
// inverted edges.
var ErrInvalid = errors.New("invalid region")

// Region is a rectangle expressed as fractions of image width and height.
type Region struct {
	Left, Top, Right, Bottom float64
}

// UpperRight is the crop used for the invoice batches this tool was built
// for: right half, from 10% to 30% of the page height.
var UpperRight = Region{Left: 0.5, Top: 0.1, Right: 1, Bottom: 0.3}

var presets = map[string]Region{
	"upper-right": UpperRight,
	"upper-left":  {Left: 0, Top: 0.1, Right: 0.5, Bottom: 0.3},
	"right-half":  {Left: 0.5, Top: 0, Right: 1, Bottom: 1},
	"left-half":   {Left: 0, Top: 0, Right: 0.5, Bottom: 1},
	"top-half":    {Left: 0, Top: 0, Right: 1, Bottom: 0.5},
	"full":        {Left: 0, Top: 0, Right: 1, Bottom: 1},
}

// Parse accepts a preset name or four comma separated fractions
// "left,top,right,bottom". The result is validated.
func Parse(s string) (Region, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if r, ok := presets[s]; ok {
		return r, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("%w: %q is neither a preset nor left,top,right,bottom", ErrInvalid, s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Region{}, fmt.Errorf("%w: %q: %v", ErrInvalid, p, err)
		}
		v[i] = f
	}
	r := Region{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks every fraction is inside [0,1] and the rectangle is not
// empty.
func (r Region) Validate() error {
	for _, f := range []float64{r.Left, r.Top, r.Right, r.Bottom} {
		if math.IsNaN(f) || f < 0 || f > 1 {
			return fmt.Errorf("%w: fraction %v outside [0,1]", ErrInvalid, f)
		}
	}
	if r.Left >= r.Right || r.Top >= r.Bottom {
		return fmt.Errorf("%w: %s is empty", ErrInvalid, r)
	}
	return nil
}

func (r Region) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", r.Left, r.Top, r.Right, r.Bottom)
}

// Rect returns the pixel rectangle the region covers inside bounds.
func (r Region) Rect(bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x0 := bounds.Min.X + int(math.Floor(w*r.Left))
	y0 := bounds.Min.Y + int(math.Floor(h*r.Top))
	x1 := bounds.Min.X + int(math.Floor(w*r.Right))
	y1 := bounds.Min.Y + int(math.Floor(h*r.Bottom))
	// keep at least one pixel so tiny images still produce a crop
	if x1 <= x0 && bounds.Dx() > 0 {
		x1 = x0 + 1
	}
	if y1 <= y0 && bounds.Dy() > 0 {
		y1 = y0 + 1
	}
	return image.Rect(x0, y0, x1, y1).Intersect(bounds)
}

// Crop returns the sub-image covered by r and its top-left corner relative to
// the source origin. The source is not modified.
func (r Region) Crop(img image.Image) (*image.NRGBA, image.Point) {
	rect := r.Rect(img.Bounds())
	return imaging.Crop(img, rect), rect.Min.Sub(img.Bounds().Min)
}
