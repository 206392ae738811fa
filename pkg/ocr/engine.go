package ocr

import (
	"context"
	"image"
)

// TextLine is one recognized line: text, its box in the pixel space of the
// image handed to the engine, and a confidence in [0,1].
type TextLine struct {
	Text       string          `json:"text"`
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
}

// Engine recognizes text lines in an image. Lines are returned in the
// engine's detection order, which is not guaranteed to be reading order.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) ([]TextLine, error)
}

// Texts returns the text of every line, in order.
func Texts(lines []TextLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// Normalize collapses whitespace in every line and drops empty lines and
// lines under minConf. Engines call it on their raw results.
func Normalize(lines []TextLine, minConf float64) []TextLine {
	out := make([]TextLine, 0, len(lines))
	for _, l := range lines {
		l.Text = normalizeOCRText(l.Text)
		if l.Text == "" {
			continue
		}
		if l.Confidence < minConf {
			continue
		}
		out = append(out, l)
	}
	return out
}

// ScaleLines maps boxes recognized on an image resized by factor back onto the
// original pixel space.
func ScaleLines(lines []TextLine, factor float64) []TextLine {
	if factor == 1 || factor <= 0 {
		return lines
	}
	out := make([]TextLine, len(lines))
	for i, l := range lines {
		l.Box = image.Rect(
			int(float64(l.Box.Min.X)/factor),
			int(float64(l.Box.Min.Y)/factor),
			int(float64(l.Box.Max.X)/factor),
			int(float64(l.Box.Max.Y)/factor),
		)
		out[i] = l
	}
	return out
}
