// Package tesseract recognizes text lines with the local Tesseract install
// through gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"invoicescan/pkg/ocr"
)

// Options configures the gosseract client created for every image.
type Options struct {
	Languages     []string
	PageSegMode   int // 0 keeps the Tesseract default
	MinConfidence float64
}

// Engine is an ocr.Engine backed by gosseract. A fresh client is created per
// call so one Engine can be shared by concurrent HTTP handlers.
type Engine struct {
	opts          Options
	clientFactory func() *gosseract.Client
}

// New returns a Tesseract engine. English is used when no language is given.
func New(opts Options) *Engine {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"eng"}
	}
	return &Engine{opts: opts, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs Tesseract on img and returns its text lines.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]ocr.TextLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, e.fail(fmt.Errorf("encode image: %w", err))
	}

	client := e.clientFactory()
	defer client.Close()
	if err := client.SetLanguage(e.opts.Languages...); err != nil {
		return nil, e.fail(fmt.Errorf("set languages %s: %w", strings.Join(e.opts.Languages, "+"), err))
	}
	if e.opts.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(e.opts.PageSegMode)); err != nil {
			return nil, e.fail(fmt.Errorf("set page seg mode: %w", err))
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, e.fail(fmt.Errorf("set image: %w", err))
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, e.fail(fmt.Errorf("recognize lines: %w", err))
	}
	lines := fromBoxes(boxes, e.opts.MinConfidence)
	logrus.Debugf("tesseract boxes=%d lines=%d", len(boxes), len(lines))
	if len(lines) == 0 {
		return nil, e.fail(ocr.ErrNoText)
	}
	return lines, nil
}

func (e *Engine) fail(err error) error {
	return &ocr.Failure{Engine: e.Name(), Err: err}
}

// fromBoxes converts gosseract line boxes (confidence 0-100) into TextLines.
func fromBoxes(boxes []gosseract.BoundingBox, minConf float64) []ocr.TextLine {
	lines := make([]ocr.TextLine, 0, len(boxes))
	for _, b := range boxes {
		lines = append(lines, ocr.TextLine{
			Text:       b.Word,
			Box:        b.Box,
			Confidence: b.Confidence / 100.0,
		})
	}
	return ocr.Normalize(lines, minConf)
}
