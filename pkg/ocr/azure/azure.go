// Package azure recognizes printed text with Azure Computer Vision.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/disintegration/imaging"

	"invoicescan/pkg/ocr"
)

// recognizer is the slice of the computervision client the engine needs.
type recognizer interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, imageParameter io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// Engine is an ocr.Engine calling the Computer Vision OCR endpoint.
type Engine struct {
	client   recognizer
	language computervision.OcrLanguages
	minConf  float64
}

// New creates an Azure engine for the given endpoint and subscription key.
// language is an OCR language code such as "en"; empty means English.
func New(endpoint, apiKey, language string, minConf float64) *Engine {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)
	if language == "" {
		language = string(computervision.En)
	}
	return &Engine{
		client:   client,
		language: computervision.OcrLanguages(language),
		minConf:  minConf,
	}
}

func (e *Engine) Name() string { return "azure" }

// Recognize uploads img as JPEG and returns the recognized lines.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]ocr.TextLine, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, &ocr.Failure{Engine: e.Name(), Err: fmt.Errorf("encode image: %w", err)}
	}
	result, err := e.client.RecognizePrintedTextInStream(ctx, true, io.NopCloser(&buf), e.language)
	if err != nil {
		return nil, &ocr.Failure{Engine: e.Name(), Err: fmt.Errorf("recognize printed text: %w", err)}
	}
	lines := ocr.Normalize(fromResult(result), e.minConf)
	if len(lines) == 0 {
		return nil, &ocr.Failure{Engine: e.Name(), Err: ocr.ErrNoText}
	}
	return lines, nil
}

// fromResult flattens regions into lines. The printed text API does not score
// lines, so every line carries confidence 1.
func fromResult(result computervision.OcrResult) []ocr.TextLine {
	if result.Regions == nil {
		return nil
	}
	var lines []ocr.TextLine
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			box, ok := parseBoundingBox(line.BoundingBox)
			if !ok || line.Words == nil {
				continue
			}
			var text strings.Builder
			for _, word := range *line.Words {
				if word.Text == nil {
					continue
				}
				text.WriteString(*word.Text)
				text.WriteString(" ")
			}
			lines = append(lines, ocr.TextLine{
				Text:       strings.TrimSpace(text.String()),
				Box:        box,
				Confidence: 1,
			})
		}
	}
	return lines
}

// parseBoundingBox parses the "x,y,width,height" string the API returns.
func parseBoundingBox(s *string) (image.Rectangle, bool) {
	if s == nil {
		return image.Rectangle{}, false
	}
	parts := strings.Split(*s, ",")
	if len(parts) < 4 {
		return image.Rectangle{}, false
	}
	var v [4]int
	for i := 0; i < 4; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return image.Rectangle{}, false
		}
		v[i] = n
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), true
}
