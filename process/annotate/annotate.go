// Package annotate writes per-image debug artifacts: the original image with
// the recognized line boxes drawn on it, and the lines as JSON.
package annotate

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/goccy/go-json"

	"invoicescan/pkg/ocr"
)

// Suffix marks generated images so batch runs over the same directory skip
// them.
const Suffix = ".annotated.png"

// PathFor returns the artifact path inside dir for the given source image and
// extension (Suffix or ".json").
func PathFor(dir, source, ext string) string {
	base := filepath.Base(source)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+ext)
}

// DrawBoxes draws every line box, shifted by the crop offset, on a copy of src
// and saves it as PNG at dst. Each box is labelled "text (confidence)" on its
// right side, vertically centred.
func DrawBoxes(src image.Image, lines []ocr.TextLine, offset image.Point, dst string) error {
	dc := gg.NewContextForImage(src)
	dc.SetLineWidth(2)
	for _, l := range lines {
		r := l.Box.Add(offset)
		dc.SetRGB(1, 0, 0)
		dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
		dc.Stroke()
		label := fmt.Sprintf("%s (%.2f)", l.Text, l.Confidence)
		dc.DrawStringAnchored(label, float64(r.Max.X+5), float64(r.Min.Y)+float64(r.Dy())/2, 0, 0.5)
	}
	if err := dc.SavePNG(dst); err != nil {
		return fmt.Errorf("save annotated %s: %w", dst, err)
	}
	return nil
}

// Dump is the JSON shape of one image's recognized lines.
type Dump struct {
	SourceFile string         `json:"source_file"`
	Engine     string         `json:"engine"`
	OffsetX    int            `json:"offset_x"`
	OffsetY    int            `json:"offset_y"`
	Lines      []ocr.TextLine `json:"lines"`
}

// DumpJSON writes d to dst, indented.
func DumpJSON(dst string, d Dump) error {
	if d.Lines == nil {
		d.Lines = []ocr.TextLine{}
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dump: %w", err)
	}
	if err := os.WriteFile(dst, b, 0o644); err != nil {
		return fmt.Errorf("write dump %s: %w", dst, err)
	}
	return nil
}

// LoadJSON reads a dump written by DumpJSON.
func LoadJSON(path string) (Dump, error) {
	var d Dump
	b, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("decode dump %s: %w", path, err)
	}
	return d, nil
}
