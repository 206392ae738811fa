package main

import (
	"context"
	"fmt"
	"log"

	"github.com/alexflint/go-arg"
	"github.com/disintegration/imaging"

	"invoicescan/pkg/config"
	"invoicescan/pkg/fields"
	"invoicescan/pkg/ocr"
	"invoicescan/pkg/ocr/engines"
	"invoicescan/pkg/region"
)

// debug_ocr runs crop + preprocess + OCR on one image and prints every line
// with its box, then the extracted fields.
func main() {
	var a struct {
		config.OCR
		File       string `arg:"positional,required" help:"image file to OCR"`
		Region     string `arg:"--region,env:CROP_REGION" default:"upper-right"`
		PreprocOut string `arg:"--preproc-out" help:"save the preprocessed crop here"`
	}
	arg.MustParse(&a)
	r, err := region.Parse(a.Region)
	if err != nil {
		log.Fatalf("region: %v", err)
	}
	img, err := imaging.Open(a.File, imaging.AutoOrientation(true))
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	crop, offset := r.Crop(img)
	prepped, scale := ocr.Preprocess(crop, a.PreprocessOptions())
	if a.PreprocOut != "" {
		if err := imaging.Save(prepped, a.PreprocOut); err != nil {
			log.Fatalf("save preproc: %v", err)
		}
	}

	engine, err := engines.New(a.OCR)
	if err != nil {
		log.Fatalf("%v", err)
	}
	lines, err := engine.Recognize(context.Background(), prepped)
	if err != nil {
		log.Fatalf("ocr error: %v", err)
	}
	lines = ocr.ScaleLines(lines, scale)
	fmt.Printf("crop=%v offset=%v scale=%.2f engine=%s\n", crop.Bounds(), offset, scale, engine.Name())
	for i, l := range lines {
		fmt.Printf("%2d %.2f %v %q\n", i, l.Confidence, l.Box.Add(offset), l.Text)
	}
	fs := fields.Extract(lines)
	for _, f := range fields.All {
		fmt.Printf("%s=%q\n", f, fs.Value(f))
	}
}
