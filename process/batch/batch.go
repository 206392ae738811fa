// Package batch runs crop -> OCR -> field extraction over a directory of
// invoice images and writes one spreadsheet row per image.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"invoicescan/models"
	"invoicescan/pkg/config"
	"invoicescan/pkg/fields"
	"invoicescan/pkg/ocr"
	"invoicescan/pkg/region"
	"invoicescan/process/annotate"
	"invoicescan/process/report"
)

// Sink receives every completed run, e.g. the Postgres store.
type Sink interface {
	SaveRun(ctx context.Context, run models.ScanRun, records []models.ScanRecord) error
}

// Options is the explicit configuration of a Processor.
type Options struct {
	InputDir      string
	OutputPath    string
	Region        region.Region
	Preprocess    ocr.PreprocessOptions
	IncludeSource bool
	AnnotateDir   string // optional
	DumpDir       string // optional
	Sink          Sink   // optional
}

// OptionsFromConfig converts the command line configuration.
func OptionsFromConfig(c config.Batch) (Options, error) {
	if err := c.Validate(); err != nil {
		return Options{}, err
	}
	r, err := c.Crop()
	if err != nil {
		return Options{}, err
	}
	return Options{
		InputDir:      c.InputDir,
		OutputPath:    c.OutputPath,
		Region:        r,
		Preprocess:    c.PreprocessOptions(),
		IncludeSource: c.IncludeSource,
		AnnotateDir:   c.AnnotateDir,
		DumpDir:       c.DumpDir,
	}, nil
}

// LoadError is a per-file failure to open or decode an image.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FileResult is the outcome for one input file. Err is nil on success, or
// the *LoadError / *ocr.Failure that was recovered into a blank record.
type FileResult struct {
	Record models.ExtractedRecord
	Lines  []ocr.TextLine // in crop coordinates
	Offset image.Point    // crop origin inside the source image
	Err    error
}

// Failed reports whether the file was recovered with blank fields.
func (r FileResult) Failed() bool { return r.Err != nil }

// Result is one complete run.
type Result struct {
	RunID string
	Files []FileResult
}

// Records returns the result table: one record per input file, in order.
func (r *Result) Records() []models.ExtractedRecord {
	out := make([]models.ExtractedRecord, len(r.Files))
	for i, f := range r.Files {
		out[i] = f.Record
	}
	return out
}

// Failed counts recovered files.
func (r *Result) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Failed() {
			n++
		}
	}
	return n
}

// Extractor turns one decoded image into a record: crop, preprocess,
// recognize, extract. It holds no per-image state.
type Extractor struct {
	engine     ocr.Engine
	region     region.Region
	preprocess ocr.PreprocessOptions
}

// NewExtractor validates the engine and region.
func NewExtractor(engine ocr.Engine, r region.Region, pre ocr.PreprocessOptions) (*Extractor, error) {
	if engine == nil {
		return nil, &config.Error{Field: "engine", Reason: "no OCR engine"}
	}
	if err := r.Validate(); err != nil {
		return nil, &config.Error{Field: "region", Reason: "invalid region", Err: err}
	}
	return &Extractor{engine: engine, region: r, preprocess: pre}, nil
}

// EngineName names the OCR engine in use.
func (e *Extractor) EngineName() string { return e.engine.Name() }

// Processor runs batches with one engine and one configuration.
type Processor struct {
	*Extractor
	opts Options
	log  logrus.FieldLogger
}

// New validates opts and returns a Processor. Configuration problems are
// returned as *config.Error before any file is touched.
func New(engine ocr.Engine, opts Options, log logrus.FieldLogger) (*Processor, error) {
	ex, err := NewExtractor(engine, opts.Region, opts.Preprocess)
	if err != nil {
		return nil, err
	}
	if err := config.ValidatePaths(opts.InputDir, opts.OutputPath); err != nil {
		return nil, err
	}
	for field, dir := range map[string]string{"annotate-dir": opts.AnnotateDir, "dump-dir": opts.DumpDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &config.Error{Field: field, Reason: "cannot create", Err: err}
		}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{Extractor: ex, opts: opts, log: log}, nil
}

// Run processes every recognized image in the input directory sequentially
// and writes the report once. Per-file failures never abort the run; only a
// *config.Error, a *report.WriteError or context cancellation is returned.
// The Result is returned even on a write error so the caller can retry.
func (p *Processor) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	files, err := ListImageFiles(p.opts.InputDir)
	if err != nil {
		return nil, &config.Error{Field: "input-dir", Reason: "cannot list", Err: err}
	}
	res := &Result{RunID: uuid.NewString(), Files: make([]FileResult, 0, len(files))}
	p.log.WithField("run", res.RunID).Infof("Scanning %d files in %s (engine=%s region=%s)", len(files), p.opts.InputDir, p.engine.Name(), p.opts.Region)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		fr := p.ProcessFile(ctx, path)
		entry := p.log.WithField("file", path)
		if fr.Failed() {
			entry.Warnf("recovered with blank record: %v", fr.Err)
		} else {
			entry.Debugf("name=%q address=%q tax_id=%q lines=%d", fr.Record.ClientName, fr.Record.ClientAddress, fr.Record.TaxID, len(fr.Lines))
		}
		res.Files = append(res.Files, fr)
	}

	if err := report.Write(p.opts.OutputPath, res.Records(), p.opts.IncludeSource); err != nil {
		return res, err
	}
	p.log.WithField("run", res.RunID).Infof("Wrote %d rows (%d failed) to %s in %s", len(res.Files), res.Failed(), p.opts.OutputPath, time.Since(start).Round(time.Millisecond))
	p.persist(ctx, res)
	return res, nil
}

// ProcessFile loads path and extracts its record. Debug artifacts are written
// when configured; failing to write them only logs.
func (p *Processor) ProcessFile(ctx context.Context, path string) FileResult {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return FileResult{
			Record: models.ExtractedRecord{SourceFile: path},
			Err:    &LoadError{Path: path, Err: err},
		}
	}
	fr := p.ExtractImage(ctx, img, path)
	p.writeArtifacts(img, fr)
	return fr
}

// ExtractImage crops, preprocesses, recognizes and extracts one decoded
// image. source is recorded as the record's SourceFile.
func (e *Extractor) ExtractImage(ctx context.Context, img image.Image, source string) FileResult {
	crop, offset := e.region.Crop(img)
	prepped, scale := ocr.Preprocess(crop, e.preprocess)
	lines, err := e.engine.Recognize(ctx, prepped)
	if err != nil {
		var f *ocr.Failure
		if !errors.As(err, &f) {
			err = &ocr.Failure{Engine: e.engine.Name(), Err: err}
		}
		return FileResult{Record: models.ExtractedRecord{SourceFile: source}, Offset: offset, Err: err}
	}
	lines = ocr.ScaleLines(lines, scale)
	fs := fields.Extract(lines)
	return FileResult{
		Record: models.ExtractedRecord{
			ClientName:    fs.ClientName,
			ClientAddress: fs.ClientAddress,
			TaxID:         fs.TaxID,
			SourceFile:    source,
		},
		Lines:  lines,
		Offset: offset,
	}
}

func (p *Processor) writeArtifacts(img image.Image, fr FileResult) {
	source := fr.Record.SourceFile
	if p.opts.AnnotateDir != "" {
		dst := annotate.PathFor(p.opts.AnnotateDir, source, annotate.Suffix)
		if err := annotate.DrawBoxes(img, fr.Lines, fr.Offset, dst); err != nil {
			p.log.WithField("file", source).Warnf("annotate: %v", err)
		}
	}
	if p.opts.DumpDir != "" {
		dst := annotate.PathFor(p.opts.DumpDir, source, ".json")
		d := annotate.Dump{SourceFile: source, Engine: p.engine.Name(), OffsetX: fr.Offset.X, OffsetY: fr.Offset.Y, Lines: fr.Lines}
		if err := annotate.DumpJSON(dst, d); err != nil {
			p.log.WithField("file", source).Warnf("dump: %v", err)
		}
	}
}

// persist hands the run to the sink. Failures are logged: the spreadsheet is
// already written.
func (p *Processor) persist(ctx context.Context, res *Result) {
	if p.opts.Sink == nil {
		return
	}
	run := models.ScanRun{
		RunID:      res.RunID,
		InputDir:   p.opts.InputDir,
		OutputPath: p.opts.OutputPath,
		Files:      len(res.Files),
		Failed:     res.Failed(),
	}
	recs := make([]models.ScanRecord, len(res.Files))
	for i, f := range res.Files {
		recs[i] = models.ScanRecord{
			RunID:         res.RunID,
			SourceFile:    f.Record.SourceFile,
			ClientName:    f.Record.ClientName,
			ClientAddress: f.Record.ClientAddress,
			TaxID:         f.Record.TaxID,
			Failed:        f.Failed(),
		}
		if f.Err != nil {
			recs[i].FailedReason = ocr.Snippet(f.Err.Error(), 250)
		}
	}
	if err := p.opts.Sink.SaveRun(ctx, run, recs); err != nil {
		p.log.WithField("run", res.RunID).Errorf("store run: %v", err)
	}
}
