// Package config holds the command line / environment settings and the
// configuration error reported before any work starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"invoicescan/pkg/ocr"
	"invoicescan/pkg/region"
)

// Error is a fatal configuration problem: bad region, bad paths or an
// unknown engine. Nothing has been processed when it is returned.
type Error struct {
	Field  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// LoadDotEnv loads key=value pairs from path (default .env) without
// overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// OCR selects and tunes the recognition engine.
type OCR struct {
	Engine        string  `arg:"--engine,env:OCR_ENGINE" default:"tesseract" help:"OCR engine: tesseract or azure"`
	Language      string  `arg:"--lang,env:OCR_LANG" default:"eng" help:"tesseract languages joined by + (azure: language code, e.g. en)"`
	PageSegMode   int     `arg:"--psm,env:OCR_PSM" help:"tesseract page segmentation mode (0 keeps the default)"`
	MinConfidence float64 `arg:"--min-confidence,env:OCR_MIN_CONFIDENCE" help:"drop recognized lines below this confidence (0-1)"`
	Preprocess    bool    `arg:"--preprocess,env:OCR_PREPROCESS" default:"true" help:"grayscale/contrast/sharpen/upscale before OCR"`
	Threshold     uint8   `arg:"--threshold,env:OCR_THRESHOLD" help:"global binarization threshold (0 disables)"`
	Adaptive      bool    `arg:"--adaptive,env:OCR_ADAPTIVE" help:"adaptive binarization instead of a global threshold"`
	AzureEndpoint string  `arg:"--azure-endpoint,env:AZURE_CV_ENDPOINT" help:"Computer Vision endpoint"`
	AzureKey      string  `arg:"--azure-key,env:AZURE_CV_KEY" help:"Computer Vision subscription key"`
}

// Languages splits the tesseract language list.
func (o OCR) Languages() []string {
	var out []string
	for _, l := range strings.Split(o.Language, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// PreprocessOptions turns the flags into ocr.PreprocessOptions.
func (o OCR) PreprocessOptions() ocr.PreprocessOptions {
	if !o.Preprocess {
		return ocr.PreprocessOptions{}
	}
	p := ocr.DefaultPreprocess()
	p.Threshold = o.Threshold
	p.Adaptive = o.Adaptive
	return p
}

// Validate checks the engine selection.
func (o OCR) Validate() error {
	switch o.Engine {
	case "tesseract":
	case "azure":
		if o.AzureEndpoint == "" || o.AzureKey == "" {
			return &Error{Field: "engine", Reason: "azure needs --azure-endpoint and --azure-key"}
		}
	default:
		return &Error{Field: "engine", Reason: fmt.Sprintf("unknown engine %q", o.Engine)}
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return &Error{Field: "min-confidence", Reason: "must be within [0,1]"}
	}
	return nil
}

// Batch is the configuration of a batch run, passed explicitly to the
// orchestrator.
type Batch struct {
	OCR
	InputDir      string `arg:"-i,--input-dir,env:INPUT_DIR" default:"datasets" help:"directory of invoice images"`
	OutputPath    string `arg:"-o,--output,env:OUTPUT_PATH" default:"output/clients.xlsx" help:"spreadsheet to write"`
	Region        string `arg:"--region,env:CROP_REGION" default:"upper-right" help:"preset (upper-right, right-half, top-half, ...) or left,top,right,bottom fractions"`
	IncludeSource bool   `arg:"--include-source,env:INCLUDE_SOURCE" default:"true" help:"add a source_file column"`
	AnnotateDir   string `arg:"--annotate-dir,env:ANNOTATE_DIR" help:"write originals with OCR boxes drawn here"`
	DumpDir       string `arg:"--dump-dir,env:DUMP_DIR" help:"write recognized lines as JSON here"`
	DBDSN         string `arg:"--db-dsn,env:DB_DSN" help:"postgres DSN; when set every run is stored"`
}

// Crop parses the configured region.
func (b Batch) Crop() (region.Region, error) {
	r, err := region.Parse(b.Region)
	if err != nil {
		return region.Region{}, &Error{Field: "region", Reason: "invalid region", Err: err}
	}
	return r, nil
}

// Validate checks paths, region and engine before anything is processed.
func (b Batch) Validate() error {
	if err := b.OCR.Validate(); err != nil {
		return err
	}
	if _, err := b.Crop(); err != nil {
		return err
	}
	return ValidatePaths(b.InputDir, b.OutputPath)
}

// ValidatePaths checks the input directory exists and the output file's
// parent directory exists.
func ValidatePaths(inputDir, outputPath string) error {
	if inputDir == "" {
		return &Error{Field: "input-dir", Reason: "required"}
	}
	fi, err := os.Stat(inputDir)
	if err != nil {
		return &Error{Field: "input-dir", Reason: "cannot access", Err: err}
	}
	if !fi.IsDir() {
		return &Error{Field: "input-dir", Reason: inputDir + " is not a directory"}
	}
	if outputPath == "" {
		return &Error{Field: "output", Reason: "required"}
	}
	parent := filepath.Dir(outputPath)
	pi, err := os.Stat(parent)
	if err != nil {
		return &Error{Field: "output", Reason: "parent directory not accessible", Err: err}
	}
	if !pi.IsDir() {
		return &Error{Field: "output", Reason: parent + " is not a directory"}
	}
	return nil
}

// Serve configures the HTTP extraction server.
type Serve struct {
	OCR
	Addr         string `arg:"--addr,env:ADDR" default:":8081" help:"listen address"`
	Region       string `arg:"--region,env:CROP_REGION" default:"upper-right" help:"crop region"`
	JWTSecret    string `arg:"--jwt-secret,env:JWT_SECRET" help:"HMAC secret for access tokens"`
	PasswordHash string `arg:"--password-hash,env:SERVE_PASSWORD_HASH" help:"bcrypt hash; when set /extract requires a token from /login"`
	DBDSN        string `arg:"--db-dsn,env:DB_DSN" help:"postgres DSN for GET /records"`
	MaxUpload    int64  `arg:"--max-upload,env:MAX_UPLOAD_BYTES" default:"10485760" help:"largest accepted image in bytes"`
}

// Validate checks engine, region and auth settings.
func (s Serve) Validate() error {
	if err := s.OCR.Validate(); err != nil {
		return err
	}
	if _, err := region.Parse(s.Region); err != nil {
		return &Error{Field: "region", Reason: "invalid region", Err: err}
	}
	if s.PasswordHash != "" && s.JWTSecret == "" {
		return &Error{Field: "jwt-secret", Reason: "required when a password hash is configured"}
	}
	return nil
}
