package batch

import (
	"os"
	"path/filepath"
	"strings"

	// decoders beyond the imaging defaults
	_ "golang.org/x/image/webp"

	"invoicescan/process/annotate"
)

// imageExts are the recognized input extensions (lower case).
var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

// IsSupportedExt reports whether name looks like an input invoice image.
func IsSupportedExt(name string) bool {
	// ignore our own annotated output to avoid recursive processing
	if strings.HasSuffix(strings.ToLower(name), annotate.Suffix) {
		return false
	}
	_, ok := imageExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ListImageFiles returns the recognized image files of dir in directory
// listing order (os.ReadDir sorts by name), as paths joined with dir.
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !IsSupportedExt(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
