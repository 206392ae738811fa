package ocr

import (
	"errors"
	"fmt"
)

// ErrNoText is returned when the engine recognizes nothing in an image.
var ErrNoText = errors.New("no text recognized")

// Failure wraps an engine error for one image. It is recoverable: the batch
// records a blank row and moves on.
type Failure struct {
	Engine string
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("ocr %s: %v", f.Engine, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }
