package extract

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedFormat is returned for any extension outside constants.AllowedExtensions.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// TextExtractor turns an uploaded file into plain text. The handler is chosen
// from filename (the client-declared name), not from path, which is usually a
// temp file. The file is only read, never removed.
type TextExtractor interface {
	Extract(ctx context.Context, path, filename string) (Result, error)
}

type Result struct {
	Text     string
	Format   string // constants.TXT | constants.PDF | constants.DOCX
	Pages    int    // PDF only
	Duration time.Duration
}

// ExtractionError wraps a decoder failure for a supported format.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s text: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
