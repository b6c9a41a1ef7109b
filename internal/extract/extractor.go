package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/brd-breakdown/constants"
)

type Config struct {
	MaxPDFPages int // 0 = no limit
}

type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract picks a decoder based on the extension of filename.
func (e *Extractor) Extract(ctx context.Context, path, filename string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(filename))
	format := constants.MapExtToFormat(filename)
	e.logger.Debug("extract.start", "filename", filename, "ext", ext, "format", format)

	var (
		res Result
		err error
	)
	switch format {
	case constants.TXT:
		res, err = e.extractTXT(path)
	case constants.PDF:
		res, err = e.extractPDF(path)
	case constants.DOCX:
		res, err = e.extractDOCX(path)
	default:
		e.logger.Warn("extract.unsupported", "filename", filename, "ext", ext)
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, "."+ext)
	}
	if err != nil {
		e.logger.Error("extract.failed", "filename", filename, "format", format, "error", err)
		return Result{Format: format}, &ExtractionError{Format: format, Err: err}
	}

	res.Format = format
	res.Text = Normalize(res.Text)
	res.Duration = time.Since(start)
	e.logger.Info("extract.done",
		"filename", filename,
		"format", format,
		"pages", res.Pages,
		"chars", len(res.Text),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractTXT(path string) (Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	txt := string(b)
	if !utf8.ValidString(txt) {
		txt = strings.ToValidUTF8(txt, "\uFFFD")
	}
	return Result{Text: strings.TrimPrefix(txt, "\uFEFF")}, nil
}

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reMultiSpace = regexp.MustCompile(`[ \t]{2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// Normalize unifies line endings, collapses runs of blanks and blank lines, and
// trims the result. Single line breaks are kept.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reMultiSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
