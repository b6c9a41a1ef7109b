package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// extractDOCX renders every paragraph and table of the document body, one per line.
// Legacy binary .doc files are routed here too and fail to parse.
func (e *Extractor) extractDOCX(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, err
	}
	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return Result{}, fmt.Errorf("parse docx: %w", err)
	}

	var sb strings.Builder
	for _, it := range doc.Document.Body.Items {
		s, ok := it.(fmt.Stringer)
		if !ok {
			continue
		}
		line := s.String()
		if strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return Result{Text: sb.String()}, nil
}
