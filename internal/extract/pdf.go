package extract

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

func (e *Extractor) extractPDF(path string) (res Result, err error) {
	// the decoder panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf decode panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	pages := r.NumPage()
	if e.cfg.MaxPDFPages > 0 && pages > e.cfg.MaxPDFPages {
		return Result{}, fmt.Errorf("pdf has %d pages, limit is %d", pages, e.cfg.MaxPDFPages)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return Result{}, err
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: string(b), Pages: pages}, nil
}
