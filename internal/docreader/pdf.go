package docreader

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF prefers pdftotext, falls back to the in-process parser when the binary
// is missing or yields no text, and finally to OCR when that is enabled.
func (r *Reader) extractPDF(ctx context.Context, path string) (Result, error) {
	text, pages, err := r.pdfToText(ctx, path)
	if err == nil && strings.TrimSpace(text) != "" {
		return Result{Text: strings.TrimSpace(text), Pages: pages, Method: "pdftotext"}, nil
	}

	var warnings []string
	if err != nil {
		warnings = append(warnings, err.Error())
	} else {
		warnings = append(warnings, "pdftotext produced no text")
	}
	r.logger.Warn("docreader.pdf.fallback", "path", path, "reason", warnings[0])

	text, pages, nerr := nativePDFText(path, r.cfg.MaxPages)
	if nerr == nil && (strings.TrimSpace(text) != "" || !r.cfg.OCR) {
		return Result{Text: strings.TrimSpace(text), Pages: pages, Method: "pdf-native", Warnings: warnings}, nil
	}
	if !r.cfg.OCR {
		return Result{Warnings: warnings}, fmt.Errorf("pdf text: %w", nerr)
	}
	if nerr != nil {
		warnings = append(warnings, nerr.Error())
	} else {
		warnings = append(warnings, "pdf-native produced no text")
	}

	r.logger.Info("docreader.pdf.ocr", "path", path, "lang", r.cfg.TesseractLang, "dpi", r.cfg.DPI)
	text, pages, owarn, oerr := r.pdfToOCR(ctx, path)
	warnings = append(warnings, owarn...)
	if oerr != nil {
		return Result{Warnings: warnings}, fmt.Errorf("pdf ocr: %w", oerr)
	}
	return Result{Text: text, Pages: pages, Method: "pdf-ocr", Warnings: warnings}, nil
}

func (r *Reader) pdfToText(ctx context.Context, path string) (string, int, error) {
	// pdftotext -layout -enc UTF-8 -eol unix [-l N] <path> -
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if r.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(r.cfg.MaxPages))
	}
	args = append(args, path, "-")

	out, errb, err := r.runner.Run(ctx, r.cfg.Pdftotext, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return "", 0, fmt.Errorf("%s: %w: %s", r.cfg.Pdftotext, err, truncate(msg, 512))
		}
		return "", 0, fmt.Errorf("%s: %w", r.cfg.Pdftotext, err)
	}
	text := string(out)
	// A form-feed \f separates pages; the last page is followed by one too.
	pages := strings.Count(strings.TrimRight(text, "\f\n"), "\f") + 1
	return text, pages, nil
}

func nativePDFText(path string, maxPages int) (text string, pages int, err error) {
	defer func() {
		// The parser panics on some malformed cross-reference tables.
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	if maxPages > 0 && total > maxPages {
		total = maxPages
	}

	var b strings.Builder
	for n := 1; n <= total; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		pt, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(pt)
		pages++
	}
	return b.String(), pages, nil
}
