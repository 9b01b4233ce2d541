// Package docreader turns guideline files (PDF, plain text, markdown) into text.
package docreader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/guideline-extractor/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	MaxPages  int    // 0 = no limit

	// OCR fallback for scanned PDFs without a text layer.
	OCR           bool
	Pdftoppm      string // if empty -> "pdftoppm"
	Tesseract     string // if empty -> "tesseract"
	TesseractLang string // default "chi_sim+eng"
	TessdataDir   string
	DPI           int // default 300
}

// Result describes one successful read.
type Result struct {
	Text     string
	Pages    int
	Method   string // "pdftotext" | "pdf-native" | "pdf-ocr" | "plain"
	Duration time.Duration
	Warnings []string
}

type Reader struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "chi_sim+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Reader{cfg: cfg, runner: execRunner{log: logger}, logger: logger}
}

// WithRunner swaps the command runner (tests).
func (r *Reader) WithRunner(run Runner) *Reader {
	if run != nil {
		r.runner = run
	}
	return r
}

// Read returns the text of the file at path, or "" when it cannot be read.
// Failures are logged, never returned.
func (r *Reader) Read(ctx context.Context, path string) string {
	res, err := r.Extract(ctx, path)
	if err != nil {
		r.logger.Error("docreader.read.failed", "path", path, "error", err)
		return ""
	}
	return res.Text
}

// Extract picks a strategy based on file extension.
func (r *Reader) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	r.logger.Debug("docreader.extract.start", "path", path, "ext", ext)

	var (
		res Result
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = r.extractPDF(ctx, path)
	case constants.TEXT:
		res, err = readPlain(path)
	default:
		return Result{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	r.logger.Info("docreader.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func readPlain(path string) (Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read file: %w", err)
	}
	text := strings.ToValidUTF8(string(b), "\uFFFD")
	text = strings.TrimPrefix(text, "\ufeff")
	return Result{Text: strings.TrimSpace(text), Pages: 1, Method: "plain"}, nil
}
