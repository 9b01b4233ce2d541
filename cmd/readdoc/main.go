package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/docreader"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "readdoc <file.pdf|file.txt|file.md>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	r := docreader.New(docreader.Config{
		Pdftotext:     cfg.Reader.Pdftotext,
		MaxPages:      cfg.Reader.MaxPages,
		OCR:           cfg.Reader.OCR,
		Pdftoppm:      cfg.Reader.Pdftoppm,
		Tesseract:     cfg.Reader.Tesseract,
		TesseractLang: cfg.Reader.TesseractLang,
		TessdataDir:   cfg.Reader.TessdataDir,
		DPI:           cfg.Reader.DPI,
	}, logger)

	res, err := r.Extract(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"warnings", res.Warnings,
		"duration_ms", res.Duration.Milliseconds(),
	)
	fmt.Println(res.Text)
}
