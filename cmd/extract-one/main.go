package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/docreader"
	"github.com/joseph-ayodele/guideline-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/guideline-extractor/internal/pipeline"
	"github.com/joseph-ayodele/guideline-extractor/internal/prompt"
)

// extract-one runs the full pipeline on a single document and prints the table as TSV.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage: extract-one <document>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: common.ParseLevel(cfg.Log.Level)}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	text := docreader.New(docreader.Config{
		Pdftotext:     cfg.Reader.Pdftotext,
		MaxPages:      cfg.Reader.MaxPages,
		OCR:           cfg.Reader.OCR,
		Pdftoppm:      cfg.Reader.Pdftoppm,
		Tesseract:     cfg.Reader.Tesseract,
		TesseractLang: cfg.Reader.TesseractLang,
		TessdataDir:   cfg.Reader.TessdataDir,
		DPI:           cfg.Reader.DPI,
	}, logger).Read(ctx, path)

	client := openai.NewClient(openai.Config{
		APIURL:       cfg.LLM.APIURL,
		APIKey:       cfg.LLM.APIKey,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      cfg.LLM.Timeout,
		SystemPrompt: cfg.LLM.SystemPrompt,
	}, logger)
	orch := pipeline.NewOrchestrator(client, prompt.Default{}, pipeline.Options{
		AtomConcurrency: cfg.Tasks.AtomConcurrency,
	}, logger)

	start := time.Now()
	tbl, err := orch.Extract(ctx, text, filepath.Base(path), func(percent int, message string) {
		logger.Info("progress", "percent", percent, "message", message)
	})
	if err != nil {
		logger.Error("extraction failed", "path", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	fmt.Println(strings.Join(tbl.Columns, "\t"))
	for _, r := range tbl.Records {
		fmt.Println(strings.Join(r.Fields(), "\t"))
	}
	logger.Info("extraction OK", "records", tbl.Len(), "duration_ms", time.Since(start).Milliseconds())
}
