package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/guideline-extractor/constants"
	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/docreader"
	"github.com/joseph-ayodele/guideline-extractor/internal/export"
	"github.com/joseph-ayodele/guideline-extractor/internal/ingest"
	"github.com/joseph-ayodele/guideline-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/guideline-extractor/internal/pipeline"
	"github.com/joseph-ayodele/guideline-extractor/internal/prompt"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory of guideline documents (required)")
		out        = flag.String("out", "", "directory for .xlsx output (optional, defaults to next to each document)")
		watch      = flag.Bool("watch", false, "keep watching the directory for new documents after the first pass")
		skipHidden = flag.Bool("skip-hidden", true, "skip hidden files and directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: common.ParseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := openai.NewClient(openai.Config{
		APIURL:       cfg.LLM.APIURL,
		APIKey:       cfg.LLM.APIKey,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      cfg.LLM.Timeout,
		SystemPrompt: cfg.LLM.SystemPrompt,
	}, logger)
	orchestrator := pipeline.NewOrchestrator(client, prompt.Default{}, pipeline.Options{
		AtomConcurrency: cfg.Tasks.AtomConcurrency,
	}, logger)
	reader := docreader.New(docreader.Config{
		Pdftotext:     cfg.Reader.Pdftotext,
		MaxPages:      cfg.Reader.MaxPages,
		OCR:           cfg.Reader.OCR,
		Pdftoppm:      cfg.Reader.Pdftoppm,
		Tesseract:     cfg.Reader.Tesseract,
		TesseractLang: cfg.Reader.TesseractLang,
		TessdataDir:   cfg.Reader.TessdataDir,
		DPI:           cfg.Reader.DPI,
	}, logger)

	batch := ingest.NewBatch(reader, orchestrator, export.NewService(nil, logger), *out, logger)

	start := time.Now()
	results, stats, err := batch.ProcessDirectory(ctx, *dir, *skipHidden)
	if err != nil {
		logger.Error("batch processing failed", "error", err)
		os.Exit(1)
	}
	records := 0
	for _, r := range results {
		records += r.Records
	}
	logger.Info("batch processing complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"failed", stats.Failed,
		"records", records,
		"elapsed_ms", time.Since(start).Milliseconds())

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents found: %d\n", stats.Matched)
	fmt.Printf("- Failures: %d\n", stats.Failed)
	fmt.Printf("- Records extracted: %d\n", records)

	if !*watch {
		if stats.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	logger.Info("watching for new documents", "dir", *dir)
	err = batch.Watch(ctx, ingest.WatchConfig{
		Roots:       []string{*dir},
		AllowedExts: constants.AllowedExtensions,
		Debounce:    500 * time.Millisecond,
	}, func(r ingest.FileResult) {
		if r.Err != "" {
			printError("failed: %s: %s\n", r.Path, r.Err)
			return
		}
		fmt.Printf("wrote %s (%d records)\n", r.Output, r.Records)
	})
	if err != nil {
		logger.Error("watch failed", "error", err)
		os.Exit(1)
	}
}
