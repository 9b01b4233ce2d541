package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/guideline-extractor/internal/export"
	"github.com/joseph-ayodele/guideline-extractor/internal/pipeline"
	"github.com/joseph-ayodele/guideline-extractor/internal/table"
)

// DocumentReader turns a file into text, returning "" when it cannot.
type DocumentReader interface {
	Read(ctx context.Context, path string) string
}

// Extractor turns document text into a knowledge table.
type Extractor interface {
	Extract(ctx context.Context, document, filename string, progress pipeline.ProgressFunc) (table.Table, error)
}

// TableWriter persists one table as a workbook.
type TableWriter interface {
	WriteXLSXFile(path string, t table.Table) error
}

// FileResult is the outcome for one document.
type FileResult struct {
	Path     string
	Output   string
	Records  int
	Duration time.Duration
	Err      string
}

// Batch extracts documents one by one and writes one workbook per document.
type Batch struct {
	Reader    DocumentReader
	Extractor Extractor
	Writer    TableWriter
	OutDir    string // "" writes next to each source file
	Logger    *slog.Logger
}

func NewBatch(reader DocumentReader, extractor Extractor, writer TableWriter, outDir string, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{Reader: reader, Extractor: extractor, Writer: writer, OutDir: outDir, Logger: logger}
}

// ProcessDirectory scans root and processes every supported document in path order.
// A failing document is recorded and the batch moves on.
func (b *Batch) ProcessDirectory(ctx context.Context, root string, skipHidden bool) ([]FileResult, DirStats, error) {
	paths, stats, err := ScanDirectory(root, skipHidden)
	if err != nil {
		return nil, stats, err
	}
	b.Logger.Info("ingest.batch.scan", "root", root, "scanned", stats.Scanned, "matched", stats.Matched)

	results := make([]FileResult, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}
		res := b.ProcessFile(ctx, p)
		if res.Err != "" {
			stats.Failed++
		}
		results = append(results, res)
	}
	return results, stats, nil
}

// ProcessFile extracts one document and writes <name>.xlsx.
func (b *Batch) ProcessFile(ctx context.Context, path string) FileResult {
	start := time.Now()
	name := filepath.Base(path)
	res := FileResult{Path: path, Output: b.outputPath(path)}
	log := b.Logger.With("path", path)

	text := b.Reader.Read(ctx, path)
	tbl, err := b.Extractor.Extract(ctx, text, name, func(percent int, message string) {
		log.Debug("ingest.batch.progress", "progress", percent, "message", message)
	})
	if err != nil {
		res.Err = err.Error()
		res.Duration = time.Since(start)
		log.Error("ingest.batch.extract_failed", "error", err)
		return res
	}

	if dir := filepath.Dir(res.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			res.Err = fmt.Sprintf("create output dir: %v", err)
			return res
		}
	}
	if err := b.Writer.WriteXLSXFile(res.Output, tbl); err != nil {
		res.Err = err.Error()
		res.Duration = time.Since(start)
		log.Error("ingest.batch.write_failed", "output", res.Output, "error", err)
		return res
	}
	res.Records = tbl.Len()
	res.Duration = time.Since(start)
	log.Info("ingest.batch.file_done", "output", res.Output, "records", res.Records, "elapsed_ms", res.Duration.Milliseconds())
	return res
}

// Watch processes every document the watcher reports until ctx ends.
func (b *Batch) Watch(ctx context.Context, cfg WatchConfig, onResult func(FileResult)) error {
	if cfg.Logger == nil {
		cfg.Logger = b.Logger
	}
	events, errs, err := StartWatcher(ctx, cfg)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			res := b.ProcessFile(ctx, p)
			if onResult != nil {
				onResult(res)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			b.Logger.Warn("ingest.batch.watch_error", "error", err)
		}
	}
}

func (b *Batch) outputPath(src string) string {
	dir := b.OutDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	return filepath.Join(dir, export.XLSXName(src))
}
