// Package pipeline runs the staged guideline extraction: layout analysis, core
// segmentation, per-atom core extraction and edge extraction, merged into one table.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/guideline-extractor/internal/llm"
)

// ProgressFunc receives progress updates in percent (0..100) with a human-readable message.
// It is called synchronously from the running stage and must not block.
type ProgressFunc func(percent int, message string)

func (f ProgressFunc) report(percent int, message string) {
	if f != nil {
		f(percent, message)
	}
}

// generator issues one streamed completion and returns the cleaned answer text.
type generator struct {
	client llm.ChatStreamer
	log    *slog.Logger
}

func (g generator) generate(ctx context.Context, stage, filename, prompt string) (string, error) {
	start := time.Now()
	rc, err := g.client.ChatStream(ctx, prompt)
	if err != nil {
		g.log.Error("pipeline.stage.request_failed", "stage", stage, "filename", filename, "error", err)
		return "", fmt.Errorf("%s: %w", stage, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			g.log.Warn("pipeline.stage.stream_close_error", "stage", stage, "error", cerr)
		}
	}()

	raw, err := llm.Accumulate(ctx, rc, func(fragment string) {
		g.log.Debug("pipeline.stream.delta", "stage", stage, "fragment", fragment)
	})
	if err != nil {
		g.log.Error("pipeline.stage.stream_failed", "stage", stage, "filename", filename, "error", err, "received", len(raw))
		return "", fmt.Errorf("%s: %w", stage, err)
	}

	text := llm.StripThinkTags(raw)
	g.log.Info("pipeline.stage.done",
		"stage", stage,
		"filename", filename,
		"raw_bytes", len(raw),
		"text_bytes", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// generateObject is generate followed by Mapping-mode parsing. A malformed answer is fatal.
func (g generator) generateObject(ctx context.Context, stage, filename, prompt string) (map[string]any, error) {
	text, err := g.generate(ctx, stage, filename, prompt)
	if err != nil {
		return nil, err
	}
	obj, err := llm.ParseJSONObject(text, g.log.With("stage", stage))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stage, err)
	}
	return obj, nil
}

func newGenerator(client llm.ChatStreamer, logger *slog.Logger) generator {
	if logger == nil {
		logger = slog.Default()
	}
	return generator{client: client, log: logger}
}
