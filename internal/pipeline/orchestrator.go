package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/guideline-extractor/internal/llm"
	"github.com/joseph-ayodele/guideline-extractor/internal/prompt"
	"github.com/joseph-ayodele/guideline-extractor/internal/table"
)

const (
	coreProgressBase = 31
	coreProgressSpan = 70
)

// Options tune the orchestrator.
type Options struct {
	// AtomConcurrency bounds how many atoms are extracted at once; <= 1 is sequential.
	AtomConcurrency int
}

// Orchestrator sequences the four stages for one document and merges their output.
type Orchestrator struct {
	Logger  *slog.Logger
	Opts    Options
	Layout  *LayoutStage
	Segment *SegmentStage
	Core    *CoreStage
	Edge    *EdgeStage
}

// NewOrchestrator wires all stages to one text-generation client and prompt builder.
func NewOrchestrator(client llm.ChatStreamer, prompts prompt.Builder, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Logger:  logger,
		Opts:    opts,
		Layout:  NewLayoutStage(client, prompts, logger),
		Segment: NewSegmentStage(client, prompts, logger),
		Core:    NewCoreStage(client, prompts, logger),
		Edge:    NewEdgeStage(client, prompts, logger),
	}
}

// Extract turns document text into the knowledge table. Edge rows precede atom rows and
// atom rows follow segmentation order. Any stage failure aborts with no partial table.
// Empty text yields an empty table without any model call.
func (o *Orchestrator) Extract(ctx context.Context, document, filename string, progress ProgressFunc) (table.Table, error) {
	start := time.Now()
	log := o.Logger.With("filename", filename)

	if document == "" {
		log.Info("pipeline.extract.empty_document")
		progress.report(100, "document has no text")
		return table.Empty(), nil
	}
	progress.report(1, "extraction started")
	log.Info("pipeline.extract.start", "bytes", len(document))

	zones, err := o.Layout.Run(ctx, document, filename, progress)
	if err != nil {
		return table.Table{}, err
	}

	seg, err := o.Segment.Run(ctx, zones.Core, filename, progress)
	if err != nil {
		return table.Table{}, err
	}

	edgeText, err := o.Edge.Run(ctx, zones.Edge(), filename, progress)
	if err != nil {
		return table.Table{}, err
	}

	coreText, err := o.extractAtoms(ctx, seg, zones, filename, progress)
	if err != nil {
		return table.Table{}, err
	}

	out := table.Parse(edgeText + "\n" + coreText)

	elapsed := time.Since(start)
	log.Info("pipeline.extract.done",
		"atoms", len(seg.Atoms),
		"records", out.Len(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	progress.report(100, fmt.Sprintf("extraction finished in %.1fs", elapsed.Seconds()))
	return out, nil
}

// extractAtoms runs the core stage once per atom and joins the answers in atom order.
// Total == 0 means no fan-out.
func (o *Orchestrator) extractAtoms(ctx context.Context, seg Segmentation, zones Zones, filename string, progress ProgressFunc) (string, error) {
	if seg.Total <= 0 || len(seg.Atoms) == 0 {
		o.Logger.Info("pipeline.core.skipped", "filename", filename, "atoms", len(seg.Atoms), "total", seg.Total)
		return "", nil
	}

	step := float64(coreProgressSpan) / float64(seg.Total)
	results := make([]string, len(seg.Atoms))

	var (
		mu   sync.Mutex
		done int
	)
	advance := func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		// 100 is reserved for the finished table.
		pct := min(clampPercent(int(float64(coreProgressBase)+step*float64(done))), 99)
		progress.report(pct, fmt.Sprintf("extracted clinical question %d/%d", done, len(seg.Atoms)))
	}

	if o.Opts.AtomConcurrency <= 1 {
		for i, atom := range seg.Atoms {
			text, err := o.Core.Run(ctx, atom, zones.Reference, zones.Evidence, filename)
			if err != nil {
				return "", fmt.Errorf("atom %d: %w", i, err)
			}
			results[i] = text
			advance()
		}
		return strings.Join(results, "\n"), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Opts.AtomConcurrency)
	for i, atom := range seg.Atoms {
		g.Go(func() error {
			text, err := o.Core.Run(gctx, atom, zones.Reference, zones.Evidence, filename)
			if err != nil {
				return fmt.Errorf("atom %d: %w", i, err)
			}
			results[i] = text
			advance()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(results, "\n"), nil
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
