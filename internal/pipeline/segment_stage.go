package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/guideline-extractor/internal/llm"
	"github.com/joseph-ayodele/guideline-extractor/internal/prompt"
)

// Atom is one self-contained clinical question cut from the core zone.
type Atom struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Segmentation is the ordered atom list plus the count the model reported.
// Total drives the progress step and may disagree with len(Atoms).
type Segmentation struct {
	Atoms []Atom `json:"atoms"`
	Total int    `json:"total"`
}

var segmentationValidator = llm.NewValidator("segmentation.json", llm.SegmentationSchema)

type SegmentStage struct {
	Logger  *slog.Logger
	Prompts prompt.Builder
	gen     generator
}

func NewSegmentStage(client llm.ChatStreamer, prompts prompt.Builder, logger *slog.Logger) *SegmentStage {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = prompt.Default{}
	}
	return &SegmentStage{Logger: logger, Prompts: prompts, gen: newGenerator(client, logger)}
}

// Run splits the core zone into atoms. The answer must be {"atom": [...], "total": n}.
func (s *SegmentStage) Run(ctx context.Context, core, filename string, progress ProgressFunc) (Segmentation, error) {
	progress.report(15, "segmenting clinical questions")

	obj, err := s.gen.generateObject(ctx, "segmentation", filename, s.Prompts.Segmentation(core))
	if err != nil {
		return Segmentation{}, err
	}
	llm.NormalizeSegmentation(obj, s.Logger)
	if err := segmentationValidator.Validate(obj); err != nil {
		s.Logger.Error("pipeline.segmentation.invalid", "filename", filename, "error", err)
		return Segmentation{}, fmt.Errorf("segmentation: %w: %v", llm.ErrMalformedResult, err)
	}

	raw := obj["atom"].([]any)
	seg := Segmentation{Atoms: make([]Atom, 0, len(raw)), Total: totalOf(obj["total"])}
	for i, v := range raw {
		seg.Atoms = append(seg.Atoms, Atom{Index: i, Text: llm.AtomText(v)})
	}
	if len(seg.Atoms) != seg.Total {
		s.Logger.Warn("pipeline.segmentation.count_mismatch", "filename", filename, "atoms", len(seg.Atoms), "total", seg.Total)
	}
	s.Logger.Info("pipeline.segmentation.ok", "filename", filename, "atoms", len(seg.Atoms), "total", seg.Total)
	progress.report(25, fmt.Sprintf("found %d clinical questions", seg.Total))
	return seg, nil
}

func totalOf(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}
