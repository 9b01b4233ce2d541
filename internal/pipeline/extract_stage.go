package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/guideline-extractor/internal/llm"
	"github.com/joseph-ayodele/guideline-extractor/internal/prompt"
)

// CoreStage extracts knowledge rows from one atom. Progress is reported by the caller per atom.
type CoreStage struct {
	Logger  *slog.Logger
	Prompts prompt.Builder
	gen     generator
}

func NewCoreStage(client llm.ChatStreamer, prompts prompt.Builder, logger *slog.Logger) *CoreStage {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = prompt.Default{}
	}
	return &CoreStage{Logger: logger, Prompts: prompts, gen: newGenerator(client, logger)}
}

// Run returns the extraction text for atom, using reference and evidence as context.
func (s *CoreStage) Run(ctx context.Context, atom Atom, reference, evidence, filename string) (string, error) {
	text, err := s.gen.generate(ctx, "core", filename, s.Prompts.CoreExtraction(atom.Text, reference, evidence))
	if err != nil {
		return "", err
	}
	s.Logger.Debug("pipeline.core.atom_done", "filename", filename, "atom", atom.Index, "bytes", len(text))
	return text, nil
}

// EdgeStage extracts knowledge rows from the non-core zones.
type EdgeStage struct {
	Logger  *slog.Logger
	Prompts prompt.Builder
	gen     generator
}

func NewEdgeStage(client llm.ChatStreamer, prompts prompt.Builder, logger *slog.Logger) *EdgeStage {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = prompt.Default{}
	}
	return &EdgeStage{Logger: logger, Prompts: prompts, gen: newGenerator(client, logger)}
}

func (s *EdgeStage) Run(ctx context.Context, edge, filename string, progress ProgressFunc) (string, error) {
	progress.report(25, "extracting guideline metadata")
	text, err := s.gen.generate(ctx, "edge", filename, s.Prompts.EdgeExtraction(edge))
	if err != nil {
		return "", err
	}
	progress.report(30, "guideline metadata extracted")
	return text, nil
}
