package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/guideline-extractor/constants"
	"github.com/joseph-ayodele/guideline-extractor/internal/llm"
	"github.com/joseph-ayodele/guideline-extractor/internal/prompt"
)

// Zones are the five text regions a guideline is split into by layout analysis.
type Zones struct {
	Base      string `json:"base"`
	Core      string `json:"core"`
	Evidence  string `json:"evidence"`
	Other     string `json:"other"`
	Reference string `json:"reference"`
}

// Edge joins every non-core zone, newline separated, in base/evidence/other/reference order.
func (z Zones) Edge() string {
	return strings.Join([]string{z.Base, z.Evidence, z.Other, z.Reference}, "\n")
}

var layoutValidator = llm.NewValidator("layout.json", llm.LayoutSchema)

type LayoutStage struct {
	Logger  *slog.Logger
	Prompts prompt.Builder
	gen     generator
}

func NewLayoutStage(client llm.ChatStreamer, prompts prompt.Builder, logger *slog.Logger) *LayoutStage {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = prompt.Default{}
	}
	return &LayoutStage{Logger: logger, Prompts: prompts, gen: newGenerator(client, logger)}
}

// Run classifies document into zones. The answer must be a JSON object carrying all five zones.
func (s *LayoutStage) Run(ctx context.Context, document, filename string, progress ProgressFunc) (Zones, error) {
	progress.report(5, "analysing document layout")

	obj, err := s.gen.generateObject(ctx, "layout", filename, s.Prompts.Layout(document))
	if err != nil {
		return Zones{}, err
	}
	llm.NormalizeZones(obj, s.Logger)
	if err := layoutValidator.Validate(obj); err != nil {
		s.Logger.Error("pipeline.layout.invalid", "filename", filename, "error", err)
		return Zones{}, fmt.Errorf("layout: %w: %v", llm.ErrMalformedResult, err)
	}

	z := Zones{
		Base:      obj[constants.ZoneBase].(string),
		Core:      obj[constants.ZoneCore].(string),
		Evidence:  obj[constants.ZoneEvidence].(string),
		Other:     obj[constants.ZoneOther].(string),
		Reference: obj[constants.ZoneReference].(string),
	}
	s.Logger.Info("pipeline.layout.ok",
		"filename", filename,
		"base", len(z.Base), "core", len(z.Core), "evidence", len(z.Evidence),
		"other", len(z.Other), "reference", len(z.Reference),
	)
	progress.report(10, "layout analysis finished")
	return z, nil
}
