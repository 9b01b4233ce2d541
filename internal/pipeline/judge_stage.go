package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/guideline-extractor/internal/llm"
	"github.com/joseph-ayodele/guideline-extractor/internal/prompt"
)

// ErrUnclearVerdict is returned when the judge answer is neither true nor false.
var ErrUnclearVerdict = errors.New("judge answer is neither true nor false")

// JudgeStage asks the model whether a text is medical guideline content.
type JudgeStage struct {
	Logger  *slog.Logger
	Prompts prompt.Builder
	gen     generator
}

func NewJudgeStage(client llm.ChatStreamer, prompts prompt.Builder, logger *slog.Logger) *JudgeStage {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = prompt.Default{}
	}
	return &JudgeStage{Logger: logger, Prompts: prompts, gen: newGenerator(client, logger)}
}

func (s *JudgeStage) Run(ctx context.Context, content string) (bool, error) {
	text, err := s.gen.generate(ctx, "judge", "", s.Prompts.ContentJudge(content))
	if err != nil {
		return false, err
	}
	verdict, err := parseVerdict(text)
	if err != nil {
		s.Logger.Warn("pipeline.judge.unclear_answer", "answer", text)
		return false, fmt.Errorf("judge: %w", err)
	}
	s.Logger.Info("pipeline.judge.done", "verdict", verdict, "content_bytes", len(content))
	return verdict, nil
}

var (
	trueWords  = map[string]bool{"true": true, "yes": true, "是": true}
	falseWords = map[string]bool{"false": true, "no": true, "否": true, "不是": true}
)

// parseVerdict reads a one-word boolean answer, tolerating case, quotes and trailing punctuation.
func parseVerdict(answer string) (bool, error) {
	word := strings.ToLower(strings.Trim(strings.TrimSpace(answer), "`'\"*.。!！ \t\r\n"))
	switch {
	case trueWords[word]:
		return true, nil
	case falseWords[word]:
		return false, nil
	}
	hasTrue := strings.Contains(word, "true")
	hasFalse := strings.Contains(word, "false")
	if hasTrue != hasFalse {
		return hasTrue, nil
	}
	return false, ErrUnclearVerdict
}
