package openai

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/joseph-ayodele/guideline-extractor/internal/llm"
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float32       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// ChatStream implements llm.ChatStreamer with a streamed chat/completions call.
func (c *Client) ChatStream(ctx context.Context, prompt string) (io.ReadCloser, error) {
	if c.cfg.Model == "" {
		return nil, fmt.Errorf("openai: model required")
	}
	start := time.Now()

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		Stream:      true,
	}

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	c.log.Debug("llm.chat_stream.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
	)

	rc, err := llm.OpenStream(ctx, c.httpClient, c.cfg.APIURL, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.chat_stream.http_error",
			"model", c.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("openai chat stream: %w", err)
	}
	return rc, nil
}
