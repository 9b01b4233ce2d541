package llm

import (
	"context"
	"io"
)

// Message is one chat turn sent to the text-generation endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DeltaFunc observes each non-empty content fragment as it arrives.
type DeltaFunc func(fragment string)

// ChatStreamer is the text-generation transport the pipeline depends on.
// ChatStream issues one streamed completion for prompt and returns the raw
// event stream; callers must Close it. Non-2xx statuses and connection
// failures are returned as errors before any body is handed out.
type ChatStreamer interface {
	ChatStream(ctx context.Context, prompt string) (io.ReadCloser, error)
}
