package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	sseDataPrefix = "data:"
	sseDone       = "[DONE]"

	// Chunk lines carrying long deltas can exceed bufio's 64K default.
	maxChunkLine = 4 << 20
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Accumulate reads a server-sent-event style completion stream and returns the
// concatenation of every choices[0].delta.content fragment in arrival order.
//
// Lines that are not JSON, or that lack the nested content field, are skipped.
// A "[DONE]" line ends the stream; so does EOF. Only a read error or ctx
// cancellation is reported as an error, together with what was accumulated so far.
func Accumulate(ctx context.Context, r io.Reader, onDelta DeltaFunc) (string, error) {
	var acc strings.Builder

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxChunkLine)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return acc.String(), err
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
		if line == sseDone {
			break
		}

		fragment, ok := deltaContent(line)
		if !ok {
			continue
		}
		acc.WriteString(fragment)
		if onDelta != nil {
			onDelta(fragment)
		}
	}
	if err := sc.Err(); err != nil {
		return acc.String(), fmt.Errorf("read stream: %w", err)
	}
	return acc.String(), nil
}

func deltaContent(line string) (string, bool) {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
		return "", false
	}
	content := *chunk.Choices[0].Delta.Content
	return content, content != ""
}
