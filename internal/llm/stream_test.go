package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulate_ConcatenatesDeltasInOrder(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`: keep-alive`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: not json at all`,
		`data: {"choices":[]}`,
		`data: {"choices":[{"delta":{"content":""}}]}`,
		`data: {"choices":[{"delta":{"content":" world"}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
	}, "\n")

	var seen []string
	got, err := Accumulate(context.Background(), strings.NewReader(stream), func(f string) { seen = append(seen, f) })
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got)
	assert.Equal(t, []string{"Hel", "lo", " world"}, seen)
}

func TestAccumulate_EOFWithoutDone(t *testing.T) {
	got, err := Accumulate(context.Background(), strings.NewReader(`data: {"choices":[{"delta":{"content":"abc"}}]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestAccumulate_EmptyStream(t *testing.T) {
	got, err := Accumulate(context.Background(), strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAccumulate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Accumulate(ctx, strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n"), nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestAccumulate_ReadErrorIsReported(t *testing.T) {
	_, err := Accumulate(context.Background(), failingReader{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStripThinkTags(t *testing.T) {
	cases := map[string]struct{ in, want string }{
		"no tags":        {"plain answer", "plain answer"},
		"leading span":   {"<think>reasoning\nmore</think>\n{\"a\":1}", `{"a":1}`},
		"several spans":  {"a<think>x</think>b<think>y</think>c", "abc"},
		"whitespace":     {"  \n<think></think>  result \n", "result"},
		"unclosed stays": {"<think>never closed", "<think>never closed"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripThinkTags(tc.in))
			assert.Equal(t, StripThinkTags(tc.in), StripThinkTags(StripThinkTags(tc.in)))
		})
	}
}
