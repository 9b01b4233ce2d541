package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/guideline-extractor/internal/pipeline"
)

var testImpl = &mcp.Implementation{Name: "guideline-test", Version: "0.1.0"}

// scriptedModel answers judge prompts with verdict and every other prompt with rows.
type scriptedModel struct {
	mu      sync.Mutex
	prompts []string
	verdict string
	rows    string
	err     error
}

func (m *scriptedModel) ChatStream(_ context.Context, prompt string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	answer := m.rows
	if strings.Contains(prompt, "Decide whether the text below") {
		answer = m.verdict
	}
	content, _ := json.Marshal(answer)
	body := fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\ndata: [DONE]\n\n", content)
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func newTools(m *scriptedModel) *Tools {
	return NewTools(pipeline.NewJudgeStage(m, nil, nil), pipeline.NewEdgeStage(m, nil, nil), nil)
}

func session(t *testing.T, m *scriptedModel) *mcp.ClientSession {
	t.Helper()
	srv := NewServer(newTools(m))

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	s, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func callTool(t *testing.T, s *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent")
	return tc.Text, result.IsError
}

func TestMCP_ListsBothTools(t *testing.T) {
	s := session(t, &scriptedModel{})
	res, err := s.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{JudgeToolName, ExtractToolName}, names)
}

func TestMCP_JudgeReturnsBool(t *testing.T) {
	m := &scriptedModel{verdict: "<think>has grades</think>True"}
	text, isErr := callTool(t, session(t, m), JudgeToolName, map[string]any{"content": "Recommendation 1 (grade A)"})
	assert.False(t, isErr)
	assert.Equal(t, "true", text)

	m = &scriptedModel{verdict: "False"}
	text, isErr = callTool(t, session(t, m), JudgeToolName, map[string]any{"content": "a cooking recipe"})
	assert.False(t, isErr)
	assert.Equal(t, "false", text)
	assert.Contains(t, m.prompts[0], "a cooking recipe")
}

func TestMCP_JudgeUnclearAnswerIsToolError(t *testing.T) {
	m := &scriptedModel{verdict: "cannot tell"}
	text, isErr := callTool(t, session(t, m), JudgeToolName, map[string]any{"content": "x"})
	assert.True(t, isErr)
	assert.Contains(t, text, "neither true nor false")
}

func TestMCP_ExtractReturnsTable(t *testing.T) {
	m := &scriptedModel{rows: "Guideline X\tissuer\tSociety Y\tGuideline\tOrganization\t\nshort\trow"}
	text, isErr := callTool(t, session(t, m), ExtractToolName, map[string]any{"content": "Guideline X by Society Y", "content_type": true})
	require.False(t, isErr)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "entity\tproperty\tvalue\tentityTag\tvalueTag\tlevel", lines[0])
	assert.Equal(t, "Guideline X\tissuer\tSociety Y\tGuideline\tOrganization\t", lines[1])
	assert.Equal(t, "short\trow\t\t\t\t", lines[2])
	assert.Equal(t, 1, m.calls())
}

func TestMCP_ExtractSkipsNonGuideline(t *testing.T) {
	m := &scriptedModel{rows: "should\tnot\tappear"}
	text, isErr := callTool(t, session(t, m), ExtractToolName, map[string]any{"content": "weather report", "content_type": false})
	assert.False(t, isErr)
	assert.Equal(t, NotGuidelineMessage, text)
	assert.Zero(t, m.calls())
}

func TestMCP_ExtractModelFailureIsToolError(t *testing.T) {
	m := &scriptedModel{err: errors.New("upstream down")}
	text, isErr := callTool(t, session(t, m), ExtractToolName, map[string]any{"content": "x", "content_type": true})
	assert.True(t, isErr)
	assert.Contains(t, text, "upstream down")
}

func TestHandler_ServesSSEAndStreamable(t *testing.T) {
	m := &scriptedModel{verdict: "True"}
	ts := httptest.NewServer(Handler(NewServer(newTools(m)), nil))
	t.Cleanup(ts.Close)

	transports := map[string]mcp.Transport{
		"sse":        &mcp.SSEClientTransport{Endpoint: ts.URL + SSEPath},
		"streamable": &mcp.StreamableClientTransport{Endpoint: ts.URL + StreamablePath},
	}
	for name, transport := range transports {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, err := mcp.NewClient(testImpl, nil).Connect(ctx, transport, nil)
			require.NoError(t, err)
			defer s.Close()

			text, isErr := callTool(t, s, JudgeToolName, map[string]any{"content": "guideline text"})
			assert.False(t, isErr)
			assert.Equal(t, "true", text)
		})
	}
}

func TestTools_DirectCalls(t *testing.T) {
	m := &scriptedModel{verdict: "yes", rows: ""}
	tools := newTools(m)

	ok, err := tools.IsGuideline(context.Background(), "  text  ")
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := tools.Extract(context.Background(), "text", true)
	require.NoError(t, err)
	assert.Equal(t, "entity\tproperty\tvalue\tentityTag\tvalueTag\tlevel", out)
}
