// Package mcpserver exposes content judging and edge extraction as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joseph-ayodele/guideline-extractor/internal/pipeline"
	"github.com/joseph-ayodele/guideline-extractor/internal/table"
)

const (
	Name    = "medical_guideline_extract"
	Version = "1.0.0"

	BasePath       = "/medicalGuideLine/knowledgeExtract"
	SSEPath        = BasePath + "/sse"
	StreamablePath = BasePath + "/mcp"

	JudgeToolName   = "get_content_type"
	ExtractToolName = "get_knowledge_extract"

	// NotGuidelineMessage is returned by the extract tool when the caller marks the text as non-guideline.
	NotGuidelineMessage = "text is not medical guideline content"
)

// Judge decides whether text is medical guideline content.
type Judge interface {
	Run(ctx context.Context, content string) (bool, error)
}

// EdgeExtractor runs edge extraction on free text.
type EdgeExtractor interface {
	Run(ctx context.Context, edge, filename string, progress pipeline.ProgressFunc) (string, error)
}

// Tools holds the operations behind the MCP tools. The CLI calls them directly.
type Tools struct {
	judge Judge
	edge  EdgeExtractor
	log   *slog.Logger
}

func NewTools(judge Judge, edge EdgeExtractor, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{judge: judge, edge: edge, log: logger}
}

// IsGuideline reports whether content reads as medical guideline text.
func (t *Tools) IsGuideline(ctx context.Context, content string) (bool, error) {
	return t.judge.Run(ctx, strings.TrimSpace(content))
}

// Extract returns the header line followed by the TAB-separated knowledge rows of content.
// When isGuideline is false the model is not called and NotGuidelineMessage is returned.
func (t *Tools) Extract(ctx context.Context, content string, isGuideline bool) (string, error) {
	if !isGuideline {
		return NotGuidelineMessage, nil
	}
	start := time.Now()
	text, err := t.edge.Run(ctx, strings.TrimSpace(content), "mcp", nil)
	if err != nil {
		return "", err
	}
	tbl := table.Parse(text)
	t.log.Info("mcp.extract.done", "records", tbl.Len(), "elapsed_ms", time.Since(start).Milliseconds())

	lines := make([]string, 0, tbl.Len()+1)
	lines = append(lines, strings.Join(tbl.Columns, "\t"))
	for _, r := range tbl.Records {
		lines = append(lines, strings.Join(r.Fields(), "\t"))
	}
	return strings.Join(lines, "\n"), nil
}

// NewServer builds an MCP server carrying both tools.
func NewServer(tools *Tools) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, nil)
	tools.RegisterMCP(srv)
	return srv
}

// RegisterMCP registers the judge and extract tools on srv.
func (t *Tools) RegisterMCP(srv *mcp.Server) {
	t.registerJudgeTool(srv)
	t.registerExtractTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- judge ---

type judgeReq struct {
	Content string `json:"content"`
}

func (t *Tools) registerJudgeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        JudgeToolName,
		Description: "Judge whether a text is medical guideline content. Returns true or false.",
		InputSchema: inputSchema(map[string]any{
			"content": map[string]any{"type": "string", "description": "Text to judge"},
		}, []string{"content"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r judgeReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return toolError(fmt.Errorf("decode arguments: %w", err)), nil
		}
		ok, err := t.IsGuideline(ctx, r.Content)
		if err != nil {
			t.log.Warn("mcp.judge.failed", "error", err)
			return toolError(err), nil
		}
		return textResult(strconv.FormatBool(ok)), nil
	})
}

// --- extract ---

type extractReq struct {
	Content     string `json:"content"`
	ContentType bool   `json:"content_type"`
}

func (t *Tools) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: ExtractToolName,
		Description: "Extract knowledge rows from medical guideline text. content_type is the result of " +
			JudgeToolName + "; when false nothing is extracted. Rows have six TAB-separated columns " +
			"(entity, property, value, entityTag, valueTag, level) under a header line. Can take several minutes.",
		InputSchema: inputSchema(map[string]any{
			"content":      map[string]any{"type": "string", "description": "Guideline text"},
			"content_type": map[string]any{"type": "boolean", "description": "Whether the text is medical guideline content"},
		}, []string{"content", "content_type"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r extractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return toolError(fmt.Errorf("decode arguments: %w", err)), nil
		}
		out, err := t.Extract(ctx, r.Content, r.ContentType)
		if err != nil {
			t.log.Warn("mcp.extract.failed", "error", err)
			return toolError(err), nil
		}
		return textResult(out), nil
	})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}
}

// Handler serves srv over SSE at SSEPath and over streamable HTTP at StreamablePath.
func Handler(srv *mcp.Server, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	getServer := func(*http.Request) *mcp.Server { return srv }

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Debug("mcp.request", "method", req.Method, "path", req.URL.Path)
			next.ServeHTTP(w, req)
		})
	})
	r.Handle(SSEPath, mcp.NewSSEHandler(getServer, nil))
	r.Handle(StreamablePath, mcp.NewStreamableHTTPHandler(getServer, nil))
	return r
}
