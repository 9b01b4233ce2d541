package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/guideline-extractor/internal/mcpserver"
	"github.com/joseph-ayodele/guideline-extractor/internal/pipeline"
	"github.com/joseph-ayodele/guideline-extractor/internal/prompt"
)

// guideline-tool runs the MCP tool operations from the command line.
//
//	guideline-tool judge [-file F | -stdin | text...]
//	guideline-tool extract [-file F | -stdin | text...] [-out F]
func main() {
	if len(os.Args) < 2 || (os.Args[1] != "judge" && os.Args[1] != "extract") {
		fmt.Fprintln(os.Stderr, "usage: guideline-tool judge|extract [-file F | -stdin | text...]")
		os.Exit(2)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	file := fs.String("file", "", "read the text from this file")
	stdin := fs.Bool("stdin", false, "read the text from standard input")
	out := fs.String("out", "", "write the result to this file instead of stdout (extract only)")
	_ = fs.Parse(os.Args[2:])

	content, err := readContent(*file, *stdin, fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Only the result goes to stdout.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := openai.NewClient(openai.Config{
		APIURL:       cfg.LLM.APIURL,
		APIKey:       cfg.LLM.APIKey,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      cfg.LLM.Timeout,
		SystemPrompt: cfg.LLM.SystemPrompt,
	}, logger)
	tools := mcpserver.NewTools(
		pipeline.NewJudgeStage(client, prompt.Default{}, logger),
		pipeline.NewEdgeStage(client, prompt.Default{}, logger),
		logger,
	)

	var result string
	switch cmd {
	case "judge":
		ok, jerr := tools.IsGuideline(ctx, content)
		result, err = strconv.FormatBool(ok), jerr
	case "extract":
		result, err = tools.Extract(ctx, content, true)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cmd == "extract" && *out != "" {
		if err := os.WriteFile(*out, []byte(result+"\n"), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: write %s: %v\n", *out, err)
			os.Exit(1)
		}
		return
	}
	fmt.Println(result)
}

func readContent(file string, stdin bool, args []string) (string, error) {
	switch {
	case stdin:
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read file %q: %w", file, err)
		}
		return string(b), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	return "", fmt.Errorf("provide the text as arguments, with -file, or with -stdin")
}
