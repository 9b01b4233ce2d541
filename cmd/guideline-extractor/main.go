package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/docreader"
	"github.com/joseph-ayodele/guideline-extractor/internal/export"
	"github.com/joseph-ayodele/guideline-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/guideline-extractor/internal/mcpserver"
	"github.com/joseph-ayodele/guideline-extractor/internal/pipeline"
	"github.com/joseph-ayodele/guideline-extractor/internal/prompt"
	repo "github.com/joseph-ayodele/guideline-extractor/internal/repository"
	"github.com/joseph-ayodele/guideline-extractor/internal/server"
	"github.com/joseph-ayodele/guideline-extractor/internal/tasks"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: common.ParseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

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
	orchestrator := pipeline.NewOrchestrator(client, prompt.Default{}, pipeline.Options{
		AtomConcurrency: cfg.Tasks.AtomConcurrency,
	}, logger)
	reader := docreader.New(docreader.Config{
		Pdftotext:     cfg.Reader.Pdftotext,
		MaxPages:      cfg.Reader.MaxPages,
		OCR:           cfg.Reader.OCR,
		Pdftoppm:      cfg.Reader.Pdftoppm,
		Tesseract:     cfg.Reader.Tesseract,
		TesseractLang: cfg.Reader.TesseractLang,
		TessdataDir:   cfg.Reader.TessdataDir,
		DPI:           cfg.Reader.DPI,
	}, logger)

	opts := []tasks.Option{
		tasks.WithWorkers(cfg.Tasks.Workers),
		tasks.WithQueueSize(cfg.Tasks.QueueSize),
		tasks.WithProcessTimeout(cfg.Tasks.Timeout),
	}

	var archive repo.ArchiveRepository
	if cfg.Archive.DSN != "" {
		db, err := repo.Open(ctx, repo.Config{
			DSN:             cfg.Archive.DSN,
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		}, logger)
		if err != nil {
			logger.Error("failed to open archive database", "error", err)
			os.Exit(1)
		}
		defer db.Close(logger)

		if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
			logger.Error("failed to ping archive database", "error", err)
			os.Exit(1)
		}
		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to migrate archive database", "error", err)
			os.Exit(1)
		}
		archive = repo.NewArchiveRepository(db, logger)
		opts = append(opts, tasks.WithResultSink(archive))
	}

	store := tasks.NewStore()
	manager := tasks.NewManager(store, reader, orchestrator, logger, opts...)
	exporter := export.NewService(store, logger)

	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: server.NewHTTPHandler(server.HTTPDeps{
			Tasks:     store,
			Submitter: manager,
			Exporter:  exporter,
			Archive:   archive,
			UploadDir: cfg.Server.UploadDir,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, healthServer := server.NewGRPCServer(server.NewExtractionService(store, manager, cfg.Server.SubmitRoot, logger), logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}

	var mcpHTTP *http.Server
	if cfg.Server.MCPAddr != "" {
		tools := mcpserver.NewTools(
			pipeline.NewJudgeStage(client, prompt.Default{}, logger),
			pipeline.NewEdgeStage(client, prompt.Default{}, logger),
			logger,
		)
		mcpHTTP = &http.Server{
			Addr:              cfg.Server.MCPAddr,
			Handler:           mcpserver.Handler(mcpserver.NewServer(tools), logger),
			ReadHeaderTimeout: 10 * time.Second,
			// SSE streams end when the process context is cancelled.
			BaseContext: func(net.Listener) context.Context { return ctx },
		}
		go func() {
			logger.Info("mcp listening", "addr", cfg.Server.MCPAddr, "sse", mcpserver.SSEPath, "streamable", mcpserver.StreamablePath)
			if err := mcpHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("mcp serve error", "error", err)
				os.Exit(1)
			}
		}()
	}

	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr, "base_path", server.BasePath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if mcpHTTP != nil {
		if err := mcpHTTP.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp shutdown", "error", err)
		}
	}
	grpcServer.GracefulStop()
	manager.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
