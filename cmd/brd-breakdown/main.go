package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/brd-breakdown/internal/async"
	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/export"
	"github.com/joseph-ayodele/brd-breakdown/internal/extract"
	"github.com/joseph-ayodele/brd-breakdown/internal/llm/openai"
	"github.com/joseph-ayodele/brd-breakdown/internal/pipeline"
	repo "github.com/joseph-ayodele/brd-breakdown/internal/repository"
	svc "github.com/joseph-ayodele/brd-breakdown/internal/server"
	"github.com/joseph-ayodele/brd-breakdown/internal/services/generation"
)

// version is set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		os.Exit(1)
	}

	docs := repo.NewDocumentRepository(db, logger)
	gens := repo.NewGenerationRepository(db, logger)

	llmClient := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		JSONMode:    cfg.LLM.JSONMode,
	}, logger)
	if !llmClient.HasCredential() {
		logger.Warn("no LLM API key configured; generations will fail with MISSING_CREDENTIAL")
	}

	processor := pipeline.NewProcessor(logger, docs, gens, llmClient)
	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Generation.Workers),
		async.WithQueueSize(cfg.Generation.QueueSize),
		async.WithProcessTimeout(cfg.Generation.Timeout),
	)

	extractor := extract.NewExtractor(extract.Config{}, logger)
	generations := generation.NewService(extractor, docs, gens, queue, cfg.Upload.MaxBytes, logger)
	if _, err := generations.SweepStale(ctx, cfg.Generation.StaleAfter); err != nil {
		logger.Error("stale sweep failed", "error", err)
	}

	ping := svc.PingDB(db, logger, 2*time.Second)
	httpServer := svc.New(svc.Config{
		UploadDir:      cfg.Upload.Dir,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Version:        version,
	}, generations, export.NewService(gens, logger), ping, logger)

	var probe *svc.HealthProbe
	if cfg.Server.HealthGRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.HealthGRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.HealthGRPCAddr, "error", err)
			os.Exit(1)
		}
		probe = svc.NewHealthProbe(ping, 15*time.Second, logger)
		go func() {
			if err := probe.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
				stop()
			}
		}()
	}

	logger.Info("brd-breakdown listening", "addr", cfg.Server.HTTPAddr, "version", version, "model", llmClient.Model())
	go func() {
		if err := httpServer.Start(cfg.Server.HTTPAddr); err != nil {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if probe != nil {
		probe.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Generation.Timeout+10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
