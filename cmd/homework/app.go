package main

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/homework-solver/internal/common"
	"github.com/joseph-ayodele/homework-solver/internal/core"
	"github.com/joseph-ayodele/homework-solver/internal/dispatch"
	"github.com/joseph-ayodele/homework-solver/internal/extract"
	"github.com/joseph-ayodele/homework-solver/internal/llm/openai"
	"github.com/joseph-ayodele/homework-solver/internal/repository"
	"github.com/joseph-ayodele/homework-solver/internal/server"
)

// stores is the persistent state every command needs.
type stores struct {
	docs    *repository.SQLiteDocumentRepository
	results *repository.FileResultStore
	logger  *slog.Logger
}

func openStores(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*stores, error) {
	results, err := repository.NewFileResultStore(cfg.OutputDir, logger)
	if err != nil {
		return nil, err
	}
	docs, err := server.ConnectStateDB(ctx, cfg.StateDB, logger)
	if err != nil {
		return nil, err
	}
	return &stores{docs: docs, results: results, logger: logger}, nil
}

func (s *stores) Close() {
	server.CloseStateDB(s.docs, s.logger)
}

// newProcessor wires extractor, AI client and dispatcher into a Processor.
func newProcessor(cfg *common.Config, st *stores, logger *slog.Logger) *core.Processor {
	extractor := extract.NewPDFExtractor(extract.Config{
		MaxPages:      cfg.Extract.MaxPages,
		MaxImageBytes: cfg.Extract.MaxImageBytes,
		MaxImageSide:  cfg.Extract.MaxImageSide,
		JPEGQuality:   cfg.Extract.JPEGQuality,
		SkipImages:    cfg.Extract.SkipImages,
	}, logger)

	client := openai.NewClient(openai.Config{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: float32(cfg.AI.Temperature),
		Timeout:     cfg.AI.Timeout,
		MaxTokens:   cfg.AI.MaxTokens,
		JSONMode:    cfg.AI.JSONMode,
		ImageDetail: cfg.AI.ImageDetail,
	}, logger)

	dispatcher := dispatch.NewDispatcher(client, logger,
		dispatch.WithRetryPolicy(dispatch.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
			Multiplier:     cfg.Retry.Multiplier,
			Retryable:      common.IsTransient,
		}),
		dispatch.WithMinInterval(cfg.AI.MinInterval),
	)

	return core.NewProcessor(logger, extractor, dispatcher, st.docs, st.results,
		core.WithExecutor(dispatch.NewExecutor(cfg.Dispatch.Concurrency)),
		core.WithModel(client.Model()),
		core.WithArchiveDir(cfg.ArchiveDir),
	)
}
