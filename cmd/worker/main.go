package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"spriteforge/internal/adapter/repo"
	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
	"spriteforge/internal/pipeline"
	"spriteforge/internal/providers/genai"
	"spriteforge/internal/providers/removal"
	"spriteforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var taskRepo domain.TaskRepository
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: db connection failed")
		}
		defer pool.Close()
		pg := repo.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("worker: schema setup failed")
		}
		taskRepo = pg
	} else {
		sq, err := repo.NewSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: sqlite setup failed")
		}
		defer sq.Close()
		taskRepo = sq
	}

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: storage setup failed")
	}

	// Without a matting service the source alpha channel is trusted as-is.
	var remover removal.Remover = removal.Passthrough{}
	if cfg.RemovalBaseURL != "" {
		client, err := removal.NewClient(removal.Options{
			BaseURL:    cfg.RemovalBaseURL,
			HTTPClient: &http.Client{Timeout: cfg.RemovalTimeout},
			Logger:     &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: removal client setup failed")
		}
		remover = client
	}

	generator, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: generation client setup failed")
	}

	logger.Info().Int("workers", cfg.WorkerCount).Msg("worker: starting")

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := &pipeline.Worker{
				Repo:         taskRepo,
				Store:        store,
				Remover:      remover,
				Generator:    generator,
				Logger:       logger,
				PollInterval: cfg.PollInterval,
			}
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("worker: loop exited")
			}
		}()
	}

	wg.Wait()
	logger.Info().Msg("worker: stopped")
}
