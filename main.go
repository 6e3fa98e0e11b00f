package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"lingualign/internal/adapter/gemini"
	"lingualign/internal/app"
	"lingualign/internal/config"
	"lingualign/internal/embedding"
	"lingualign/internal/logger"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	// Embedding provider. Startup without a key is allowed so the API stays
	// reachable; alignment runs will fail until one is configured.
	var provider embedding.BatchEmbedder
	if cfg.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set; alignment jobs will fail until it is configured")
		provider = embedding.ProviderFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("gemini api key not configured")
		})
	} else {
		embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return fmt.Errorf("gemini client error: %w", err)
		}
		defer func() {
			if cerr := embedder.Close(); cerr != nil {
				slog.Warn("failed to close gemini client", "error", cerr)
			}
		}()
		provider = embedder
	}

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, provider, log)
	if err != nil {
		return err
	}

	// Worker: consume align.task
	consumer, err := nsq.NewConsumer(config.TopicAlignTask, "worker", nsq.NewConfig())
	if err != nil {
		return fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		return a.AlignConsumer.HandleMessage(m)
	}))
	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		// Lookupd may be absent in minimal deployments; fall back to nsqd.
		slog.Warn("failed to connect to NSQLookupd, trying nsqd directly", "error", err)
		if derr := consumer.ConnectToNSQD(cfg.NSQDHost); derr != nil {
			slog.Error("failed to connect NSQ consumer", "error", derr)
		}
	}
	defer consumer.Stop()

	return a.Run(ctx)
}
