package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"lingualign/features/alignment"
	"lingualign/features/review"
	"lingualign/internal/align"
	"lingualign/internal/config"
	"lingualign/internal/embedding"
	"lingualign/internal/middleware"
	"lingualign/internal/vector"
	"lingualign/internal/worker"
)

// Database is satisfied by *sql.DB; repositories still need the concrete
// type, so New casts. The indirection keeps the signature mockable.
type Database interface {
	PingContext(ctx context.Context) error
}

type VectorStore interface {
	EnsureSchema(ctx context.Context) error
	StoreRow(ctx context.Context, row vector.RowVector) error
	DeleteByJob(ctx context.Context, jobID string) error
	GetRowVector(ctx context.Context, jobID, kind, contentID string) ([]float32, error)
	NearestTargets(ctx context.Context, jobID string, vec []float32, limit int) ([]vector.Candidate, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler          http.Handler
	AlignmentService *alignment.Service
	AlignConsumer    *worker.AlignConsumer

	port int
}

func New(
	cfg *config.Config,
	db Database,
	vecStore VectorStore,
	taskPub TaskPublisher,
	provider embedding.BatchEmbedder,
	logger *slog.Logger,
) (*App, error) {
	sqlDB, ok := db.(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("db must be a *sql.DB")
	}

	repo := alignment.NewPostgresRepo(sqlDB)

	// Feature: Alignment
	alignmentService := alignment.NewService(repo, taskPub, vecStore)
	alignmentHandler := alignment.NewHandler(alignmentService)

	// Feature: Review
	reviewService := review.NewService(repo, vecStore, cfg.ReviewCandidates)
	reviewHandler := review.NewHandler(reviewService)

	// Worker: align.task consumer
	embedder := embedding.NewAdapter(provider, embedding.Options{
		BatchSize:      cfg.MaxEmbeddingBatchSize,
		MaxConcurrency: cfg.MaxConcurrentRequests,
		RetryAttempts:  cfg.EmbedRetryAttempts,
		Timeout:        time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
	})
	consumer := worker.NewAlignConsumer(repo, vecStore, taskPub, embedder, worker.PipelineOptions{
		Threshold: cfg.SimilarityThreshold,
		Normalize: align.NormalizeOptions{
			StripMarkup:             cfg.StripMarkup,
			NormalizeWhitespace:     cfg.NormalizeWhitespace,
			RemoveSpecialCharacters: cfg.RemoveSpecialCharacters,
			MinLength:               cfg.MinContentLength,
			MaxLength:               cfg.MaxContentLength,
		},
		Build: align.BuildOptions{
			Placeholder:            cfg.PlaceholderText,
			UnmatchedAsPlaceholder: cfg.ExportUnmatchedAsPlaceholder,
			IncludeOrphans:         true,
		},
	})

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /alignments", middleware.CorrelationID(enableCORS(alignmentHandler.Create)))
	mux.Handle("GET /alignments", middleware.CorrelationID(enableCORS(alignmentHandler.List)))
	mux.Handle("GET /alignments/{id}", middleware.CorrelationID(enableCORS(alignmentHandler.Get)))
	mux.Handle("DELETE /alignments/{id}", middleware.CorrelationID(enableCORS(alignmentHandler.Delete)))
	mux.Handle("GET /alignments/{id}/rows", middleware.CorrelationID(enableCORS(alignmentHandler.Rows)))
	mux.Handle("GET /alignments/{id}/export", middleware.CorrelationID(enableCORS(alignmentHandler.Export)))
	mux.Handle("POST /alignments/{id}/rerun", middleware.CorrelationID(enableCORS(alignmentHandler.Rerun)))

	mux.Handle("GET /alignments/{id}/unmatched", middleware.CorrelationID(enableCORS(reviewHandler.Unmatched)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			logger.Error("failed to write health response", "error", err)
		}
	})

	return &App{
		Handler:          mux,
		AlignmentService: alignmentService,
		AlignConsumer:    consumer,
		port:             cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
