package alignment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"lingualign/internal/align"
	"lingualign/internal/config"
	"lingualign/internal/middleware"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type VectorStore interface {
	DeleteByJob(ctx context.Context, jobID string) error
}

type Service struct {
	repo  Repository
	pub   EventPublisher
	store VectorStore
}

func NewService(repo Repository, pub EventPublisher, store VectorStore) *Service {
	return &Service{repo: repo, pub: pub, store: store}
}

// Create validates both row sets, persists the job and its inputs, and
// queues the alignment task. Validation failures surface before any
// embedding work is scheduled.
func (s *Service) Create(ctx context.Context, name string, reference, target []align.Record) (*Job, error) {
	if _, err := align.NewContentSet(reference); err != nil {
		return nil, fmt.Errorf("reference rows: %w", err)
	}
	if _, err := align.NewContentSet(target); err != nil {
		return nil, fmt.Errorf("target rows: %w", err)
	}

	job := &Job{
		Name:        name,
		Status:      StatusPending,
		RefCount:    len(reference),
		TargetCount: len(target),
	}
	if err := s.repo.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.repo.SaveRows(ctx, job.ID, KindReference, reference); err != nil {
		return nil, err
	}
	if err := s.repo.SaveRows(ctx, job.ID, KindTarget, target); err != nil {
		return nil, err
	}

	s.publishTask(ctx, job.ID)
	return job, nil
}

func (s *Service) publishTask(ctx context.Context, jobID string) {
	payload, _ := json.Marshal(TaskPayload{
		JobID:         jobID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicAlignTask, payload); err != nil {
		slog.Error("failed to publish align.task event", "error", err, "job_id", jobID)
	} else {
		slog.Info("published align.task event", "job_id", jobID)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

func (s *Service) Rows(ctx context.Context, id string) ([]align.AlignedRow, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetAlignedRows(ctx, id)
}

// Rerun resets a finished job and queues it again. Previous aligned rows
// stay visible until the worker replaces them.
func (s *Service) Rerun(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusPending, ""); err != nil {
		return err
	}
	s.publishTask(ctx, id)
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteByJob(ctx, id); err != nil {
		return fmt.Errorf("failed to clean vector store: %w", err)
	}
	return s.repo.Delete(ctx, id)
}
