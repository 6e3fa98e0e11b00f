package worker

import (
	"context"

	"lingualign/features/alignment"
	"lingualign/internal/align"
	"lingualign/internal/vector"
)

type JobStore interface {
	Get(ctx context.Context, id string) (*alignment.Job, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	UpdateCounts(ctx context.Context, id string, counts alignment.Counts) error
	GetRows(ctx context.Context, jobID, kind string) ([]align.Record, error)
	ReplaceAlignedRows(ctx context.Context, jobID string, rows []align.AlignedRow) error
}

type VectorStore interface {
	StoreRow(ctx context.Context, row vector.RowVector) error
	DeleteByJob(ctx context.Context, jobID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}
