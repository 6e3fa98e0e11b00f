package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"lingualign/features/alignment"
	"lingualign/internal/align"
	"lingualign/internal/config"
	"lingualign/internal/embedding"
	"lingualign/internal/middleware"
	"lingualign/internal/vector"
)

// PipelineOptions carry the tunables of one alignment run.
type PipelineOptions struct {
	Threshold float32
	Normalize align.NormalizeOptions
	Build     align.BuildOptions
}

// AlignConsumer processes align.task messages end to end: load the job's
// rows, embed both sides, match, persist the aligned output and the row
// vectors, then announce the result.
type AlignConsumer struct {
	jobs     JobStore
	store    VectorStore
	pub      EventPublisher
	embedder *embedding.Adapter
	opts     PipelineOptions
}

func NewAlignConsumer(jobs JobStore, store VectorStore, pub EventPublisher, embedder *embedding.Adapter, opts PipelineOptions) *AlignConsumer {
	return &AlignConsumer{
		jobs:     jobs,
		store:    store,
		pub:      pub,
		embedder: embedder,
		opts:     opts,
	}
}

func (h *AlignConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload alignment.TaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		slog.Error("invalid message format", "error", err)
		return nil // Don't retry invalid messages
	}

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	ctx := context.Background()
	ctx = middleware.WithCorrelationID(ctx, correlationID)

	if payload.JobID == "" {
		slog.ErrorContext(ctx, "missing job id, dropping")
		return nil
	}

	if _, err := h.jobs.Get(ctx, payload.JobID); err != nil {
		slog.ErrorContext(ctx, "unknown alignment job, dropping", "error", err, "job_id", payload.JobID)
		return nil
	}

	if err := h.jobs.UpdateStatus(ctx, payload.JobID, alignment.StatusProcessing, ""); err != nil {
		return err
	}

	counts, err := h.run(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Transient: let NSQ requeue the message.
			return err
		}
		slog.ErrorContext(ctx, "alignment failed", "error", err, "job_id", payload.JobID)
		if uerr := h.jobs.UpdateStatus(ctx, payload.JobID, alignment.StatusFailed, err.Error()); uerr != nil {
			slog.ErrorContext(ctx, "failed to update job status", "error", uerr, "job_id", payload.JobID)
		}
		h.publishResult(ctx, payload.JobID, alignment.StatusFailed, alignment.Counts{}, err.Error(), correlationID)
		return nil
	}

	if err := h.jobs.UpdateStatus(ctx, payload.JobID, alignment.StatusCompleted, ""); err != nil {
		return err
	}

	slog.InfoContext(ctx, "alignment completed", "job_id", payload.JobID,
		"matched", counts.Matched, "orphans", counts.Orphans, "failed_embeds", counts.FailedEmbed)
	h.publishResult(ctx, payload.JobID, alignment.StatusCompleted, counts, "", correlationID)
	return nil
}

func (h *AlignConsumer) run(ctx context.Context, jobID string) (alignment.Counts, error) {
	var counts alignment.Counts

	refRecords, err := h.jobs.GetRows(ctx, jobID, alignment.KindReference)
	if err != nil {
		return counts, fmt.Errorf("failed to load reference rows: %w", err)
	}
	tgtRecords, err := h.jobs.GetRows(ctx, jobID, alignment.KindTarget)
	if err != nil {
		return counts, fmt.Errorf("failed to load target rows: %w", err)
	}

	reference, err := align.NewContentSet(refRecords)
	if err != nil {
		return counts, fmt.Errorf("reference rows: %w", err)
	}
	target, err := align.NewContentSet(tgtRecords)
	if err != nil {
		return counts, fmt.Errorf("target rows: %w", err)
	}

	align.Preprocess(reference, h.opts.Normalize)
	align.Preprocess(target, h.opts.Normalize)

	refReport, err := h.embedder.Embed(ctx, reference)
	if err != nil {
		return counts, fmt.Errorf("failed to embed reference rows: %w", err)
	}
	tgtReport, err := h.embedder.Embed(ctx, target)
	if err != nil {
		return counts, fmt.Errorf("failed to embed target rows: %w", err)
	}
	counts.FailedEmbed = refReport.Failed + tgtReport.Failed

	// Both sets must embed into the same space before any similarity is
	// meaningful; a per-call check cannot see across the two runs.
	if refReport.Dimensions > 0 && tgtReport.Dimensions > 0 && refReport.Dimensions != tgtReport.Dimensions {
		return counts, &align.DimensionMismatchError{
			Want: refReport.Dimensions,
			Got:  tgtReport.Dimensions,
		}
	}

	matcher := align.NewMatcher(h.opts.Threshold)
	assignment := matcher.Match(reference, target)

	rows := align.Build(reference, target, assignment, h.opts.Build)
	counts.Matched = len(assignment.Pairs)
	counts.Orphans = len(assignment.Orphans(target))

	if err := h.storeVectors(ctx, jobID, reference, target); err != nil {
		return counts, err
	}

	if err := h.jobs.ReplaceAlignedRows(ctx, jobID, rows); err != nil {
		return counts, fmt.Errorf("failed to persist aligned rows: %w", err)
	}
	if err := h.jobs.UpdateCounts(ctx, jobID, counts); err != nil {
		return counts, fmt.Errorf("failed to update counts: %w", err)
	}
	return counts, nil
}

// storeVectors replaces the job's stored vectors wholesale so a rerun never
// leaves stale entries behind.
func (h *AlignConsumer) storeVectors(ctx context.Context, jobID string, reference, target *align.ContentSet) error {
	if err := h.store.DeleteByJob(ctx, jobID); err != nil {
		return fmt.Errorf("failed to clear old vectors: %w", err)
	}

	sides := []struct {
		kind string
		set  *align.ContentSet
	}{
		{vector.KindReference, reference},
		{vector.KindTarget, target},
	}
	for _, side := range sides {
		for i, row := range side.set.Rows {
			if !row.Embedded() {
				continue
			}
			rv := vector.RowVector{
				JobID:     jobID,
				ContentID: row.ID,
				Kind:      side.kind,
				Content:   row.Content,
				Position:  i,
				Values:    row.Embedding,
			}
			if err := h.store.StoreRow(ctx, rv); err != nil {
				return fmt.Errorf("failed to store vector for %s/%s: %w", side.kind, row.ID, err)
			}
		}
	}
	return nil
}

func (h *AlignConsumer) publishResult(ctx context.Context, jobID, status string, counts alignment.Counts, errMsg, correlationID string) {
	body, _ := json.Marshal(alignment.ResultPayload{
		JobID:         jobID,
		Status:        status,
		Matched:       counts.Matched,
		Orphans:       counts.Orphans,
		FailedEmbeds:  counts.FailedEmbed,
		Error:         errMsg,
		CorrelationID: correlationID,
	})
	if err := h.pub.Publish(config.TopicAlignResult, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish align.result event", "error", err, "job_id", jobID)
	}
}
