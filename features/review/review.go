// Package review exposes below-threshold match candidates for unmatched
// reference rows, so a human can resolve what automatic alignment left open.
package review

import (
	"context"
	"log/slog"

	"lingualign/internal/align"
	"lingualign/internal/vector"
)

type UnmatchedRow struct {
	ReferenceID      string             `json:"reference_id"`
	ReferenceContent string             `json:"reference_content"`
	Candidates       []vector.Candidate `json:"candidates"`
}

type JobStore interface {
	GetAlignedRows(ctx context.Context, jobID string) ([]align.AlignedRow, error)
}

type VectorStore interface {
	GetRowVector(ctx context.Context, jobID, kind, contentID string) ([]float32, error)
	NearestTargets(ctx context.Context, jobID string, vec []float32, limit int) ([]vector.Candidate, error)
}

type Service struct {
	store      JobStore
	vectors    VectorStore
	candidates int
}

func NewService(store JobStore, vectors VectorStore, candidates int) *Service {
	if candidates <= 0 {
		candidates = 3
	}
	return &Service{store: store, vectors: vectors, candidates: candidates}
}

// Unmatched returns every unmatched reference row of a job together with
// its nearest target candidates by vector distance. Rows whose vector is
// missing (for example rows skipped before embedding) come back with no
// candidates.
func (s *Service) Unmatched(ctx context.Context, jobID string) ([]UnmatchedRow, error) {
	rows, err := s.store.GetAlignedRows(ctx, jobID)
	if err != nil {
		return nil, err
	}

	out := []UnmatchedRow{}
	for _, row := range rows {
		if row.ReferenceID == "" || row.TargetID != "" {
			continue
		}

		unmatched := UnmatchedRow{
			ReferenceID:      row.ReferenceID,
			ReferenceContent: row.ReferenceContent,
			Candidates:       []vector.Candidate{},
		}

		vec, err := s.vectors.GetRowVector(ctx, jobID, vector.KindReference, row.ReferenceID)
		if err != nil {
			slog.Warn("no vector for unmatched row", "error", err, "job_id", jobID, "content_id", row.ReferenceID)
			out = append(out, unmatched)
			continue
		}

		candidates, err := s.vectors.NearestTargets(ctx, jobID, vec, s.candidates)
		if err != nil {
			return nil, err
		}
		unmatched.Candidates = candidates
		out = append(out, unmatched)
	}
	return out, nil
}
