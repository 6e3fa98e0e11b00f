package alignment

import (
	"context"
	"database/sql"

	"lingualign/internal/align"
)

// Input row kinds as stored in content_rows.
const (
	KindReference = "reference"
	KindTarget    = "target"
)

type Repository interface {
	SaveJob(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context) ([]Job, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	UpdateCounts(ctx context.Context, id string, counts Counts) error

	SaveRows(ctx context.Context, jobID, kind string, records []align.Record) error
	GetRows(ctx context.Context, jobID, kind string) ([]align.Record, error)
	ReplaceAlignedRows(ctx context.Context, jobID string, rows []align.AlignedRow) error
	GetAlignedRows(ctx context.Context, jobID string) ([]align.AlignedRow, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) SaveJob(ctx context.Context, job *Job) error {
	query := `INSERT INTO alignment_jobs (name, status, ref_count, target_count)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, job.Name, job.Status, job.RefCount, job.TargetCount).
		Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	j := &Job{}
	query := `SELECT id, name, status, error, ref_count, target_count, matched_count,
		orphan_count, failed_embed_count, created_at, updated_at
		FROM alignment_jobs WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&j.ID, &j.Name, &j.Status, &j.Error, &j.RefCount, &j.TargetCount,
		&j.MatchedCount, &j.OrphanCount, &j.FailedEmbedCount, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Job, error) {
	query := `SELECT id, name, status, error, ref_count, target_count, matched_count,
		orphan_count, failed_embed_count, created_at, updated_at
		FROM alignment_jobs ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Name, &j.Status, &j.Error, &j.RefCount, &j.TargetCount,
			&j.MatchedCount, &j.OrphanCount, &j.FailedEmbedCount, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	// content_rows and aligned_rows cascade.
	_, err := r.db.ExecContext(ctx, `DELETE FROM alignment_jobs WHERE id = $1`, id)
	return err
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	query := `UPDATE alignment_jobs SET status = $2, error = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status, errMsg)
	return err
}

func (r *PostgresRepo) UpdateCounts(ctx context.Context, id string, counts Counts) error {
	query := `UPDATE alignment_jobs
		SET matched_count = $2, orphan_count = $3, failed_embed_count = $4, updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, counts.Matched, counts.Orphans, counts.FailedEmbed)
	return err
}

func (r *PostgresRepo) SaveRows(ctx context.Context, jobID, kind string, records []align.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO content_rows (job_id, kind, content_id, content, position) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, jobID, kind, rec.ID, rec.Content, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostgresRepo) GetRows(ctx context.Context, jobID, kind string) ([]align.Record, error) {
	query := `SELECT content_id, content FROM content_rows
		WHERE job_id = $1 AND kind = $2 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, jobID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []align.Record
	for rows.Next() {
		var rec align.Record
		if err := rows.Scan(&rec.ID, &rec.Content); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepo) ReplaceAlignedRows(ctx context.Context, jobID string, rows []align.AlignedRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM aligned_rows WHERE job_id = $1`, jobID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO aligned_rows (job_id, reference_id, reference_content, target_id, target_content, match_score, orphan, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range rows {
		var targetID sql.NullString
		if row.TargetID != "" {
			targetID = sql.NullString{String: row.TargetID, Valid: true}
		}
		var score sql.NullFloat64
		if row.MatchScore != nil {
			score = sql.NullFloat64{Float64: float64(*row.MatchScore), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, jobID, row.ReferenceID, row.ReferenceContent,
			targetID, row.TargetContent, score, row.Orphan, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostgresRepo) GetAlignedRows(ctx context.Context, jobID string) ([]align.AlignedRow, error) {
	query := `SELECT reference_id, reference_content, target_id, target_content, match_score, orphan
		FROM aligned_rows WHERE job_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []align.AlignedRow
	for rows.Next() {
		var row align.AlignedRow
		var targetID sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&row.ReferenceID, &row.ReferenceContent, &targetID,
			&row.TargetContent, &score, &row.Orphan); err != nil {
			return nil, err
		}
		if targetID.Valid {
			row.TargetID = targetID.String
		}
		if score.Valid {
			s := float32(score.Float64)
			row.MatchScore = &s
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
