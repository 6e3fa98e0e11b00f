package alignment_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"lingualign/features/alignment"
	"lingualign/internal/align"
)

func TestPostgresRepo_SaveJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := alignment.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		job := &alignment.Job{
			Name:        "batch-2024",
			Status:      alignment.StatusPending,
			RefCount:    10,
			TargetCount: 12,
		}

		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO alignment_jobs (name, status, ref_count, target_count)")).
			WithArgs(job.Name, job.Status, job.RefCount, job.TargetCount).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("job-1", now, now))

		err := repo.SaveJob(context.Background(), job)
		assert.NoError(t, err)
		assert.Equal(t, "job-1", job.ID)
	})
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := alignment.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "name", "status", "error", "ref_count", "target_count",
			"matched_count", "orphan_count", "failed_embed_count", "created_at", "updated_at"}).
			AddRow("job-1", "batch-2024", "completed", "", 10, 12, 8, 2, 0, time.Now(), time.Now())

		mock.ExpectQuery(regexp.QuoteMeta("FROM alignment_jobs WHERE id = $1")).
			WithArgs("job-1").
			WillReturnRows(rows)

		job, err := repo.Get(context.Background(), "job-1")
		assert.NoError(t, err)
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, 8, job.MatchedCount)
	})
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := alignment.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"id", "name", "status", "error", "ref_count", "target_count",
		"matched_count", "orphan_count", "failed_embed_count", "created_at", "updated_at"}).
		AddRow("job-1", "batch-2024", "pending", "", 10, 12, 0, 0, 0, time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM alignment_jobs ORDER BY created_at DESC")).
		WillReturnRows(rows)

	jobs, err := repo.List(context.Background())
	assert.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestPostgresRepo_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := alignment.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE alignment_jobs SET status = $2, error = $3, updated_at = NOW() WHERE id = $1")).
		WithArgs("job-1", "failed", "embedding provider unreachable").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateStatus(context.Background(), "job-1", "failed", "embedding provider unreachable")
	assert.NoError(t, err)
}

func TestPostgresRepo_UpdateCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := alignment.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("SET matched_count = $2, orphan_count = $3, failed_embed_count = $4")).
		WithArgs("job-1", 8, 2, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateCounts(context.Background(), "job-1", alignment.Counts{Matched: 8, Orphans: 2, FailedEmbed: 1})
	assert.NoError(t, err)
}

func TestPostgresRepo_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := alignment.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM alignment_jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Delete(context.Background(), "job-1")
	assert.NoError(t, err)
}

func TestPostgresRepo_SaveRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := alignment.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		records := []align.Record{
			{ID: "R1", Content: "Hello world"},
			{ID: "R2", Content: "Goodbye"},
		}

		mock.ExpectBegin()
		stmt := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO content_rows"))
		stmt.ExpectExec().
			WithArgs("job-1", "reference", "R1", "Hello world", 0).
			WillReturnResult(sqlmock.NewResult(1, 1))
		stmt.ExpectExec().
			WithArgs("job-1", "reference", "R2", "Goodbye", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := repo.SaveRows(context.Background(), "job-1", alignment.KindReference, records)
		assert.NoError(t, err)
	})
}

func TestPostgresRepo_GetRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := alignment.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"content_id", "content"}).
		AddRow("T1", "Hola mundo").
		AddRow("T2", "Adios")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT content_id, content FROM content_rows")).
		WithArgs("job-1", "target").
		WillReturnRows(rows)

	records, err := repo.GetRows(context.Background(), "job-1", alignment.KindTarget)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "T1", records[0].ID)
}

func TestPostgresRepo_ReplaceAlignedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := alignment.NewPostgresRepo(db)

	t.Run("MatchedAndOrphan", func(t *testing.T) {
		score := float32(0.92)
		rows := []align.AlignedRow{
			{ReferenceID: "R1", ReferenceContent: "Hello", TargetID: "T1", TargetContent: "Hola", MatchScore: &score},
			{ReferenceID: "R2", ReferenceContent: "Goodbye", TargetContent: "[UNMATCHED]"},
			{TargetID: "T3", TargetContent: "Nunca", Orphan: true},
		}

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM aligned_rows WHERE job_id = $1")).
			WithArgs("job-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		stmt := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO aligned_rows"))
		stmt.ExpectExec().
			WithArgs("job-1", "R1", "Hello", sqlmock.AnyArg(), "Hola", sqlmock.AnyArg(), false, 0).
			WillReturnResult(sqlmock.NewResult(1, 1))
		stmt.ExpectExec().
			WithArgs("job-1", "R2", "Goodbye", sqlmock.AnyArg(), "[UNMATCHED]", sqlmock.AnyArg(), false, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		stmt.ExpectExec().
			WithArgs("job-1", "", "", sqlmock.AnyArg(), "Nunca", sqlmock.AnyArg(), true, 2).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := repo.ReplaceAlignedRows(context.Background(), "job-1", rows)
		assert.NoError(t, err)
	})
}

func TestPostgresRepo_GetAlignedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := alignment.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"reference_id", "reference_content", "target_id", "target_content", "match_score", "orphan"}).
		AddRow("R1", "Hello", "T1", "Hola", 0.92, false).
		AddRow("R2", "Goodbye", nil, "[UNMATCHED]", nil, true)

	mock.ExpectQuery(regexp.QuoteMeta("FROM aligned_rows WHERE job_id = $1 ORDER BY position")).
		WithArgs("job-1").
		WillReturnRows(rows)

	out, err := repo.GetAlignedRows(context.Background(), "job-1")
	assert.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "T1", out[0].TargetID)
	assert.NotNil(t, out[0].MatchScore)
	assert.True(t, out[1].Orphan)
	assert.Nil(t, out[1].MatchScore)
	assert.Empty(t, out[1].TargetID)
}
