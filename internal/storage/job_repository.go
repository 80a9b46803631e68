package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"ctcalign/internal/models"
)

// JobRepository is the data access layer for alignment jobs.
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, manifest_filepath, output_dir, type, status, priority, progress, total,
	retry_count, error, output_manifest, created_at, started_at, completed_at`

func scanJob(row interface{ Scan(...any) error }) (*models.AlignmentJob, error) {
	var job models.AlignmentJob
	err := row.Scan(
		&job.ID, &job.ManifestFilepath, &job.OutputDir, &job.Type, &job.Status,
		&job.Priority, &job.Progress, &job.Total, &job.RetryCount, &job.Error,
		&job.OutputManifest, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Create inserts a new job.
func (r *JobRepository) Create(ctx context.Context, job *models.AlignmentJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.Type == "" {
		job.Type = models.JobTypeAlign
	}
	job.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alignment_jobs (id, manifest_filepath, output_dir, type, status, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.ManifestFilepath, job.OutputDir, job.Type, job.Status, job.Priority, job.CreatedAt,
	)
	return err
}

// GetByID returns the job with the given id, or nil when it does not
// exist.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.AlignmentJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM alignment_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetNextQueued returns the next queued job in priority order, or nil
// when the queue is empty.
func (r *JobRepository) GetNextQueued(ctx context.Context) (*models.AlignmentJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM alignment_jobs
		WHERE status = ?
		ORDER BY priority ASC, created_at ASC
		LIMIT 1`, models.JobStatusQueued)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Start marks the job as running.
func (r *JobRepository) Start(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alignment_jobs SET status = ?, started_at = ? WHERE id = ?`,
		models.JobStatusRunning, time.Now(), id)
	return err
}

// UpdateProgress updates how many utterances the job has processed.
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress, total int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alignment_jobs SET progress = ?, total = ? WHERE id = ?`,
		progress, total, id)
	return err
}

// Complete marks the job as completed and records the output manifest
// path.
func (r *JobRepository) Complete(ctx context.Context, id, outputManifest string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alignment_jobs SET status = ?, output_manifest = ?, completed_at = ? WHERE id = ?`,
		models.JobStatusCompleted, outputManifest, time.Now(), id)
	return err
}

// Fail marks the job as failed.
func (r *JobRepository) Fail(ctx context.Context, id, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alignment_jobs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		models.JobStatusFailed, errorMsg, time.Now(), id)
	return err
}

// Retry puts the job back into the queue and bumps its retry count.
func (r *JobRepository) Retry(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alignment_jobs
		SET status = ?, retry_count = retry_count + 1, started_at = NULL
		WHERE id = ?`, models.JobStatusQueued, id)
	return err
}

// ListByStatus returns jobs with the given status, newest first.
func (r *JobRepository) ListByStatus(ctx context.Context, status string, limit int) ([]models.AlignmentJob, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM alignment_jobs
		WHERE status = ? ORDER BY created_at DESC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListRecent returns the most recent jobs.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]models.AlignmentJob, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM alignment_jobs
		ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]models.AlignmentJob, error) {
	var jobs []models.AlignmentJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Delete removes the job and, through the schema's cascade, its
// utterance results.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alignment_jobs WHERE id = ?`, id)
	return err
}

// CleanupCompleted deletes completed jobs older than the given number
// of days and returns how many were removed.
func (r *JobRepository) CleanupCompleted(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM alignment_jobs WHERE status = ? AND completed_at < ?`,
		models.JobStatusCompleted, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of jobs per status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM alignment_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
