package storage

import (
	"context"
	"time"

	"ctcalign/internal/models"
)

// ResultRepository is the data access layer for per-utterance outcomes.
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Create inserts one utterance result.
func (r *ResultRepository) Create(ctx context.Context, res *models.UtteranceResult) error {
	res.CreatedAt = time.Now()
	row, err := r.db.ExecContext(ctx, `
		INSERT INTO utterance_results (job_id, utt_id, audio_filepath, status, error, word_ctm_path, token_ctm_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.JobID, res.UttID, res.AudioFilepath, res.Status, res.Error,
		res.WordCTMPath, res.TokenCTMPath, res.CreatedAt,
	)
	if err != nil {
		return err
	}
	res.ID, err = row.LastInsertId()
	return err
}

// ListByJobID returns the job's utterance results in processing order.
func (r *ResultRepository) ListByJobID(ctx context.Context, jobID string) ([]models.UtteranceResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, utt_id, audio_filepath, status, error, word_ctm_path, token_ctm_path, created_at
		FROM utterance_results WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.UtteranceResult
	for rows.Next() {
		var res models.UtteranceResult
		err := rows.Scan(
			&res.ID, &res.JobID, &res.UttID, &res.AudioFilepath, &res.Status,
			&res.Error, &res.WordCTMPath, &res.TokenCTMPath, &res.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// CountByJobID returns how many utterances of the job succeeded and
// failed.
func (r *ResultRepository) CountByJobID(ctx context.Context, jobID string) (aligned, failed int, err error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM utterance_results WHERE job_id = ? GROUP BY status`, jobID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, err
		}
		switch status {
		case models.ResultStatusAligned:
			aligned = count
		case models.ResultStatusFailed:
			failed = count
		}
	}
	return aligned, failed, rows.Err()
}
