package models

import "time"

// AlignmentJob is one queued run of the alignment pipeline over a
// manifest.
type AlignmentJob struct {
	ID               string     `json:"id"`
	ManifestFilepath string     `json:"manifest_filepath"`
	OutputDir        string     `json:"output_dir"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	Priority         int        `json:"priority"`
	Progress         int        `json:"progress"`
	Total            int        `json:"total"`
	RetryCount       int        `json:"retry_count"`
	Error            string     `json:"error,omitempty"`
	OutputManifest   string     `json:"output_manifest,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// UtteranceResult is the per-utterance outcome of a job, recorded as
// the run progresses.
type UtteranceResult struct {
	ID            int64     `json:"id"`
	JobID         string    `json:"job_id"`
	UttID         string    `json:"utt_id"`
	AudioFilepath string    `json:"audio_filepath"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	WordCTMPath   string    `json:"word_ctm_path,omitempty"`
	TokenCTMPath  string    `json:"token_ctm_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Job types
const (
	JobTypeAlign = "align"
)

// Job statuses
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Utterance result statuses
const (
	ResultStatusAligned = "aligned"
	ResultStatusFailed  = "failed"
)

// Job priorities
const (
	JobPriorityImmediate = 0
	JobPriorityNormal    = 5
	JobPriorityBatch     = 9
)
