package worker

import (
	"context"
	"log"

	"ctcalign/internal/align"
	"ctcalign/internal/manifest"
	"ctcalign/internal/model"
	"ctcalign/internal/models"
	"ctcalign/internal/pipeline"
	"ctcalign/internal/storage"
)

// AlignDeps carries everything an alignment job needs beyond its own
// manifest and output directory.
type AlignDeps struct {
	Config      *align.Config
	Vocab       *model.Vocabulary
	Source      model.Source
	Transcriber pipeline.Transcriber
	JobRepo     *storage.JobRepository
	ResultRepo  *storage.ResultRepository
}

// NewAlignHandler returns the handler for alignment jobs. Each job runs
// the pipeline over its own manifest with the shared model
// configuration; per-utterance outcomes are recorded as the run
// progresses.
func NewAlignHandler(deps AlignDeps) JobHandler {
	return func(ctx context.Context, job *models.AlignmentJob) error {
		cfg := *deps.Config
		cfg.ManifestFilepath = job.ManifestFilepath
		cfg.OutputDir = job.OutputDir

		lines, err := manifest.Read(cfg.ManifestFilepath)
		if err != nil {
			return err
		}
		job.Total = len(lines)
		if err := deps.JobRepo.UpdateProgress(ctx, job.ID, 0, job.Total); err != nil {
			log.Printf("Error updating progress for job %s: %v", job.ID, err)
		}

		r, err := pipeline.New(&cfg, deps.Vocab, deps.Source, deps.Transcriber)
		if err != nil {
			return err
		}

		done := 0
		r.OnUtterance = func(u *align.Utterance) {
			done++
			res := &models.UtteranceResult{
				JobID:         job.ID,
				UttID:         u.ID,
				AudioFilepath: u.AudioFilepath,
				Status:        models.ResultStatusAligned,
			}
			if u.Failed() {
				res.Status = models.ResultStatusFailed
				res.Error = u.FailReason
			} else {
				res.WordCTMPath = u.OutputFiles["word_level_ctm_filepath"]
				res.TokenCTMPath = u.OutputFiles["token_level_ctm_filepath"]
			}
			if err := deps.ResultRepo.Create(ctx, res); err != nil {
				log.Printf("Error recording result for %s: %v", u.ID, err)
			}
			if err := deps.JobRepo.UpdateProgress(ctx, job.ID, done, job.Total); err != nil {
				log.Printf("Error updating progress for job %s: %v", job.ID, err)
			}
		}

		summary, err := r.Run(ctx)
		if err != nil {
			return err
		}
		job.OutputManifest = summary.OutputManifest
		return nil
	}
}
