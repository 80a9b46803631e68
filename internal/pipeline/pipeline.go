package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"ctcalign/internal/align"
	"ctcalign/internal/manifest"
	"ctcalign/internal/model"
	"ctcalign/internal/output"
)

// Transcriber produces predicted text for an audio file. Only needed
// when aligning against model-predicted text.
type Transcriber interface {
	TranscribeFile(audioPath string) (string, error)
}

// Summary reports the outcome of a run.
type Summary struct {
	Total          int
	Aligned        int
	Failed         int
	OutputManifest string
	// TimestepDuration is the frozen per-frame duration resolved on the
	// first batch.
	TimestepDuration float64
}

// Runner executes the alignment pipeline: manifest in, CTM/ASS files
// and an output manifest out. Utterances within a batch are decoded in
// parallel; batches run in order and results are flushed per batch.
type Runner struct {
	cfg         *align.Config
	vocab       *model.Vocabulary
	source      model.Source
	transcriber Transcriber

	// timestep is the frozen output timestep duration, resolved on the
	// first utterance of the first batch.
	timestep float64

	// OnUtterance, when set, observes every processed utterance in run
	// order after its outputs are written.
	OnUtterance func(*align.Utterance)
}

// New creates a Runner. transcriber may be nil unless
// cfg.AlignUsingPredText is set.
func New(cfg *align.Config, vocab *model.Vocabulary, source model.Source, transcriber Transcriber) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.AlignUsingPredText && transcriber == nil {
		return nil, fmt.Errorf("align_using_pred_text requires a transcriber")
	}
	return &Runner{cfg: cfg, vocab: vocab, source: source, transcriber: transcriber}, nil
}

// Run processes the whole manifest batch by batch. Configuration and
// manifest problems fail before any batch starts; per-utterance
// alignment failures are recorded in the output manifest and do not
// stop the run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	lines, err := manifest.Read(r.cfg.ManifestFilepath)
	if err != nil {
		return nil, err
	}
	if err := manifest.Validate(lines, r.cfg.AlignUsingPredText); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(r.cfg.ManifestFilepath), filepath.Ext(r.cfg.ManifestFilepath))
	outManifestPath := filepath.Join(r.cfg.OutputDir, stem+"_with_ctm_paths.json")
	outManifest, err := os.Create(outManifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output manifest: %w", err)
	}
	defer outManifest.Close()

	summary := &Summary{OutputManifest: outManifestPath}

	for _, batch := range manifest.Batches(lines, r.cfg.BatchSize) {
		utts := make([]*align.Utterance, len(batch))
		emissions := make([]*model.Emissions, len(batch))

		// The builder runs sequentially: it talks to the recognizer and
		// resolves the frozen timestep duration.
		for i, line := range batch {
			u, e, err := r.buildUtterance(line)
			if err != nil {
				return nil, err
			}
			utts[i] = u
			emissions[i] = e
		}

		// Decoding is pure data-in/data-out per utterance, so utterances
		// within a batch decode in parallel. Each goroutine writes only
		// its own slot.
		eg, _ := errgroup.WithContext(ctx)
		eg.SetLimit(runtime.GOMAXPROCS(0))
		for i := range utts {
			if utts[i].Failed() {
				continue
			}
			u, e := utts[i], emissions[i]
			eg.Go(func() error {
				path, err := align.DecodePath(e, u.TargetIDs(), r.vocab.BlankID)
				if err != nil {
					u.FailReason = err.Error()
					log.Printf("Alignment failed for %s: %v", u.ID, err)
					return nil
				}
				align.ApplyTimestamps(u, path, r.timestep)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		// Output is written sequentially in batch order so the manifest
		// stays ordered and no two writers share a file.
		for _, u := range utts {
			if !u.Failed() {
				if err := r.writeOutputs(u); err != nil {
					return nil, err
				}
				summary.Aligned++
			} else {
				summary.Failed++
			}
			summary.Total++
			if err := output.WriteManifestLine(outManifest, u); err != nil {
				return nil, err
			}
			if r.OnUtterance != nil {
				r.OnUtterance(u)
			}
		}
	}

	summary.TimestepDuration = r.timestep
	return summary, nil
}

// buildUtterance prepares one utterance: its reference text (possibly
// transcribed), its target structure, and its normalized emission
// matrix. Failures that affect only this utterance are recorded on it;
// the returned error is reserved for run-fatal conditions.
func (r *Runner) buildUtterance(line manifest.Line) (*align.Utterance, *model.Emissions, error) {
	text := line.Text
	predicted := false
	if r.cfg.AlignUsingPredText {
		pred, err := r.transcriber.TranscribeFile(line.AudioFilepath)
		if err != nil {
			return failedUtterance(line, r.cfg, fmt.Sprintf("transcription failed: %v", err)), nil, nil
		}
		text = pred
		predicted = true
	}

	u, err := align.BuildUtterance(line, text, r.vocab, r.cfg.AdditionalCTMGroupingSeparator, r.cfg.AudioFilepathPartsInUttID)
	if err != nil {
		return failedUtterance(line, r.cfg, err.Error()), nil, nil
	}
	if predicted {
		u.PredText = text
	}

	e, err := r.source.Emissions(line.AudioFilepath, line.LogitsFilepath)
	if err != nil {
		u.FailReason = err.Error()
		return u, nil, nil
	}
	if e.Vocab != r.vocab.Size() {
		return nil, nil, fmt.Errorf(
			"emission matrix for %s has vocabulary size %d but the tokens file defines %d symbols", u.ID, e.Vocab, r.vocab.Size())
	}
	e.LogSoftmax()

	ts, derived, err := r.resolveTimestep(e, line)
	if err != nil {
		u.FailReason = err.Error()
		return u, nil, nil
	}
	if r.timestep == 0 {
		r.timestep = ts
	} else if !derived && math.Abs(ts-r.timestep) > 1e-9 {
		// The model's frame stride must not change mid-run.
		return nil, nil, fmt.Errorf("output timestep duration changed from %g to %g during the run", r.timestep, ts)
	}

	if u.Duration == 0 {
		u.Duration = float64(e.Frames) * r.timestep
	}
	return u, e, nil
}

// resolveTimestep determines the duration of one output frame. When the
// model config carries the feature stride and downsampling factor the
// value is exact and constant; otherwise it is derived from the
// utterance duration and frame count (derived=true), which is only used
// to seed the frozen run-level value.
func (r *Runner) resolveTimestep(e *model.Emissions, line manifest.Line) (ts float64, derived bool, err error) {
	m := r.cfg.Model
	if m.FrameStride > 0 && m.Subsampling > 0 {
		return m.FrameStride * float64(m.Subsampling), false, nil
	}
	dur := line.Duration
	if dur == 0 {
		dur, err = model.AudioDuration(line.AudioFilepath)
		if err != nil {
			return 0, true, fmt.Errorf("cannot determine timestep duration: %w", err)
		}
	}
	return dur / float64(e.Frames), true, nil
}

func (r *Runner) writeOutputs(u *align.Utterance) error {
	withSegments := r.cfg.AdditionalCTMGroupingSeparator != ""
	if r.cfg.SaveFormat("ctm") {
		err := output.WriteCTMs(u, r.cfg.OutputDir, output.CTMOptions{
			MinimumDuration:   r.cfg.MinimumTimestampDuration,
			RemoveBlankTokens: r.cfg.CTM.RemoveBlankTokens,
			WithSegments:      withSegments,
		})
		if err != nil {
			return err
		}
	}
	if r.cfg.SaveFormat("ass") {
		err := output.WriteASSFiles(u, r.cfg.OutputDir, output.ASSOptions{
			MinimumDuration: r.cfg.MinimumTimestampDuration,
			Fontsize:        r.cfg.ASS.Fontsize,
			MarginV:         r.cfg.ASS.MarginV,
			WithSegments:    withSegments,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// failedUtterance builds a minimal utterance record for a manifest line
// whose preparation failed, so the failure still appears in the output
// manifest.
func failedUtterance(line manifest.Line, cfg *align.Config, reason string) *align.Utterance {
	return &align.Utterance{
		ID:            align.UttID(line.AudioFilepath, cfg.AudioFilepathPartsInUttID),
		AudioFilepath: line.AudioFilepath,
		Text:          line.Text,
		Duration:      line.Duration,
		OutputFiles:   make(map[string]string),
		FailReason:    reason,
		Line:          line,
	}
}
