package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ctcalign/internal/align"
)

// Directory names per granularity under the output directory.
const (
	TokensDir   = "tokens"
	WordsDir    = "words"
	SegmentsDir = "additional_segments"
)

// CTMOptions controls CTM span serialization.
type CTMOptions struct {
	MinimumDuration   float64
	RemoveBlankTokens bool
	WithSegments      bool
}

type span struct {
	label  string
	tStart float64
	tEnd   float64
}

// WriteCTMs writes one CTM file per granularity for the utterance and
// records the paths in the utterance's output-file map. Granularity
// directories are created on first use. Minimum-duration enlargement is
// applied per line, independently at each granularity.
func WriteCTMs(u *align.Utterance, outputDir string, opts CTMOptions) error {
	token := tokenSpans(u, opts.RemoveBlankTokens)
	if err := writeCTMFile(u, outputDir, TokensDir, "token_level_ctm_filepath", token, opts.MinimumDuration); err != nil {
		return err
	}
	if err := writeCTMFile(u, outputDir, WordsDir, "word_level_ctm_filepath", wordSpans(u), opts.MinimumDuration); err != nil {
		return err
	}
	if opts.WithSegments {
		if err := writeCTMFile(u, outputDir, SegmentsDir, "segment_level_ctm_filepath", segmentSpans(u), opts.MinimumDuration); err != nil {
			return err
		}
	}
	return nil
}

func tokenSpans(u *align.Utterance, removeBlanks bool) []span {
	var spans []span
	for _, unit := range u.Units {
		if unit.TStart < 0 {
			continue
		}
		if unit.Blank && removeBlanks {
			continue
		}
		spans = append(spans, span{label: unit.Text, tStart: unit.TStart, tEnd: unit.TEnd})
	}
	return spans
}

func wordSpans(u *align.Utterance) []span {
	var spans []span
	for _, w := range u.Words {
		if w.TStart < 0 {
			continue
		}
		spans = append(spans, span{label: w.Text, tStart: w.TStart, tEnd: w.TEnd})
	}
	return spans
}

func segmentSpans(u *align.Utterance) []span {
	var spans []span
	for _, s := range u.Segments {
		if s.TStart < 0 {
			continue
		}
		spans = append(spans, span{label: s.Text, tStart: s.TStart, tEnd: s.TEnd})
	}
	return spans
}

func writeCTMFile(u *align.Utterance, outputDir, subdir, field string, spans []span, minDur float64) error {
	dir := filepath.Join(outputDir, subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, u.ID+".ctm")

	var b strings.Builder
	for _, sp := range spans {
		start, end := align.EnlargeSpan(sp.tStart, sp.tEnd, minDur, u.Duration)
		// CTM fields are space separated, so labels must not contain
		// spaces.
		label := strings.ReplaceAll(sp.label, " ", "<space>")
		fmt.Fprintf(&b, "%s 1 %.2f %.2f %s\n", u.ID, start, end-start, label)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write CTM file %s: %w", path, err)
	}
	u.OutputFiles[field] = path
	return nil
}
