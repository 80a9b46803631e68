package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ctcalign/internal/align"
)

// ASSOptions controls ASS subtitle output.
type ASSOptions struct {
	MinimumDuration float64
	Fontsize        int
	MarginV         int
	WithSegments    bool
}

// WriteASSFiles writes one ASS subtitle file per granularity with one
// dialogue cue per aligned span, and records the paths in the
// utterance's output-file map. Files live under
// <output_dir>/ass/{tokens,words,additional_segments}/.
func WriteASSFiles(u *align.Utterance, outputDir string, opts ASSOptions) error {
	if err := writeASSFile(u, outputDir, TokensDir, "token_level_ass_filepath", tokenSpans(u, false), opts); err != nil {
		return err
	}
	if err := writeASSFile(u, outputDir, WordsDir, "word_level_ass_filepath", wordSpans(u), opts); err != nil {
		return err
	}
	if opts.WithSegments {
		if err := writeASSFile(u, outputDir, SegmentsDir, "segment_level_ass_filepath", segmentSpans(u), opts); err != nil {
			return err
		}
	}
	return nil
}

func writeASSFile(u *align.Utterance, outputDir, subdir, field string, spans []span, opts ASSOptions) error {
	dir := filepath.Join(outputDir, "ass", subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, u.ID+".ass")

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	b.WriteString("PlayResX: 384\nPlayResY: 288\n\n")
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Default,Arial,%d,&Hffffff,&Hffffff,&H0,&H0,0,0,0,0,100,100,0,0,1,1,0,2,10,10,%d,1\n\n", opts.Fontsize, opts.MarginV)
	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, Effect, Text\n")

	for _, sp := range spans {
		start, end := align.EnlargeSpan(sp.tStart, sp.tEnd, opts.MinimumDuration, u.Duration)
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", assTime(start), assTime(end), sp.label)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write ASS file %s: %w", path, err)
	}
	u.OutputFiles[field] = path
	return nil
}

// assTime formats seconds as the ASS H:MM:SS.cc timestamp.
func assTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	centis := int(seconds*100 + 0.5)
	h := centis / 360000
	m := centis / 6000 % 60
	s := centis / 100 % 60
	cs := centis % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}
