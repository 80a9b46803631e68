package output

import (
	"encoding/json"
	"fmt"
	"io"

	"ctcalign/internal/align"
)

// WriteManifestLine appends one utterance's entry to the output
// manifest: the original line's fields, the predicted text when one was
// produced, and either the paths of every file written for the
// utterance or the reason alignment failed. Keys marshal in sorted
// order, so repeated runs emit byte-identical lines.
func WriteManifestLine(w io.Writer, u *align.Utterance) error {
	entry := make(map[string]any)
	for k, v := range u.Line.Extra {
		entry[k] = v
	}
	entry["audio_filepath"] = u.AudioFilepath
	if u.Line.Text != "" {
		entry["text"] = u.Line.Text
	}
	if u.PredText != "" {
		entry["pred_text"] = u.PredText
	}
	if u.Duration > 0 {
		entry["duration"] = u.Duration
	}
	if u.Line.LogitsFilepath != "" {
		entry["logits_filepath"] = u.Line.LogitsFilepath
	}

	if u.Failed() {
		entry["alignment_error"] = u.FailReason
	} else {
		for field, path := range u.OutputFiles {
			entry[field] = path
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest entry for %s: %w", u.ID, err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write manifest entry for %s: %w", u.ID, err)
	}
	return nil
}
