package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Line is one entry of the input manifest (one JSON object per line).
// Unknown fields are preserved in Extra so they can be carried through
// to the output manifest unchanged.
type Line struct {
	AudioFilepath  string  `json:"audio_filepath"`
	Text           string  `json:"text,omitempty"`
	PredText       string  `json:"pred_text,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
	LogitsFilepath string  `json:"logits_filepath,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// knownFields are the manifest keys decoded into named Line fields.
var knownFields = map[string]bool{
	"audio_filepath":  true,
	"text":            true,
	"pred_text":       true,
	"duration":        true,
	"logits_filepath": true,
}

// UnmarshalJSON decodes the named fields and collects everything else
// into Extra.
func (l *Line) UnmarshalJSON(data []byte) error {
	type alias Line
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*l = Line(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if knownFields[k] {
			continue
		}
		if l.Extra == nil {
			l.Extra = make(map[string]json.RawMessage)
		}
		l.Extra[k] = v
	}
	return nil
}

// Read loads all lines of the manifest file at path. Blank lines are
// skipped. It fails on the first line that is not a valid JSON object.
func Read(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	var lines []Line
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var line Line
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return nil, fmt.Errorf("manifest line %d is not valid JSON: %w", lineNum, err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return lines, nil
}

// Validate runs the pre-pass checks over all manifest lines before any
// decoding starts, so bad input surfaces early rather than mid-run.
//
// Every line must carry audio_filepath. When alignUsingPredText is set,
// no line may already carry pred_text (the audio will be transcribed and
// could produce a different one). Otherwise every line must carry text.
func Validate(lines []Line, alignUsingPredText bool) error {
	if len(lines) == 0 {
		return fmt.Errorf("manifest contains no entries")
	}
	for i, line := range lines {
		if line.AudioFilepath == "" {
			return fmt.Errorf("manifest line %d does not contain an 'audio_filepath' entry; all lines must contain one", i+1)
		}
	}
	if alignUsingPredText {
		for i, line := range lines {
			if line.PredText != "" {
				return fmt.Errorf(
					"manifest line %d already contains a 'pred_text' entry; cannot align using predicted text when pred_text is present, as transcription may produce a different text", i+1)
			}
		}
		return nil
	}
	for i, line := range lines {
		if line.Text == "" {
			return fmt.Errorf("manifest line %d does not contain a 'text' entry; all lines must contain one when not aligning using predicted text", i+1)
		}
	}
	return nil
}

// Batches slices lines into batches of at most batchSize entries,
// preserving order.
func Batches(lines []Line, batchSize int) [][]Line {
	if batchSize < 1 {
		batchSize = 1
	}
	var batches [][]Line
	for start := 0; start < len(lines); start += batchSize {
		end := start + batchSize
		if end > len(lines) {
			end = len(lines)
		}
		batches = append(batches, lines[start:end])
	}
	return batches
}
