package align

import (
	"fmt"
	"path/filepath"
	"strings"

	"ctcalign/internal/manifest"
	"ctcalign/internal/model"
)

// Unit is one position of the blank-interleaved CTC target sequence:
// either a real vocabulary token or an interleaved blank. Units at even
// positions are blanks, odd positions are the target tokens.
type Unit struct {
	Text  string
	ID    int
	Blank bool
	SPos  int // position in the expanded sequence

	// TStart/TEnd are the aligned times in seconds. TStart is negative
	// until the unit has been assigned frames; blanks that the optimal
	// path skips keep a negative TStart.
	TStart float64
	TEnd   float64
}

// Word is a maximal run of target tokens not separated by a word
// boundary. FirstUnit/LastUnit index into Utterance.Units.
type Word struct {
	Text      string
	FirstUnit int
	LastUnit  int
	TStart    float64
	TEnd      float64
}

// Segment is a run of words delimited by the custom grouping separator
// in the original text. FirstWord/LastWord index into Utterance.Words.
type Segment struct {
	Text      string
	FirstWord int
	LastWord  int
	TStart    float64
	TEnd      float64
}

// Utterance carries one recording through the pipeline: its target
// structure before decoding, its aligned spans after, and the output
// files written for it.
type Utterance struct {
	ID            string
	AudioFilepath string
	Text          string
	PredText      string
	Duration      float64 // seconds

	Units    []Unit
	Words    []Word
	Segments []Segment

	// TargetLen is the number of real target tokens (U). The expanded
	// sequence has 2U+1 units.
	TargetLen int

	// OutputFiles maps manifest field names (e.g.
	// "token_level_ctm_filepath") to written file paths.
	OutputFiles map[string]string

	// FailReason is set when alignment failed for this utterance; the
	// rest of the batch is unaffected.
	FailReason string

	Line manifest.Line
}

// Failed reports whether alignment failed for this utterance.
func (u *Utterance) Failed() bool { return u.FailReason != "" }

// TargetIDs returns the vocabulary ids of the real target tokens, in
// order.
func (u *Utterance) TargetIDs() []int {
	ids := make([]int, 0, u.TargetLen)
	for _, unit := range u.Units {
		if !unit.Blank {
			ids = append(ids, unit.ID)
		}
	}
	return ids
}

// UttID derives the utterance identifier from the trailing parts of the
// audio path: the last `parts` path components joined by underscores,
// with the extension stripped and spaces replaced by dashes, so the id
// stays a single space-separated CTM field.
//
// "/a/b/c/d/e 1.wav" with parts=2 gives "d_e-1".
func UttID(audioPath string, parts int) string {
	if parts < 1 {
		parts = 1
	}
	split := strings.Split(filepath.ToSlash(audioPath), "/")
	var kept []string
	for _, p := range split {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) > parts {
		kept = kept[len(kept)-parts:]
	}
	id := strings.Join(kept, "_")
	id = strings.TrimSuffix(id, filepath.Ext(id))
	return strings.ReplaceAll(id, " ", "-")
}

// BuildUtterance constructs the target structure for one manifest line:
// the text split into custom segments, words, and vocabulary tokens,
// and the blank-interleaved unit sequence the decoder consumes. text is
// the alignment reference (ground-truth or predicted).
func BuildUtterance(line manifest.Line, text string, vocab *model.Vocabulary, separator string, partsInID int) (*Utterance, error) {
	u := &Utterance{
		ID:            UttID(line.AudioFilepath, partsInID),
		AudioFilepath: line.AudioFilepath,
		Text:          text,
		Duration:      line.Duration,
		OutputFiles:   make(map[string]string),
		Line:          line,
	}

	segTexts := SplitSegments(text, separator)
	if len(segTexts) == 0 {
		return nil, fmt.Errorf("utterance %s has no text to align", u.ID)
	}

	// Leading blank; then token+blank per target token.
	u.Units = append(u.Units, Unit{Text: vocab.Symbol(vocab.BlankID), ID: vocab.BlankID, Blank: true, SPos: 0, TStart: -1, TEnd: -1})

	for _, segText := range segTexts {
		words, err := vocab.TokenizeWords(segText)
		if err != nil {
			return nil, fmt.Errorf("utterance %s: %w", u.ID, err)
		}
		if len(words) == 0 {
			continue
		}
		firstWord := len(u.Words)
		wordTexts := strings.Fields(segText)
		for w, pieces := range words {
			word := Word{Text: wordTexts[w], FirstUnit: len(u.Units), TStart: -1, TEnd: -1}
			for _, piece := range pieces {
				u.Units = append(u.Units,
					Unit{Text: piece.Text, ID: piece.ID, SPos: len(u.Units), TStart: -1, TEnd: -1},
					Unit{Text: vocab.Symbol(vocab.BlankID), ID: vocab.BlankID, Blank: true, SPos: len(u.Units) + 1, TStart: -1, TEnd: -1},
				)
				u.TargetLen++
			}
			word.LastUnit = len(u.Units) - 2
			u.Words = append(u.Words, word)
		}
		u.Segments = append(u.Segments, Segment{
			Text:      segText,
			FirstWord: firstWord,
			LastWord:  len(u.Words) - 1,
			TStart:    -1,
			TEnd:      -1,
		})
	}

	if u.TargetLen == 0 {
		return nil, fmt.Errorf("utterance %s has no tokenizable text", u.ID)
	}
	return u, nil
}
