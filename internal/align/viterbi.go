package align

import (
	"errors"
	"fmt"
	"math"

	"ctcalign/internal/model"
)

// ErrTargetTooLong marks utterances whose target sequence cannot fit in
// the available frames: the expanded sequence needs 2U+1 <= T for any
// monotonic path to exist.
var ErrTargetTooLong = errors.New("target sequence is too long for the number of frames")

// Transition codes stored as backpointers.
const (
	tStay    uint8 = iota // same expanded position as previous frame
	tAdvance              // from position s-1
	tSkip                 // from position s-2 (skipping a blank)
)

// DecodePath finds the maximum-log-probability monotonic path through
// the emission matrix that emits the target token ids in order under
// the CTC topology: any token may be padded with blanks on either side,
// a token may persist across consecutive frames, and identical
// consecutive tokens must be separated by at least one blank frame.
//
// The returned path has one entry per frame holding the active position
// in the blank-interleaved expanded sequence (even positions are
// blanks, position 2k+1 is target token k).
//
// Ties are broken toward the transition that makes more progress
// through the target (skip over advance over stay), so boundary frames
// attribute deterministically.
func DecodePath(e *model.Emissions, targets []int, blankID int) ([]int, error) {
	T := e.Frames
	U := len(targets)
	S := 2*U + 1
	if S > T {
		return nil, fmt.Errorf("%w: need %d expanded positions but only %d frames", ErrTargetTooLong, S, T)
	}
	if blankID < 0 || blankID >= e.Vocab {
		return nil, fmt.Errorf("blank id %d is outside the emission vocabulary of size %d", blankID, e.Vocab)
	}
	for i, id := range targets {
		if id < 0 || id >= e.Vocab {
			return nil, fmt.Errorf("target token %d has id %d outside the emission vocabulary of size %d", i, id, e.Vocab)
		}
	}

	// Expanded sequence: blank, y1, blank, y2, ..., blank.
	y := make([]int, S)
	for s := range y {
		if s%2 == 0 {
			y[s] = blankID
		} else {
			y[s] = targets[s/2]
		}
	}

	negInf := math.Inf(-1)
	prev := make([]float64, S)
	cur := make([]float64, S)
	backptr := make([]uint8, T*S)

	for s := range prev {
		prev[s] = negInf
	}
	prev[0] = float64(e.At(0, y[0]))
	if S > 1 {
		prev[1] = float64(e.At(0, y[1]))
	}

	for t := 1; t < T; t++ {
		for s := 0; s < S; s++ {
			best := prev[s]
			from := tStay
			if s >= 1 && prev[s-1] >= best {
				best = prev[s-1]
				from = tAdvance
			}
			// Skipping the blank between tokens is only legal into a
			// real token position that differs from the previous one.
			if s >= 2 && s%2 == 1 && y[s] != y[s-2] && prev[s-2] >= best {
				best = prev[s-2]
				from = tSkip
			}
			if best == negInf {
				cur[s] = negInf
				backptr[t*S+s] = tStay
				continue
			}
			cur[s] = best + float64(e.At(t, y[s]))
			backptr[t*S+s] = from
		}
		prev, cur = cur, prev
	}

	// The path must end on the final blank or the final token. Prefer
	// the final blank on a tie (more progress).
	end := S - 1
	if S >= 2 && prev[S-2] > prev[S-1] {
		end = S - 2
	}
	if prev[end] == negInf {
		return nil, fmt.Errorf("no valid alignment path exists for %d targets over %d frames", U, T)
	}

	path := make([]int, T)
	s := end
	for t := T - 1; t >= 1; t-- {
		path[t] = s
		s -= int(backptr[t*S+s])
	}
	path[0] = s
	return path, nil
}
