package align

import "strings"

// SplitSegments splits text into custom grouping segments. With an
// empty separator the whole text is one segment. Empty pieces produced
// by leading, trailing, or doubled separators are dropped.
func SplitSegments(text, separator string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if separator == "" {
		return []string{strings.TrimSpace(text)}
	}
	var segments []string
	for _, piece := range strings.Split(text, separator) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			segments = append(segments, piece)
		}
	}
	return segments
}

// aggregateSpans propagates aligned unit times upward: a word's span is
// its first token's start to its last token's end, and a segment's span
// likewise over its words. Aggregation runs on the raw spans, before
// any minimum-duration enlargement, so finer spans partition exactly
// into coarser ones.
func aggregateSpans(u *Utterance) {
	for i := range u.Words {
		w := &u.Words[i]
		w.TStart = u.Units[w.FirstUnit].TStart
		w.TEnd = u.Units[w.LastUnit].TEnd
	}
	for i := range u.Segments {
		s := &u.Segments[i]
		s.TStart = u.Words[s.FirstWord].TStart
		s.TEnd = u.Words[s.LastWord].TEnd
	}
}
