package align

// ApplyTimestamps converts a decoded path into wall-clock spans. Each
// unit's span covers its first through last assigned frame, with the
// end placed at the far edge of the last frame so adjacent spans tile
// the timeline. Word and segment spans are aggregated from their
// children. Units the path never visits (skipped blanks) keep negative
// spans and produce no output lines.
func ApplyTimestamps(u *Utterance, path []int, timestep float64) {
	first := make([]int, len(u.Units))
	last := make([]int, len(u.Units))
	for i := range first {
		first[i] = -1
	}
	for t, s := range path {
		if s < 0 || s >= len(u.Units) {
			continue
		}
		if first[s] < 0 {
			first[s] = t
		}
		last[s] = t
	}
	for i := range u.Units {
		if first[i] < 0 {
			continue
		}
		u.Units[i].TStart = float64(first[i]) * timestep
		u.Units[i].TEnd = float64(last[i]+1) * timestep
	}
	if u.Duration == 0 && len(path) > 0 {
		u.Duration = float64(len(path)) * timestep
	}
	aggregateSpans(u)
}

// EnlargeSpan grows a span below minDur symmetrically from its midpoint
// until it meets minDur or is clipped by the utterance boundaries
// [0, limit]. Neighbors' positions are deliberately ignored, so
// enlarged spans may overlap adjacent ones; consumers of the output
// must expect that.
func EnlargeSpan(start, end, minDur, limit float64) (float64, float64) {
	if end-start >= minDur || minDur <= 0 {
		return start, end
	}
	mid := (start + end) / 2
	start = mid - minDur/2
	end = mid + minDur/2
	if start < 0 {
		start = 0
	}
	if limit > 0 && end > limit {
		end = limit
	}
	return start, end
}
