package align

import (
	"errors"
	"math"
	"testing"

	"ctcalign/internal/model"
)

// emissionsFromRows builds a normalized emission matrix from per-frame
// probability rows.
func emissionsFromRows(t *testing.T, rows [][]float64) *model.Emissions {
	t.Helper()
	if len(rows) == 0 {
		t.Fatal("No rows given")
	}
	vocab := len(rows[0])
	e := &model.Emissions{
		LogProbs: make([]float32, len(rows)*vocab),
		Frames:   len(rows),
		Vocab:    vocab,
	}
	for f, row := range rows {
		for v, p := range row {
			e.LogProbs[f*vocab+v] = float32(math.Log(p))
		}
	}
	return e
}

// Vocabulary for decoder tests: a=0, b=1, blank=2.
const (
	symA  = 0
	symB  = 1
	blank = 2
)

func TestDecodePath_SimpleSequence(t *testing.T) {
	hi, lo := 0.90, 0.05
	e := emissionsFromRows(t, [][]float64{
		{lo, lo, hi}, // blank
		{hi, lo, lo}, // a
		{hi, lo, lo}, // a
		{lo, lo, hi}, // blank
		{lo, hi, lo}, // b
		{lo, lo, hi}, // blank
	})

	path, err := DecodePath(e, []int{symA, symB}, blank)
	if err != nil {
		t.Fatalf("DecodePath failed: %v", err)
	}
	want := []int{0, 1, 1, 2, 3, 4}
	if len(path) != len(want) {
		t.Fatalf("Expected path length %d, got %d", len(want), len(path))
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("Expected path %v, got %v", want, path)
		}
	}
}

func TestDecodePath_Properties(t *testing.T) {
	// Arbitrary non-degenerate emissions.
	e := emissionsFromRows(t, [][]float64{
		{0.4, 0.3, 0.3},
		{0.2, 0.5, 0.3},
		{0.3, 0.3, 0.4},
		{0.5, 0.2, 0.3},
		{0.1, 0.6, 0.3},
		{0.2, 0.2, 0.6},
		{0.3, 0.4, 0.3},
		{0.4, 0.2, 0.4},
	})
	targets := []int{symA, symB, symA}
	S := 2*len(targets) + 1

	path, err := DecodePath(e, targets, blank)
	if err != nil {
		t.Fatalf("DecodePath failed: %v", err)
	}
	if len(path) != e.Frames {
		t.Fatalf("Expected path length %d, got %d", e.Frames, len(path))
	}
	for i := 1; i < len(path); i++ {
		jump := path[i] - path[i-1]
		if jump < 0 || jump > 2 {
			t.Fatalf("Illegal transition %d -> %d at frame %d", path[i-1], path[i], i)
		}
	}
	if end := path[len(path)-1]; end != S-1 && end != S-2 {
		t.Errorf("Path must end on the final blank or final token, got position %d", end)
	}
}

func TestDecodePath_SkipsBlankBetweenDistinctSymbols(t *testing.T) {
	hi, lo := 0.98, 0.01
	e := emissionsFromRows(t, [][]float64{
		{hi, lo, lo}, // a
		{hi, lo, lo}, // a
		{lo, hi, lo}, // b
		{lo, hi, lo}, // b
	})

	path, err := DecodePath(e, []int{symA, symB}, blank)
	if err != nil {
		t.Fatalf("DecodePath failed: %v", err)
	}
	for i, s := range path {
		if s == 2 {
			t.Errorf("Frame %d assigned to the inter-token blank; expected a direct skip (path %v)", i, path)
		}
	}
	if path[0] != 1 {
		t.Errorf("Expected blank-free start at the first token, got position %d", path[0])
	}
}

func TestDecodePath_RepeatedSymbolNeedsBlank(t *testing.T) {
	hi, lo := 0.98, 0.01
	// All frames favor "a"; the repeated target still must cross the
	// middle blank.
	e := emissionsFromRows(t, [][]float64{
		{hi, lo, lo},
		{hi, lo, lo},
		{hi, lo, lo},
		{hi, lo, lo},
		{hi, lo, lo},
	})

	path, err := DecodePath(e, []int{symA, symA}, blank)
	if err != nil {
		t.Fatalf("DecodePath failed: %v", err)
	}
	visitedMiddleBlank := false
	for _, s := range path {
		if s == 2 {
			visitedMiddleBlank = true
		}
	}
	if !visitedMiddleBlank {
		t.Errorf("Repeated symbols must be separated by a blank frame, path %v", path)
	}
}

func TestDecodePath_TargetTooLong(t *testing.T) {
	e := emissionsFromRows(t, [][]float64{
		{0.4, 0.3, 0.3},
		{0.4, 0.3, 0.3},
		{0.4, 0.3, 0.3},
	})
	// 2*2+1 = 5 > 3 frames.
	_, err := DecodePath(e, []int{symA, symB}, blank)
	if err == nil {
		t.Fatal("Expected error for target longer than the frames allow")
	}
	if !errors.Is(err, ErrTargetTooLong) {
		t.Errorf("Expected ErrTargetTooLong, got: %v", err)
	}
}

func TestDecodePath_TieBreakPrefersAdvance(t *testing.T) {
	// Uniform emissions: every path has the same score, so the tie
	// policy alone decides. Advancing as late as never and as early as
	// always would both tie; the decoder must advance eagerly.
	u := 1.0 / 3.0
	e := emissionsFromRows(t, [][]float64{
		{u, u, u},
		{u, u, u},
		{u, u, u},
	})

	path, err := DecodePath(e, []int{symA}, blank)
	if err != nil {
		t.Fatalf("DecodePath failed: %v", err)
	}
	want := []int{0, 1, 2}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("Expected deterministic tie-broken path %v, got %v", want, path)
		}
	}

	// Determinism: identical inputs give identical paths.
	again, err := DecodePath(e, []int{symA}, blank)
	if err != nil {
		t.Fatalf("DecodePath failed: %v", err)
	}
	for i := range path {
		if again[i] != path[i] {
			t.Fatalf("Repeated decode differed: %v vs %v", path, again)
		}
	}
}

func TestDecodePath_InvalidTargetID(t *testing.T) {
	e := emissionsFromRows(t, [][]float64{
		{0.5, 0.3, 0.2},
		{0.5, 0.3, 0.2},
		{0.5, 0.3, 0.2},
	})
	if _, err := DecodePath(e, []int{7}, blank); err == nil {
		t.Error("Expected error for out-of-range target id")
	}
}
