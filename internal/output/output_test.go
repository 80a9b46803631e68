package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ctcalign/internal/align"
	"ctcalign/internal/manifest"
)

// alignedUtterance builds an utterance for "ab c" with spans already
// applied: tokens a=[0,0.2], b=[0.2,0.4], c=[0.6,1.0], a separating
// blank at [0.4,0.6].
func alignedUtterance() *align.Utterance {
	u := &align.Utterance{
		ID:            "utt1",
		AudioFilepath: "/data/utt1.wav",
		Text:          "ab c",
		Duration:      1.0,
		TargetLen:     3,
		OutputFiles:   make(map[string]string),
		Line:          manifest.Line{AudioFilepath: "/data/utt1.wav", Text: "ab c", Duration: 1.0},
	}
	u.Units = []align.Unit{
		{Text: "<b>", Blank: true, SPos: 0, TStart: -1, TEnd: -1},
		{Text: "a", SPos: 1, TStart: 0.0, TEnd: 0.2},
		{Text: "<b>", Blank: true, SPos: 2, TStart: -1, TEnd: -1},
		{Text: "b", SPos: 3, TStart: 0.2, TEnd: 0.4},
		{Text: "<b>", Blank: true, SPos: 4, TStart: 0.4, TEnd: 0.6},
		{Text: "c", SPos: 5, TStart: 0.6, TEnd: 1.0},
		{Text: "<b>", Blank: true, SPos: 6, TStart: -1, TEnd: -1},
	}
	u.Words = []align.Word{
		{Text: "ab", FirstUnit: 1, LastUnit: 3, TStart: 0.0, TEnd: 0.4},
		{Text: "c", FirstUnit: 5, LastUnit: 5, TStart: 0.6, TEnd: 1.0},
	}
	u.Segments = []align.Segment{
		{Text: "ab c", FirstWord: 0, LastWord: 1, TStart: 0.0, TEnd: 1.0},
	}
	return u
}

func TestWriteCTMs(t *testing.T) {
	dir := t.TempDir()
	u := alignedUtterance()

	err := WriteCTMs(u, dir, CTMOptions{WithSegments: true})
	if err != nil {
		t.Fatalf("WriteCTMs failed: %v", err)
	}

	tokenPath := filepath.Join(dir, TokensDir, "utt1.ctm")
	if u.OutputFiles["token_level_ctm_filepath"] != tokenPath {
		t.Errorf("Unexpected token CTM path: %v", u.OutputFiles)
	}
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		t.Fatalf("Failed to read token CTM: %v", err)
	}
	want := "utt1 1 0.00 0.20 a\nutt1 1 0.20 0.20 b\nutt1 1 0.40 0.20 <b>\nutt1 1 0.60 0.40 c\n"
	if string(data) != want {
		t.Errorf("Token CTM mismatch:\ngot:  %q\nwant: %q", string(data), want)
	}

	wordData, err := os.ReadFile(filepath.Join(dir, WordsDir, "utt1.ctm"))
	if err != nil {
		t.Fatalf("Failed to read word CTM: %v", err)
	}
	wantWords := "utt1 1 0.00 0.40 ab\nutt1 1 0.60 0.40 c\n"
	if string(wordData) != wantWords {
		t.Errorf("Word CTM mismatch:\ngot:  %q\nwant: %q", string(wordData), wantWords)
	}

	segData, err := os.ReadFile(filepath.Join(dir, SegmentsDir, "utt1.ctm"))
	if err != nil {
		t.Fatalf("Failed to read segment CTM: %v", err)
	}
	// Segment labels escape inner spaces to stay one CTM field.
	if !strings.Contains(string(segData), "ab<space>c") {
		t.Errorf("Expected escaped segment label, got %q", string(segData))
	}
}

func TestWriteCTMs_RemoveBlanks(t *testing.T) {
	dir := t.TempDir()
	u := alignedUtterance()

	err := WriteCTMs(u, dir, CTMOptions{RemoveBlankTokens: true})
	if err != nil {
		t.Fatalf("WriteCTMs failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, TokensDir, "utt1.ctm"))
	if err != nil {
		t.Fatalf("Failed to read token CTM: %v", err)
	}
	if strings.Contains(string(data), "<b>") {
		t.Errorf("Blank tokens should be removed, got %q", string(data))
	}
}

func TestWriteCTMs_Deterministic(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	if err := WriteCTMs(alignedUtterance(), dirA, CTMOptions{WithSegments: true}); err != nil {
		t.Fatalf("WriteCTMs failed: %v", err)
	}
	if err := WriteCTMs(alignedUtterance(), dirB, CTMOptions{WithSegments: true}); err != nil {
		t.Fatalf("WriteCTMs failed: %v", err)
	}
	for _, sub := range []string{TokensDir, WordsDir, SegmentsDir} {
		a, _ := os.ReadFile(filepath.Join(dirA, sub, "utt1.ctm"))
		b, _ := os.ReadFile(filepath.Join(dirB, sub, "utt1.ctm"))
		if !bytes.Equal(a, b) {
			t.Errorf("CTM output for %s is not byte-identical across runs", sub)
		}
	}
}

func TestWriteCTMs_MinimumDuration(t *testing.T) {
	dir := t.TempDir()
	u := alignedUtterance()

	err := WriteCTMs(u, dir, CTMOptions{MinimumDuration: 0.5})
	if err != nil {
		t.Fatalf("WriteCTMs failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, WordsDir, "utt1.ctm"))
	if err != nil {
		t.Fatalf("Failed to read word CTM: %v", err)
	}
	// "ab" grows from midpoint 0.2 and is clipped at zero; "c" grows
	// from 0.8 and is clipped at the utterance end.
	want := "utt1 1 0.00 0.45 ab\nutt1 1 0.55 0.45 c\n"
	if string(data) != want {
		t.Errorf("Word CTM mismatch:\ngot:  %q\nwant: %q", string(data), want)
	}
}

func TestWriteASSFiles(t *testing.T) {
	dir := t.TempDir()
	u := alignedUtterance()

	err := WriteASSFiles(u, dir, ASSOptions{Fontsize: 24, MarginV: 30, WithSegments: true})
	if err != nil {
		t.Fatalf("WriteASSFiles failed: %v", err)
	}
	path := filepath.Join(dir, "ass", WordsDir, "utt1.ass")
	if u.OutputFiles["word_level_ass_filepath"] != path {
		t.Errorf("Unexpected ASS path map: %v", u.OutputFiles)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read ASS file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "Style: Default,Arial,24,") {
		t.Errorf("Expected configured fontsize in style line, got:\n%s", content)
	}
	if !strings.Contains(content, ",30,1\n") {
		t.Errorf("Expected configured MarginV in style line, got:\n%s", content)
	}
	if !strings.Contains(content, "Dialogue: 0,0:00:00.00,0:00:00.40,Default,,0,0,0,,ab") {
		t.Errorf("Expected dialogue cue for word 'ab', got:\n%s", content)
	}
}

func TestAssTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00:00.00"},
		{1.5, "0:00:01.50"},
		{61.25, "0:01:01.25"},
		{3600.99, "1:00:00.99"},
	}
	for _, tt := range tests {
		if got := assTime(tt.seconds); got != tt.want {
			t.Errorf("assTime(%f) = %q, expected %q", tt.seconds, got, tt.want)
		}
	}
}

func TestWriteManifestLine(t *testing.T) {
	u := alignedUtterance()
	u.OutputFiles["token_level_ctm_filepath"] = "/out/tokens/utt1.ctm"

	var buf bytes.Buffer
	if err := WriteManifestLine(&buf, u); err != nil {
		t.Fatalf("WriteManifestLine failed: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, `"audio_filepath":"/data/utt1.wav"`) {
		t.Errorf("Missing audio_filepath: %s", line)
	}
	if !strings.Contains(line, `"token_level_ctm_filepath":"/out/tokens/utt1.ctm"`) {
		t.Errorf("Missing CTM path: %s", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("Manifest line must end with a newline")
	}
}

func TestWriteManifestLine_Failure(t *testing.T) {
	u := alignedUtterance()
	u.FailReason = "target sequence is too long for the number of frames"
	u.OutputFiles["token_level_ctm_filepath"] = "/should/not/appear.ctm"

	var buf bytes.Buffer
	if err := WriteManifestLine(&buf, u); err != nil {
		t.Fatalf("WriteManifestLine failed: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, `"alignment_error"`) {
		t.Errorf("Expected alignment_error field: %s", line)
	}
	if strings.Contains(line, "appear.ctm") {
		t.Errorf("Failed utterance must not reference output files: %s", line)
	}
}
