package model

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTokens(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write tokens file: %v", err)
	}
	return path
}

func TestLoadVocabulary_Subword(t *testing.T) {
	path := writeTokens(t, "<blk> 0\n▁he 1\nllo 2\n▁world 3\nl 4\no 5\n")

	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary failed: %v", err)
	}
	if v.BlankID != 0 {
		t.Errorf("Expected blank id 0, got %d", v.BlankID)
	}
	if !v.Subword() {
		t.Error("Expected subword vocabulary")
	}
	if v.Size() != 6 {
		t.Errorf("Expected size 6, got %d", v.Size())
	}
	if v.Symbol(0) != "<b>" {
		t.Errorf("Expected blank to render as <b>, got %q", v.Symbol(0))
	}

	words, err := v.TokenizeWords("hello world")
	if err != nil {
		t.Fatalf("TokenizeWords failed: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("Expected 2 words, got %d", len(words))
	}
	// Greedy longest match: "▁he" + "llo".
	if len(words[0]) != 2 || words[0][0].Text != "▁he" || words[0][1].Text != "llo" {
		t.Errorf("Unexpected pieces for 'hello': %+v", words[0])
	}
	if len(words[1]) != 1 || words[1][0].Text != "▁world" {
		t.Errorf("Unexpected pieces for 'world': %+v", words[1])
	}
}

func TestLoadVocabulary_CharImplicitBlank(t *testing.T) {
	path := writeTokens(t, "a 0\nb 1\nc 2\n")

	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary failed: %v", err)
	}
	// No explicit blank symbol: blank is appended after the last id.
	if v.BlankID != 3 {
		t.Errorf("Expected implicit blank id 3, got %d", v.BlankID)
	}
	if v.Size() != 4 {
		t.Errorf("Expected size 4, got %d", v.Size())
	}
	if v.Subword() {
		t.Error("Expected character vocabulary")
	}

	words, err := v.TokenizeWords("ab c")
	if err != nil {
		t.Fatalf("TokenizeWords failed: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("Expected 2 words, got %d", len(words))
	}
	if len(words[0]) != 2 || words[0][0].ID != 0 || words[0][1].ID != 1 {
		t.Errorf("Unexpected pieces for 'ab': %+v", words[0])
	}
}

func TestTokenizeWords_UnknownCharacter(t *testing.T) {
	path := writeTokens(t, "a 0\nb 1\n")
	v, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary failed: %v", err)
	}

	if _, err := v.TokenizeWords("ax"); err == nil {
		t.Error("Expected error for unknown character without <unk>")
	}

	path = writeTokens(t, "a 0\nb 1\n<unk> 2\n")
	v, err = LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary failed: %v", err)
	}
	words, err := v.TokenizeWords("ax")
	if err != nil {
		t.Fatalf("TokenizeWords failed: %v", err)
	}
	if len(words[0]) != 2 || words[0][1].Text != "<unk>" {
		t.Errorf("Expected unknown character to map to <unk>, got %+v", words[0])
	}
}
