package model

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WordBoundary is the SentencePiece word-start marker used by BPE
// vocabularies.
const WordBoundary = "▁"

// blankSymbols are the spellings recognized as the CTC blank entry in a
// tokens file.
var blankSymbols = map[string]bool{
	"<blk>":   true,
	"<blank>": true,
	"<pad>":   true,
}

// Piece is one vocabulary entry produced by tokenization.
type Piece struct {
	Text string
	ID   int
}

// Vocabulary maps between text and the symbol ids of a CTC acoustic
// model. It is loaded from a sherpa-style tokens.txt ("symbol id" per
// line) and knows the blank id and the word-boundary convention of the
// model (SentencePiece subwords or per-character symbols).
type Vocabulary struct {
	symbols []string
	ids     map[string]int

	// BlankID is the id of the CTC blank. When the tokens file carries
	// no explicit blank symbol it defaults to len(symbols), i.e. one
	// past the last real symbol, matching models that append the blank
	// to the end of the output layer.
	BlankID int

	// subword is true for SentencePiece-style vocabularies where word
	// starts are marked with WordBoundary.
	subword bool

	unkID int // -1 when the vocabulary has no <unk>
}

// LoadVocabulary reads a tokens.txt file. Each line is "symbol id"; a
// line whose symbol field is empty denotes a literal space symbol.
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tokens file: %w", err)
	}
	defer f.Close()

	v := &Vocabulary{
		ids:     make(map[string]int),
		BlankID: -1,
		unkID:   -1,
	}

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		cut := strings.LastIndex(line, " ")
		if cut < 0 {
			return nil, fmt.Errorf("tokens file line %d: expected 'symbol id', got %q", lineNum, line)
		}
		symbol := line[:cut]
		id, err := strconv.Atoi(line[cut+1:])
		if err != nil {
			return nil, fmt.Errorf("tokens file line %d: invalid id %q", lineNum, line[cut+1:])
		}
		if symbol == "" {
			symbol = " "
		}

		for len(v.symbols) <= id {
			v.symbols = append(v.symbols, "")
		}
		v.symbols[id] = symbol
		v.ids[symbol] = id

		if blankSymbols[symbol] {
			v.BlankID = id
		}
		if symbol == "<unk>" {
			v.unkID = id
		}
		if strings.HasPrefix(symbol, WordBoundary) {
			v.subword = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tokens file: %w", err)
	}
	if len(v.symbols) == 0 {
		return nil, fmt.Errorf("tokens file %s contains no symbols", path)
	}
	if v.BlankID < 0 {
		v.BlankID = len(v.symbols)
	}
	return v, nil
}

// Size returns the number of symbols including the blank.
func (v *Vocabulary) Size() int {
	if v.BlankID >= len(v.symbols) {
		return len(v.symbols) + 1
	}
	return len(v.symbols)
}

// Symbol returns the text of the given id; the blank renders as "<b>".
func (v *Vocabulary) Symbol(id int) string {
	if id == v.BlankID {
		return "<b>"
	}
	if id < 0 || id >= len(v.symbols) {
		return ""
	}
	return v.symbols[id]
}

// Subword reports whether the vocabulary uses SentencePiece word-start
// markers.
func (v *Vocabulary) Subword() bool { return v.subword }

// TokenizeWords splits text into whitespace-separated words and
// tokenizes each word into vocabulary pieces. Subword vocabularies use
// greedy longest-prefix matching with the word-boundary marker on the
// first piece; character vocabularies take one piece per rune.
// Characters the vocabulary cannot represent map to <unk> when the
// vocabulary has one, otherwise tokenization fails.
func (v *Vocabulary) TokenizeWords(text string) ([][]Piece, error) {
	words := strings.Fields(text)
	out := make([][]Piece, 0, len(words))
	for _, word := range words {
		var pieces []Piece
		var err error
		if v.subword {
			pieces, err = v.tokenizeSubword(word)
		} else {
			pieces, err = v.tokenizeChars(word)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, pieces)
	}
	return out, nil
}

func (v *Vocabulary) tokenizeSubword(word string) ([]Piece, error) {
	var pieces []Piece
	rest := WordBoundary + word
	for len(rest) > 0 {
		match := ""
		matchID := -1
		// Greedy longest match against the vocabulary.
		for sym, id := range v.ids {
			if len(sym) > len(match) && strings.HasPrefix(rest, sym) {
				match = sym
				matchID = id
			}
		}
		if matchID < 0 {
			if v.unkID >= 0 {
				// Drop one rune and emit <unk>.
				r := []rune(rest)
				pieces = append(pieces, Piece{Text: "<unk>", ID: v.unkID})
				rest = string(r[1:])
				continue
			}
			return nil, fmt.Errorf("cannot tokenize %q: no vocabulary entry matches %q", word, rest)
		}
		pieces = append(pieces, Piece{Text: match, ID: matchID})
		rest = rest[len(match):]
	}
	return pieces, nil
}

func (v *Vocabulary) tokenizeChars(word string) ([]Piece, error) {
	var pieces []Piece
	for _, r := range word {
		sym := string(r)
		id, ok := v.ids[sym]
		if !ok {
			if v.unkID >= 0 {
				pieces = append(pieces, Piece{Text: "<unk>", ID: v.unkID})
				continue
			}
			return nil, fmt.Errorf("cannot tokenize %q: character %q is not in the vocabulary", word, sym)
		}
		pieces = append(pieces, Piece{Text: sym, ID: id})
	}
	return pieces, nil
}
