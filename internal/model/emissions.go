package model

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio"
)

// Emissions is one utterance's matrix of per-frame log-probabilities,
// stored row-major as frames x vocabulary.
type Emissions struct {
	LogProbs []float32
	Frames   int
	Vocab    int
}

// At returns the log-probability of symbol v at frame t.
func (e *Emissions) At(t, v int) float32 {
	return e.LogProbs[t*e.Vocab+v]
}

// LogSoftmax normalizes each frame in place so that the vocabulary
// dimension forms a proper log-probability distribution. Applying it to
// already-normalized values is harmless, so raw logits and log-probs can
// both be accepted.
func (e *Emissions) LogSoftmax() {
	for t := 0; t < e.Frames; t++ {
		row := e.LogProbs[t*e.Vocab : (t+1)*e.Vocab]
		maxVal := row[0]
		for _, x := range row[1:] {
			if x > maxVal {
				maxVal = x
			}
		}
		var sum float64
		for _, x := range row {
			sum += math.Exp(float64(x - maxVal))
		}
		lse := float32(math.Log(sum)) + maxVal
		for i := range row {
			row[i] -= lse
		}
	}
}

// Source produces the emission matrix for one utterance. The acoustic
// model itself is behind this boundary; implementations may run
// inference or load precomputed matrices.
type Source interface {
	Emissions(audioPath, logitsPath string) (*Emissions, error)
}

// NpySource loads emission matrices from NumPy .npy files, the usual
// interchange format for logits dumped by Python acoustic models.
//
// The file for an utterance is resolved in order: the explicit
// logits_filepath from the manifest line, then <Dir>/<audio stem>.npy
// when Dir is set, then the audio path with its extension replaced by
// .npy.
type NpySource struct {
	Dir string
}

// Emissions reads the utterance's .npy matrix. The file must be a
// two-dimensional float32 or float64 array of shape frames x vocab.
func (s *NpySource) Emissions(audioPath, logitsPath string) (*Emissions, error) {
	path := s.resolve(audioPath, logitsPath)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open logits file: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read npy header of %s: %w", path, err)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("logits file %s has shape %v, expected a 2-D frames x vocab matrix", path, shape)
	}
	frames, vocab := shape[0], shape[1]
	if frames < 1 || vocab < 2 {
		return nil, fmt.Errorf("logits file %s has degenerate shape %v", path, shape)
	}

	data := make([]float32, frames*vocab)
	if strings.Contains(r.Header.Descr.Type, "f8") {
		wide := make([]float64, frames*vocab)
		if err := r.Read(&wide); err != nil {
			return nil, fmt.Errorf("failed to read logits from %s: %w", path, err)
		}
		for i, x := range wide {
			data[i] = float32(x)
		}
	} else {
		if err := r.Read(&data); err != nil {
			return nil, fmt.Errorf("failed to read logits from %s: %w", path, err)
		}
	}

	return &Emissions{LogProbs: data, Frames: frames, Vocab: vocab}, nil
}

func (s *NpySource) resolve(audioPath, logitsPath string) string {
	if logitsPath != "" {
		return logitsPath
	}
	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	if s.Dir != "" {
		return filepath.Join(s.Dir, stem+".npy")
	}
	return filepath.Join(filepath.Dir(audioPath), stem+".npy")
}
