package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// TranscriberConfig holds the settings for the sherpa-onnx NeMo CTC
// recognizer used to produce predicted text.
type TranscriberConfig struct {
	ModelPath  string // Path to the CTC model.onnx
	TokensPath string // Path to tokens.txt
	SampleRate int
	NumThreads int
}

// Validate checks that the model files exist.
func (c *TranscriberConfig) Validate() error {
	files := map[string]string{
		"model":  c.ModelPath,
		"tokens": c.TokensPath,
	}
	for name, path := range files {
		if path == "" {
			return fmt.Errorf("%s path is not set", name)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("%s file not found: %s", name, path)
		}
	}
	return nil
}

// Transcriber produces predicted text for an utterance by running a
// NeMo CTC ONNX model through sherpa-onnx. It is only needed when
// aligning against model-predicted text.
type Transcriber struct {
	config     *TranscriberConfig
	recognizer *sherpa.OfflineRecognizer
}

// NewTranscriber creates a transcriber from the given configuration.
func NewTranscriber(config *TranscriberConfig) (*Transcriber, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcriber config: %w", err)
	}
	if config.SampleRate == 0 {
		config.SampleRate = 16000
	}
	if config.NumThreads == 0 {
		config.NumThreads = 2
	}

	sherpaConfig := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: config.SampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			NemoCTC: sherpa.OfflineNemoEncDecCtcModelConfig{
				Model: config.ModelPath,
			},
			Tokens:     config.TokensPath,
			NumThreads: config.NumThreads,
			Debug:      0,
		},
	}

	recognizer := sherpa.NewOfflineRecognizer(&sherpaConfig)
	if recognizer == nil {
		return nil, fmt.Errorf("failed to create offline recognizer")
	}

	return &Transcriber{config: config, recognizer: recognizer}, nil
}

// TranscribeFile transcribes one audio file and returns the recognized
// text. Non-WAV input is converted through ffmpeg first.
func (t *Transcriber) TranscribeFile(audioPath string) (string, error) {
	wavPath := audioPath
	if !strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		converted, err := ConvertToWavTemp(audioPath, t.config.SampleRate)
		if err != nil {
			return "", fmt.Errorf("failed to convert audio: %w", err)
		}
		defer os.Remove(converted)
		wavPath = converted
	}

	wave := sherpa.ReadWave(wavPath)
	if wave == nil || len(wave.Samples) == 0 {
		return "", fmt.Errorf("failed to read WAV file or file is empty: %s", wavPath)
	}

	stream := sherpa.NewOfflineStream(t.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(t.config.SampleRate, wave.Samples)
	t.recognizer.Decode(stream)

	result := stream.GetResult()
	return strings.TrimSpace(result.Text), nil
}

// Close releases the recognizer resources.
func (t *Transcriber) Close() error {
	if t.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(t.recognizer)
		t.recognizer = nil
	}
	return nil
}
