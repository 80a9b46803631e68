package align

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CTMConfig controls CTM file output.
type CTMConfig struct {
	RemoveBlankTokens bool `yaml:"remove_blank_tokens"`
}

// ASSConfig controls ASS subtitle output.
type ASSConfig struct {
	Fontsize int `yaml:"fontsize"`
	MarginV  int `yaml:"marginv"`
}

// ModelConfig describes the acoustic model boundary: the vocabulary,
// where emission matrices come from, and the optional recognizer used
// for predicted-text alignment.
type ModelConfig struct {
	Tokens      string  `yaml:"tokens"`       // path to tokens.txt
	LogitsDir   string  `yaml:"logits_dir"`   // directory of per-utterance .npy matrices
	NemoCTC     string  `yaml:"nemo_ctc"`     // CTC ONNX model for predicted text
	FrameStride float64 `yaml:"frame_stride"` // feature window stride in seconds
	Subsampling int     `yaml:"subsampling"`  // model downsampling factor
	SampleRate  int     `yaml:"sample_rate"`
	NumThreads  int     `yaml:"num_threads"`
}

// Config is the full configuration surface of an alignment run.
type Config struct {
	ManifestFilepath string `yaml:"manifest_filepath"`
	OutputDir        string `yaml:"output_dir"`

	AlignUsingPredText             bool    `yaml:"align_using_pred_text"`
	BatchSize                      int     `yaml:"batch_size"`
	AdditionalCTMGroupingSeparator string  `yaml:"additional_ctm_grouping_separator"`
	MinimumTimestampDuration       float64 `yaml:"minimum_timestamp_duration"`
	AudioFilepathPartsInUttID      int     `yaml:"audio_filepath_parts_in_utt_id"`

	SaveOutputFileFormats []string `yaml:"save_output_file_formats"`

	CTM   CTMConfig   `yaml:"ctm"`
	ASS   ASSConfig   `yaml:"ass"`
	Model ModelConfig `yaml:"model"`
}

// DefaultConfig returns a Config with the default option values.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:                 1,
		AudioFilepathPartsInUttID: 1,
		SaveOutputFileFormats:     []string{"ctm", "ass"},
		ASS:                       ASSConfig{Fontsize: 20, MarginV: 20},
		Model: ModelConfig{
			SampleRate: 16000,
			NumThreads: 2,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. Unknown keys
// are rejected.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config %q: %w", path, err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is coherent. All failures are
// joined into a single error so a user sees them at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ManifestFilepath == "" {
		errs = append(errs, errors.New("manifest_filepath must be specified"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must be specified"))
	}
	if c.BatchSize < 1 {
		errs = append(errs, errors.New("batch_size cannot be zero or a negative number"))
	}
	if err := ValidateSeparator(c.AdditionalCTMGroupingSeparator); err != nil {
		errs = append(errs, err)
	}
	if c.MinimumTimestampDuration < 0 {
		errs = append(errs, errors.New("minimum_timestamp_duration cannot be a negative number"))
	}
	if c.AudioFilepathPartsInUttID < 1 {
		errs = append(errs, errors.New("audio_filepath_parts_in_utt_id must be at least 1"))
	}
	for _, format := range c.SaveOutputFileFormats {
		if format != "ctm" && format != "ass" {
			errs = append(errs, fmt.Errorf("save_output_file_formats contains unknown format %q (valid: ctm, ass)", format))
		}
	}
	if c.Model.Tokens == "" {
		errs = append(errs, errors.New("model.tokens must be specified"))
	}
	if c.Model.FrameStride < 0 {
		errs = append(errs, errors.New("model.frame_stride cannot be negative"))
	}
	if c.Model.Subsampling < 0 {
		errs = append(errs, errors.New("model.subsampling cannot be negative"))
	}
	if c.AlignUsingPredText && c.Model.NemoCTC == "" {
		errs = append(errs, errors.New("model.nemo_ctc must be specified when align_using_pred_text is set"))
	}

	return errors.Join(errs...)
}

// SaveFormat reports whether the given output format is enabled.
func (c *Config) SaveFormat(format string) bool {
	for _, f := range c.SaveOutputFileFormats {
		if f == format {
			return true
		}
	}
	return false
}

// ValidateSeparator checks a custom segment grouping separator. An
// empty separator means segment grouping is disabled; a separator that
// is nothing but whitespace is ambiguous and rejected.
func ValidateSeparator(sep string) error {
	if sep != "" && strings.TrimSpace(sep) == "" {
		return errors.New("additional_ctm_grouping_separator cannot be a bare whitespace string")
	}
	return nil
}
