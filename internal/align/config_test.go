package align

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "align.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
manifest_filepath: /data/manifest.json
output_dir: /data/out
batch_size: 4
additional_ctm_grouping_separator: "|"
model:
  tokens: /models/tokens.txt
  frame_stride: 0.01
  subsampling: 8
ass:
  fontsize: 32
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BatchSize != 4 {
		t.Errorf("Expected batch_size 4, got %d", cfg.BatchSize)
	}
	if cfg.AdditionalCTMGroupingSeparator != "|" {
		t.Errorf("Unexpected separator %q", cfg.AdditionalCTMGroupingSeparator)
	}
	// Defaults survive partial overrides.
	if cfg.ASS.Fontsize != 32 || cfg.ASS.MarginV != 20 {
		t.Errorf("Expected fontsize 32 and default marginv 20, got %+v", cfg.ASS)
	}
	if cfg.AudioFilepathPartsInUttID != 1 {
		t.Errorf("Expected default parts 1, got %d", cfg.AudioFilepathPartsInUttID)
	}
	if cfg.Model.FrameStride != 0.01 || cfg.Model.Subsampling != 8 {
		t.Errorf("Unexpected model config: %+v", cfg.Model)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got: %v", err)
	}
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := writeConfig(t, "no_such_option: true\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for unknown config key")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.ManifestFilepath = "/data/manifest.json"
		cfg.OutputDir = "/data/out"
		cfg.Model.Tokens = "/models/tokens.txt"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing manifest",
			mutate:  func(c *Config) { c.ManifestFilepath = "" },
			wantErr: "manifest_filepath",
		},
		{
			name:    "missing output dir",
			mutate:  func(c *Config) { c.OutputDir = "" },
			wantErr: "output_dir",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.BatchSize = 0 },
			wantErr: "batch_size",
		},
		{
			name:    "whitespace separator",
			mutate:  func(c *Config) { c.AdditionalCTMGroupingSeparator = " " },
			wantErr: "separator",
		},
		{
			name:    "negative minimum duration",
			mutate:  func(c *Config) { c.MinimumTimestampDuration = -0.5 },
			wantErr: "minimum_timestamp_duration",
		},
		{
			name:    "zero utt id parts",
			mutate:  func(c *Config) { c.AudioFilepathPartsInUttID = 0 },
			wantErr: "audio_filepath_parts_in_utt_id",
		},
		{
			name:    "unknown output format",
			mutate:  func(c *Config) { c.SaveOutputFileFormats = []string{"ctm", "srt"} },
			wantErr: "unknown format",
		},
		{
			name:    "missing tokens file",
			mutate:  func(c *Config) { c.Model.Tokens = "" },
			wantErr: "model.tokens",
		},
		{
			name:    "pred text without recognizer",
			mutate:  func(c *Config) { c.AlignUsingPredText = true },
			wantErr: "nemo_ctc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSeparator(t *testing.T) {
	if err := ValidateSeparator(""); err != nil {
		t.Errorf("Empty separator (disabled) should be valid: %v", err)
	}
	if err := ValidateSeparator("."); err != nil {
		t.Errorf("Period separator should be valid: %v", err)
	}
	if err := ValidateSeparator(" "); err == nil {
		t.Error("Bare space separator should be rejected")
	}
	if err := ValidateSeparator("\t "); err == nil {
		t.Error("Whitespace-only separator should be rejected")
	}
}
