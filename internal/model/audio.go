package model

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// SupportedAudioFormats lists the input formats ffmpeg can convert for
// transcription.
var SupportedAudioFormats = []string{".mp3", ".m4a", ".aac", ".ogg", ".flac", ".wav", ".webm", ".opus"}

// IsSupportedAudioFormat checks the file extension against the
// supported input formats.
func IsSupportedAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range SupportedAudioFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// AudioDuration returns the duration of an audio file in seconds using
// ffprobe.
func AudioDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}
	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output %q: %w", string(output), err)
	}
	return duration, nil
}

// ConvertToWav converts an audio file to 16kHz mono WAV using ffmpeg.
func ConvertToWav(inputPath, outputPath string, sampleRate int) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found: please install ffmpeg to convert audio files")
	}
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cmd := exec.Command("ffmpeg",
		"-i", inputPath,
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", "1",
		"-f", "wav",
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

// ConvertToWavTemp converts an audio file to WAV in the temp directory.
// The caller removes the returned file when done.
func ConvertToWavTemp(inputPath string, sampleRate int) (string, error) {
	baseName := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(os.TempDir(), baseName+"_converted.wav")
	if err := ConvertToWav(inputPath, outputPath, sampleRate); err != nil {
		return "", err
	}
	return outputPath, nil
}
