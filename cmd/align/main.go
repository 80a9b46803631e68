// Forced alignment CLI: aligns the reference text of every manifest
// entry against its CTC emission matrix and writes token/word/segment
// timestamps as CTM and ASS files.
//
// Usage:
//   go run ./cmd/align -config align.yaml
//   go run ./cmd/align -config align.yaml -manifest data/manifest.json -output out/

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ctcalign/internal/align"
	"ctcalign/internal/model"
	"ctcalign/internal/pipeline"
	"ctcalign/internal/version"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	manifestPath := flag.String("manifest", "", "Input manifest (overrides the config)")
	outputDir := flag.String("output", "", "Output directory (overrides the config)")
	separator := flag.String("separator", "", "Additional CTM grouping separator (overrides the config)")
	batchSize := flag.Int("batch", 0, "Batch size (overrides the config)")
	usePredText := flag.Bool("pred-text", false, "Align against model-predicted text instead of the manifest text")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ctcalign v%s\n", version.Version)
		return
	}

	cfg := align.DefaultConfig()
	if *configPath != "" {
		loaded, err := align.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *manifestPath != "" {
		cfg.ManifestFilepath = *manifestPath
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *separator != "" {
		cfg.AdditionalCTMGroupingSeparator = *separator
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *usePredText {
		cfg.AlignUsingPredText = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	vocab, err := model.LoadVocabulary(cfg.Model.Tokens)
	if err != nil {
		log.Fatalf("Failed to load vocabulary: %v", err)
	}

	source := &model.NpySource{Dir: cfg.Model.LogitsDir}

	var transcriber pipeline.Transcriber
	if cfg.AlignUsingPredText {
		t, err := model.NewTranscriber(&model.TranscriberConfig{
			ModelPath:  cfg.Model.NemoCTC,
			TokensPath: cfg.Model.Tokens,
			SampleRate: cfg.Model.SampleRate,
			NumThreads: cfg.Model.NumThreads,
		})
		if err != nil {
			log.Fatalf("Failed to create recognizer: %v", err)
		}
		defer t.Close()
		transcriber = t
	}

	runner, err := pipeline.New(cfg, vocab, source, transcriber)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("=== ctcalign v%s ===\n", version.Version)
	fmt.Printf("Manifest: %s\n", cfg.ManifestFilepath)
	fmt.Printf("Output:   %s\n", cfg.OutputDir)
	fmt.Printf("Tokens:   %s (%d symbols)\n\n", cfg.Model.Tokens, vocab.Size())

	summary, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("Alignment run failed: %v", err)
	}

	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Utterances: %d\n", summary.Total)
	fmt.Printf("Aligned:    %d\n", summary.Aligned)
	fmt.Printf("Failed:     %d\n", summary.Failed)
	fmt.Printf("Timestep:   %.4fs\n", summary.TimestepDuration)
	fmt.Printf("Manifest:   %s\n", summary.OutputManifest)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
