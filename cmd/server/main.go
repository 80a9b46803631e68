// Alignment job server: accepts manifests over HTTP, queues them, and
// runs the alignment pipeline in a background worker.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ctcalign/internal/align"
	"ctcalign/internal/handlers"
	"ctcalign/internal/model"
	"ctcalign/internal/models"
	"ctcalign/internal/pipeline"
	"ctcalign/internal/storage"
	"ctcalign/internal/version"
	"ctcalign/internal/worker"
)

func main() {
	// Load .env if present.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "data/ctcalign.db"
	}
	configPath := os.Getenv("ALIGN_CONFIG")
	if configPath == "" {
		log.Fatal("ALIGN_CONFIG must point to the alignment YAML config")
	}

	cfg, err := align.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
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

	db, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	jobRepo := storage.NewJobRepository(db)
	resultRepo := storage.NewResultRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := worker.NewWorker(jobRepo)
	w.RegisterHandler(models.JobTypeAlign, worker.NewAlignHandler(worker.AlignDeps{
		Config:      cfg,
		Vocab:       vocab,
		Source:      source,
		Transcriber: transcriber,
		JobRepo:     jobRepo,
		ResultRepo:  resultRepo,
	}))
	w.Start(ctx)
	defer w.Stop()

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	jobHandler := handlers.NewJobHandler(jobRepo, resultRepo, w)
	e.POST("/api/jobs", jobHandler.Submit)
	e.GET("/api/jobs", jobHandler.List)
	e.GET("/api/jobs/stats", jobHandler.Stats)
	e.GET("/api/jobs/:id", jobHandler.Get)
	e.GET("/api/jobs/:id/results", jobHandler.Results)
	e.DELETE("/api/jobs/:id", jobHandler.Delete)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})

	log.Printf("Starting ctcalign v%s on port %s", version.Version, port)
	if err := e.Start(fmt.Sprintf(":%s", port)); err != nil {
		log.Fatal(err)
	}
}
