package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"ctcalign/internal/models"
	"ctcalign/internal/storage"
	"ctcalign/internal/worker"
)

// JobHandler serves the alignment job API.
type JobHandler struct {
	repo       *storage.JobRepository
	resultRepo *storage.ResultRepository
	worker     *worker.Worker
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(repo *storage.JobRepository, resultRepo *storage.ResultRepository, w *worker.Worker) *JobHandler {
	return &JobHandler{repo: repo, resultRepo: resultRepo, worker: w}
}

// SubmitRequest is the body of POST /api/jobs.
type SubmitRequest struct {
	ManifestFilepath string `json:"manifest_filepath"`
	OutputDir        string `json:"output_dir"`
	Priority         *int   `json:"priority,omitempty"`
}

// Submit queues a new alignment job.
func (h *JobHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()

	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ManifestFilepath == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "manifest_filepath is required"})
	}
	if req.OutputDir == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "output_dir is required"})
	}
	priority := models.JobPriorityNormal
	if req.Priority != nil {
		priority = *req.Priority
	}

	job, err := h.worker.SubmitJob(ctx, models.JobTypeAlign, req.ManifestFilepath, req.OutputDir, priority)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, job)
}

// List returns jobs, optionally filtered by status.
func (h *JobHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	status := c.QueryParam("status")

	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	var jobs []models.AlignmentJob
	var err error

	if status != "" {
		jobs, err = h.repo.ListByStatus(ctx, status, limit)
	} else {
		jobs, err = h.repo.ListRecent(ctx, limit)
	}

	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, jobs)
}

// Get returns one job.
func (h *JobHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	job, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	return c.JSON(http.StatusOK, job)
}

// Results returns the job's per-utterance outcomes in processing
// order.
func (h *JobHandler) Results(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	job, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	results, err := h.resultRepo.ListByJobID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, results)
}

// Stats returns the number of jobs per status.
func (h *JobHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := h.repo.CountByStatus(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, counts)
}

// Delete removes a job and its results.
func (h *JobHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	job, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}
