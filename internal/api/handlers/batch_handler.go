package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sentinelle/backend/internal/ingest"
	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/internal/provider"
	"github.com/sentinelle/backend/internal/service"
	"github.com/sentinelle/backend/pkg/logger"
)

type BatchHandler struct {
	batches *service.BatchService
}

func NewBatchHandler(batches *service.BatchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// StartBatch accepts either a JSON body with inline messages or a multipart
// form with a CSV file. The batch runs in the background; the response
// carries the run id for polling.
func (h *BatchHandler) StartBatch(c *fiber.Ctx) error {
	var req struct {
		Messages      []models.Message `json:"messages"`
		Provider      string           `json:"provider"`
		Concurrency   int              `json:"concurrency"`
		PacingSeconds float64          `json:"pacing_seconds"`
	}

	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			logger.Error("Failed to open uploaded file", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read uploaded file",
			})
		}
		defer f.Close()

		messages, err := ingest.ParseMessages(f)
		if err != nil {
			logger.Error("Failed to parse uploaded CSV", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid CSV file: " + err.Error(),
			})
		}

		req.Messages = messages
		req.Provider = c.FormValue("provider")
		if n, err := strconv.Atoi(c.FormValue("concurrency")); err == nil {
			req.Concurrency = n
		}
		if sec, err := strconv.ParseFloat(c.FormValue("pacing_seconds"), 64); err == nil {
			req.PacingSeconds = sec
		}
	} else if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one message is required",
		})
	}

	runID, err := h.batches.Start(service.StartRequest{
		Messages:      req.Messages,
		Provider:      req.Provider,
		Concurrency:   req.Concurrency,
		PacingSeconds: req.PacingSeconds,
	})
	if err != nil {
		if errors.Is(err, provider.ErrUnknownProvider) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to start batch", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start batch",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id":   runID,
		"messages": len(req.Messages),
	})
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	runID := c.Params("id")

	snapshot, status, ok := h.batches.Snapshot(runID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown run id",
		})
	}

	return c.JSON(fiber.Map{
		"run_id":  runID,
		"status":  status,
		"summary": snapshot,
	})
}

func (h *BatchHandler) GetBatchResults(c *fiber.Ctx) error {
	runID := c.Params("id")

	results, status, ok := h.batches.Results(runID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown run id",
		})
	}

	if status == service.StatusRunning {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "Batch is still running",
			"status": status,
		})
	}

	snapshot, _, _ := h.batches.Snapshot(runID)

	return c.JSON(fiber.Map{
		"run_id":  runID,
		"status":  status,
		"summary": snapshot,
		"results": results,
	})
}

func (h *BatchHandler) CancelBatch(c *fiber.Ctx) error {
	runID := c.Params("id")

	if !h.batches.Cancel(runID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown run id",
		})
	}

	return c.JSON(fiber.Map{
		"run_id": runID,
		"status": "cancelling",
	})
}
