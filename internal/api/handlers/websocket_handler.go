package handlers

import (
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/sentinelle/backend/internal/service"
	"github.com/sentinelle/backend/pkg/logger"

	"go.uber.org/zap"
)

type WebSocketHandler struct {
	batches *service.BatchService
}

func NewWebSocketHandler(batches *service.BatchService) *WebSocketHandler {
	return &WebSocketHandler{batches: batches}
}

// HandleProgress streams progress frames for one run until it finishes, then
// sends a final summary frame and closes.
func (h *WebSocketHandler) HandleProgress(c *websocket.Conn) {
	runID := c.Params("id")

	defer func() {
		c.Close()
		logger.Debug("Progress stream closed", zap.String("run_id", runID))
	}()

	if _, _, ok := h.batches.Snapshot(runID); !ok {
		c.WriteJSON(map[string]any{
			"type":  "error",
			"error": "Unknown run id",
		})
		return
	}

	logger.Debug("Progress stream opened", zap.String("run_id", runID))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		snapshot, status, ok := h.batches.Snapshot(runID)
		if !ok {
			return
		}

		frameType := "progress"
		if status != service.StatusRunning {
			frameType = "summary"
		}

		err := c.WriteJSON(map[string]any{
			"type":    frameType,
			"run_id":  runID,
			"status":  status,
			"summary": snapshot,
		})
		if err != nil {
			logger.Debug("Progress stream write failed", zap.String("run_id", runID), zap.Error(err))
			return
		}

		if status != service.StatusRunning {
			return
		}
	}
}
