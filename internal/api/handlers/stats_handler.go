package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sentinelle/backend/internal/storage/sqlite"
	"github.com/sentinelle/backend/pkg/logger"
)

type StatsHandler struct {
	store *sqlite.Client
}

func NewStatsHandler(store *sqlite.Client) *StatsHandler {
	return &StatsHandler{store: store}
}

// GetKPIs aggregates persisted classifications for the dashboard.
func (h *StatsHandler) GetKPIs(c *fiber.Ctx) error {
	summary, err := h.store.KPISummary()
	if err != nil {
		logger.Error("Failed to aggregate KPIs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to aggregate statistics",
		})
	}

	return c.JSON(fiber.Map{
		"total_messages":      summary.TotalMessages,
		"avg_sentiment_score": summary.AvgSentimentScore,
		"by_sentiment":        summary.BySentiment,
		"by_category":         summary.ByCategory,
		"by_priority":         summary.ByPriority,
		"needs_response":      summary.NeedsResponse,
		"urgent":              summary.Urgent,
	})
}
