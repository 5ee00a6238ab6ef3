/**
 * @description
 * Market data API handlers.
 * Exposes the latest-per-key market view, computed sale metrics, and a live
 * SSE stream of snapshot updates.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 */

package handlers

import (
	"bufio"
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/solestack-project/backend/internal/models"
	"github.com/solestack-project/backend/internal/services"
)

// LatestReader serves the latest market view for a style
type LatestReader interface {
	LatestForStyle(ctx context.Context, styleID, currency string) ([]models.LatestMarket, error)
}

// MetricsReader serves computed sale metrics for a style
type MetricsReader interface {
	MetricsForStyle(ctx context.Context, styleID string) ([]models.SaleMetric, error)
}

type MarketHandler struct {
	Latest  LatestReader
	Metrics MetricsReader
	Stream  *services.SnapshotStreamHub
}

func NewMarketHandler(latest LatestReader, metrics MetricsReader, stream *services.SnapshotStreamHub) *MarketHandler {
	return &MarketHandler{Latest: latest, Metrics: metrics, Stream: stream}
}

// GetLatest returns the latest market view for one style
// GET /api/v1/market/latest?style_id=DD1391-100&currency=USD
func (h *MarketHandler) GetLatest(c *fiber.Ctx) error {
	styleID := c.Query("style_id")
	if styleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "style_id is required",
		})
	}
	currency := c.Query("currency")

	rows, err := h.Latest.LatestForStyle(c.Context(), styleID, currency)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch latest market data",
		})
	}
	return c.JSON(fiber.Map{
		"style_id": models.NormalizeStyleID(styleID),
		"markets":  rows,
	})
}

// GetMetrics returns computed sale metrics for one style
// GET /api/v1/market/metrics?style_id=DD1391-100
func (h *MarketHandler) GetMetrics(c *fiber.Ctx) error {
	styleID := c.Query("style_id")
	if styleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "style_id is required",
		})
	}

	metrics, err := h.Metrics.MetricsForStyle(c.Context(), styleID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sale metrics",
		})
	}
	return c.JSON(fiber.Map{
		"style_id": models.NormalizeStyleID(styleID),
		"metrics":  metrics,
	})
}

// StreamUpdates streams live snapshot updates over SSE
// GET /api/v1/market/stream
func (h *MarketHandler) StreamUpdates(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	requestCtx := c.Context()

	ch, unsubscribe := h.Stream.Subscribe()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		requestDone := requestCtx.Done()

		for {
			select {
			case <-requestDone:
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
