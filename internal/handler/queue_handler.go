package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/elite42/reservation-notifier/internal/domain"
	"github.com/elite42/reservation-notifier/internal/service"
)

// QueueDrainer triggers one drain cycle on demand, mirroring the scheduled
// invocation.
type QueueDrainer interface {
	RunOnce(ctx context.Context) (service.DrainSummary, error)
}

type QueueHandler struct {
	drainer QueueDrainer
	queue   QueueStats
}

// QueueStats exposes queue depth per status for the stats endpoint.
type QueueStats interface {
	CountByStatus(ctx context.Context) (map[domain.QueueStatus]int64, error)
}

func NewQueueHandler(drainer QueueDrainer, queue QueueStats) (*QueueHandler, error) {
	if drainer == nil {
		return nil, fmt.Errorf("queue drainer is required")
	}
	return &QueueHandler{drainer: drainer, queue: queue}, nil
}

func RegisterQueueRoutes(router fiber.Router, drainer QueueDrainer, queue QueueStats) error {
	h, err := NewQueueHandler(drainer, queue)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/queue/drain", h.TriggerDrain)
	v1.Get("/queue/stats", h.Stats)

	return nil
}

type drainResponse struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// TriggerDrain runs a drain cycle immediately. Safe to call while the
// scheduler is active: overlapping cycles race per item on the atomic claim
// and one of them simply skips.
func (h *QueueHandler) TriggerDrain(c *fiber.Ctx) error {
	summary, err := h.drainer.RunOnce(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(drainResponse{
		Processed: summary.Processed,
		Sent:      summary.Sent,
		Retried:   summary.Retried,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
	})
}

func (h *QueueHandler) Stats(c *fiber.Ctx) error {
	if h.queue == nil {
		return fiber.NewError(fiber.StatusNotFound, "queue stats are not available")
	}

	counts, err := h.queue.CountByStatus(c.Context())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"counts": counts,
	})
}
