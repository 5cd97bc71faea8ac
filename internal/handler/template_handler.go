package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/elite42/reservation-notifier/internal/domain"
	"github.com/elite42/reservation-notifier/internal/service"
)

// TemplateRenderer resolves and renders a notification template with the
// merchant and locale fallback chain applied.
type TemplateRenderer interface {
	Render(
		ctx context.Context,
		merchantID *string,
		code domain.NotificationType,
		channel domain.Channel,
		locale string,
		variables service.TemplateVariables,
	) (subject *string, body string, err error)
}

type TemplateHandler struct {
	renderer TemplateRenderer
}

func NewTemplateHandler(renderer TemplateRenderer) (*TemplateHandler, error) {
	if renderer == nil {
		return nil, fmt.Errorf("template renderer is required")
	}
	return &TemplateHandler{renderer: renderer}, nil
}

func RegisterTemplateRoutes(router fiber.Router, renderer TemplateRenderer) error {
	h, err := NewTemplateHandler(renderer)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/templates/preview", h.Preview)

	return nil
}

type previewRequest struct {
	MerchantID *string           `json:"merchantId"`
	Code       string            `json:"code"`
	Channel    string            `json:"channel"`
	Locale     string            `json:"locale"`
	Variables  map[string]string `json:"variables"`
}

type previewResponse struct {
	Subject *string `json:"subject,omitempty"`
	Body    string  `json:"body"`
}

// Preview renders a template without sending anything, so merchants can
// check their copy before it reaches guests.
func (h *TemplateHandler) Preview(c *fiber.Ctx) error {
	var req previewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	code, err := domain.ParseNotificationType(strings.TrimSpace(req.Code))
	if err != nil {
		return toHTTPError(err)
	}
	channel, err := domain.ParseChannel(strings.TrimSpace(req.Channel))
	if err != nil {
		return toHTTPError(err)
	}

	subject, body, err := h.renderer.Render(c.Context(), req.MerchantID, code, channel, req.Locale, req.Variables)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(previewResponse{
		Subject: subject,
		Body:    body,
	})
}
