package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/elite42/reservation-notifier/internal/domain"
	"github.com/elite42/reservation-notifier/internal/repository"
)

// TemplateVariables holds the substitution values for one rendering.
type TemplateVariables map[string]string

// RenderTemplate substitutes {{variable}} placeholders. Unknown placeholders
// are left intact so missing data is visible downstream instead of silently
// dropped.
func RenderTemplate(template string, variables TemplateVariables) string {
	result := template
	for key, value := range variables {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{%s}}", key), value)
	}
	return result
}

// TemplateService resolves and renders notification templates with the
// merchant-then-default and locale-then-english fallback chain.
type TemplateService struct {
	templates repository.TemplateRepository
}

func NewTemplateService(templates repository.TemplateRepository) (*TemplateService, error) {
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	return &TemplateService{templates: templates}, nil
}

// Resolve finds the best active template: merchant-specific before platform
// default, requested locale before the english fallback.
func (s *TemplateService) Resolve(
	ctx context.Context,
	merchantID *string,
	code domain.NotificationType,
	channel domain.Channel,
	locale string,
) (*domain.Template, error) {
	locale = strings.TrimSpace(strings.ToLower(locale))
	if locale == "" {
		locale = domain.DefaultLocale
	}

	tmpl, err := s.templates.Find(ctx, merchantID, code, channel, locale)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template: %w", err)
	}
	if tmpl == nil && locale != domain.DefaultLocale {
		tmpl, err = s.templates.Find(ctx, merchantID, code, channel, domain.DefaultLocale)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve fallback template: %w", err)
		}
	}
	if tmpl == nil {
		return nil, fmt.Errorf("%w: no template for %s/%s/%s", domain.ErrNotFound, code, channel, locale)
	}

	return tmpl, nil
}

// Render resolves a template and substitutes the variables into its subject
// and body.
func (s *TemplateService) Render(
	ctx context.Context,
	merchantID *string,
	code domain.NotificationType,
	channel domain.Channel,
	locale string,
	variables TemplateVariables,
) (subject *string, body string, err error) {
	tmpl, err := s.Resolve(ctx, merchantID, code, channel, locale)
	if err != nil {
		return nil, "", err
	}

	if tmpl.Subject != nil {
		rendered := RenderTemplate(*tmpl.Subject, variables)
		subject = &rendered
	}

	return subject, RenderTemplate(tmpl.Body, variables), nil
}
