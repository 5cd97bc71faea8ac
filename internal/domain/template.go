package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLocale is the fallback locale for template resolution.
const DefaultLocale = "en"

// Template is a channel- and locale-specific message template. A nil
// MerchantID marks a platform default; merchant-specific templates win during
// resolution.
type Template struct {
	ID         string
	MerchantID *string
	Code       NotificationType
	Channel    Channel
	Locale     string
	Subject    *string
	Title      *string
	Body       string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (t *Template) Validate() error {
	if !t.Code.IsValid() {
		return fmt.Errorf("%w: invalid template code %q", ErrValidation, t.Code)
	}
	if !t.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, t.Channel)
	}
	if strings.TrimSpace(t.Locale) == "" {
		return fmt.Errorf("%w: locale is required", ErrValidation)
	}
	if strings.TrimSpace(t.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	return nil
}
