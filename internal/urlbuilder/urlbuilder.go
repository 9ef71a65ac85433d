package urlbuilder

import (
	"fmt"
	"regexp"
	"strings"

	"dealerwatch/internal/models"
)

// Recognized template placeholders. Anything else in a template is a
// TemplateError at dealer load time.
const (
	PlaceholderHomepage     = "homepage_url"
	PlaceholderModelSlug    = "model_slug"
	PlaceholderModelPlus    = "model_plus"
	PlaceholderModelEncoded = "model_name_encoded"
)

const (
	ScopeAbsolute = "absolute"
	ScopeRelative = "relative"
)

var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)

// TemplateError reports a template referencing an unrecognized placeholder.
// It surfaces when dealers are loaded, never at request time.
type TemplateError struct {
	Template    string
	Placeholder string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("unrecognized placeholder %q in template %q", e.Placeholder, e.Template)
}

// ErrUnknownModel is returned when a model is missing from the registry.
type ErrUnknownModel struct {
	Model string
}

func (e *ErrUnknownModel) Error() string {
	return fmt.Sprintf("unsupported model: %s", e.Model)
}

// ValidateTemplate checks that every placeholder in the template is
// recognized.
func ValidateTemplate(template string) error {
	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		switch match[1] {
		case PlaceholderHomepage, PlaceholderModelSlug, PlaceholderModelPlus, PlaceholderModelEncoded:
		default:
			return &TemplateError{Template: template, Placeholder: match[1]}
		}
	}
	return nil
}

// DeriveScope classifies a raw template as absolute or relative. Derived once
// at dealer load and stored on the dealer row.
func DeriveScope(template string) string {
	trimmed := strings.TrimSpace(template)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return ScopeAbsolute
	}
	return ScopeRelative
}

// Build resolves a dealer's inventory URL for a model. Pure: same inputs
// always produce the same output byte for byte.
func Build(dealer models.Dealer, model string) (string, error) {
	tokens, ok := LookupModel(model)
	if !ok {
		return "", &ErrUnknownModel{Model: model}
	}
	if err := ValidateTemplate(dealer.InventoryURLTemplate); err != nil {
		return "", err
	}

	homepage := strings.TrimRight(dealer.HomepageURL, "/")
	replacer := strings.NewReplacer(
		"{"+PlaceholderHomepage+"}", homepage,
		"{"+PlaceholderModelSlug+"}", tokens.Slug,
		"{"+PlaceholderModelPlus+"}", tokens.Plus,
		"{"+PlaceholderModelEncoded+"}", tokens.Encoded,
	)
	resolved := replacer.Replace(dealer.InventoryURLTemplate)

	scope := dealer.TemplateScope
	if scope == "" {
		scope = DeriveScope(dealer.InventoryURLTemplate)
	}
	if scope == ScopeRelative && !strings.HasPrefix(resolved, "http") {
		if !strings.HasPrefix(resolved, "/") {
			resolved = "/" + resolved
		}
		resolved = homepage + resolved
	}
	return resolved, nil
}
