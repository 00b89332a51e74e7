package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"brandmerch/internal/domain"
)

// StaticGenerator answers deterministically without a model. It keeps the
// pipeline usable in development and tests when no API key is configured.
type StaticGenerator struct{}

func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{}
}

func (s *StaticGenerator) Name() string { return providerStatic }

var quotedBrand = regexp.MustCompile(`brand "([^"]+)"`)

func (s *StaticGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	brand := "the brand"
	if m := quotedBrand.FindStringSubmatch(req.Prompt); len(m) == 2 {
		brand = cases.Title(language.Und).String(m[1])
	}

	switch {
	case req.JSON || req.Template == domain.PromptBrandEnhance:
		raw, err := json.Marshal(map[string]any{
			"tone":        "friendly",
			"style":       "modern",
			"sentiment":   "positive",
			"audience":    "general consumers",
			"industry":    "retail",
			"personality": "approachable",
			"keywords":    []string{"quality", "community", "design"},
		})
		return string(raw), err
	case req.Template == domain.PromptConceptRegenerate:
		return fmt.Sprintf("An alternative direction for %s: a bold, typographic look that puts the brand name front and centre.\n\nColors are used as solid blocks with high contrast so the design reads from a distance.", brand), nil
	case strings.HasPrefix(req.Template, "motif"):
		return fmt.Sprintf("A flat, centred emblem for %s combining the logo shape with a simple geometric pattern in the brand colors.", brand), nil
	default:
		return fmt.Sprintf("A clean, modern merchandise line for %s built around a simple emblem and the brand palette.\n\nThe primary color carries the motif while the secondary color is used for accents and type.", brand), nil
	}
}

var _ Generator = (*StaticGenerator)(nil)
