package domain

import (
	"fmt"
	"strings"
	"time"
)

// Session is the persisted record of one end-to-end merchandise run.
type Session struct {
	ID               string
	Email            string
	URL              string
	Status           Status
	ScrapedData      *ScrapedData
	Concept          *string
	MotifDescription *string
	MotifImageURL    *string
	ProductImages    []ProductImage
	ErrorMessage     *string
	Version          int64
	LastNotifiedAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScrapedData holds the brand attributes gathered by the scrape stage and
// later edited by enhancement and the user.
type ScrapedData struct {
	Title               string   `json:"title,omitempty"`
	Description         string   `json:"description,omitempty"`
	LogoURL             string   `json:"logo_url,omitempty"`
	Colors              []string `json:"colors"`
	Fonts               []string `json:"fonts"`
	Headings            []string `json:"headings,omitempty"`
	BodyExcerpt         string   `json:"body_excerpt,omitempty"`
	Tone                string   `json:"tone,omitempty"`
	Style               string   `json:"style,omitempty"`
	Sentiment           string   `json:"sentiment,omitempty"`
	Audience            string   `json:"audience,omitempty"`
	Industry            string   `json:"industry,omitempty"`
	Personality         string   `json:"personality,omitempty"`
	Keywords            []string `json:"keywords,omitempty"`
	RequiresManualInput bool     `json:"requires_manual_input"`
	MissingFields       []string `json:"missing_fields"`
	ManualLogo          bool     `json:"manual_logo"`
	ManualColors        bool     `json:"manual_colors"`
	Enhanced            bool     `json:"enhanced"`
}

// ProductImage is one generated mockup.
type ProductImage struct {
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	ImageURL    string   `json:"image_url"`
	PrintZones  []string `json:"print_zones"`
	DesignNotes string   `json:"design_notes,omitempty"`
}

const (
	MissingFieldLogo   = "logo"
	MissingFieldColors = "colors"

	// MinBrandColors is the number of valid colors required to leave manual review.
	MinBrandColors = 2
)

// EvaluateManualInput recomputes the manual-input flags from the current
// logo and colors.
func (d *ScrapedData) EvaluateManualInput() {
	if d == nil {
		return
	}
	missing := make([]string, 0, 2)
	if strings.TrimSpace(d.LogoURL) == "" {
		missing = append(missing, MissingFieldLogo)
	}
	if CountValidColors(d.Colors) < MinBrandColors {
		missing = append(missing, MissingFieldColors)
	}
	d.MissingFields = missing
	d.RequiresManualInput = len(missing) > 0
}

// ReadyForConcept reports whether brand review requirements are met.
func (d *ScrapedData) ReadyForConcept() bool {
	if d == nil {
		return false
	}
	return strings.TrimSpace(d.LogoURL) != "" && CountValidColors(d.Colors) >= MinBrandColors
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (d *ScrapedData) Clone() *ScrapedData {
	if d == nil {
		return nil
	}
	out := *d
	out.Colors = append([]string(nil), d.Colors...)
	out.Fonts = append([]string(nil), d.Fonts...)
	out.Headings = append([]string(nil), d.Headings...)
	out.Keywords = append([]string(nil), d.Keywords...)
	out.MissingFields = append([]string(nil), d.MissingFields...)
	return &out
}

// BrandPatch carries partial user edits to ScrapedData. Nil fields are left
// untouched.
type BrandPatch struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	LogoURL     *string  `json:"logo_url"`
	Colors      []string `json:"colors"`
	Fonts       []string `json:"fonts"`
	Tone        *string  `json:"tone"`
	Style       *string  `json:"style"`
	Audience    *string  `json:"audience"`
}

// Apply validates the patch and merges it into d.
func (p BrandPatch) Apply(d *ScrapedData) error {
	var colors []string
	if p.Colors != nil {
		normalized, err := ValidateColors(p.Colors)
		if err != nil {
			return err
		}
		colors = normalized
	}
	logo := ""
	if p.LogoURL != nil {
		logo = strings.TrimSpace(*p.LogoURL)
		if logo != "" {
			if _, err := ValidateWebsiteURL(logo); err != nil {
				return fmt.Errorf("logo: %w", err)
			}
		}
	}

	if colors != nil {
		d.Colors = colors
		d.ManualColors = true
	}
	if p.LogoURL != nil {
		d.LogoURL = logo
		d.ManualLogo = logo != ""
	}
	if p.Title != nil {
		d.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		d.Description = strings.TrimSpace(*p.Description)
	}
	if p.Fonts != nil {
		d.Fonts = dedupe(p.Fonts)
	}
	if p.Tone != nil {
		d.Tone = strings.TrimSpace(*p.Tone)
	}
	if p.Style != nil {
		d.Style = strings.TrimSpace(*p.Style)
	}
	if p.Audience != nil {
		d.Audience = strings.TrimSpace(*p.Audience)
	}
	d.EvaluateManualInput()
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// StringValue dereferences an optional string.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// HasText reports whether an optional string holds non-blank text.
func HasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
