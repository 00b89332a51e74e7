package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

const placeholderEmailDomain = "placeholder.invalid"

// NormalizeHexColor returns the lower-case #rrggbb form of a color, or false
// when the value is not a hex color.
func NormalizeHexColor(raw string) (string, bool) {
	c := strings.TrimSpace(raw)
	if !hexColorPattern.MatchString(c) {
		return "", false
	}
	c = strings.ToLower(c)
	if len(c) == 4 {
		c = "#" + strings.Repeat(c[1:2], 2) + strings.Repeat(c[2:3], 2) + strings.Repeat(c[3:4], 2)
	}
	return c, true
}

// CountValidColors counts distinct well-formed hex colors.
func CountValidColors(colors []string) int {
	return len(FilterColors(colors))
}

// FilterColors keeps distinct well-formed colors in order, normalized.
func FilterColors(colors []string) []string {
	seen := make(map[string]struct{}, len(colors))
	out := make([]string, 0, len(colors))
	for _, raw := range colors {
		c, ok := NormalizeHexColor(raw)
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ValidateColors accepts a user-supplied palette only when every entry is a
// hex color and at least MinBrandColors distinct colors remain.
func ValidateColors(colors []string) ([]string, error) {
	for _, raw := range colors {
		if _, ok := NormalizeHexColor(raw); !ok {
			return nil, fmt.Errorf("%w: invalid hex color %q", ErrValidation, raw)
		}
	}
	normalized := FilterColors(colors)
	if len(normalized) < MinBrandColors {
		return nil, fmt.Errorf("%w: at least %d colors are required", ErrValidation, MinBrandColors)
	}
	return normalized, nil
}

// ValidateWebsiteURL checks for an absolute http(s) URL with a host.
func ValidateWebsiteURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: url is required", ErrValidation)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: invalid url", ErrValidation)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: url must use http or https", ErrValidation)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: url host is required", ErrValidation)
	}
	return u.String(), nil
}

// ValidateEmail returns the bare address of a well-formed email.
func ValidateEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return strings.ToLower(addr.Address), nil
}

// PlaceholderEmail builds a synthetic address for users who opt out of email.
func PlaceholderEmail() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "no-reply+" + hex.EncodeToString(buf) + "@" + placeholderEmailDomain
}

// IsPlaceholderEmail reports whether email is a synthetic opt-out address.
func IsPlaceholderEmail(email string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(email)), "@"+placeholderEmailDomain)
}
