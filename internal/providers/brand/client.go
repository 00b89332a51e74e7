// Package brand fetches structured brand metadata (name, logo, palette,
// fonts) for a website from a Brandfetch-compatible API.
package brand

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brandmerch/internal/domain"
	"brandmerch/internal/providers"
)

const (
	providerName   = "brand"
	defaultBaseURL = "https://api.brandfetch.io/v2"
)

// Metadata is the brand information known for a domain. Empty fields are unknown.
type Metadata struct {
	Title       string
	Description string
	LogoURL     string
	Colors      []string
	Fonts       []string
}

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{apiKey: strings.TrimSpace(opts.APIKey), baseURL: baseURL, httpClient: client}
}

type brandResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Logos       []struct {
		Type    string `json:"type"`
		Theme   string `json:"theme"`
		Formats []struct {
			Src    string `json:"src"`
			Format string `json:"format"`
		} `json:"formats"`
	} `json:"logos"`
	Colors []struct {
		Hex  string `json:"hex"`
		Type string `json:"type"`
	} `json:"colors"`
	Fonts []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"fonts"`
}

// Fetch looks up the brand behind siteURL.
func (c *Client) Fetch(ctx context.Context, siteURL string) (Metadata, error) {
	if c.apiKey == "" {
		return Metadata{}, fmt.Errorf("brand api: %w", domain.ErrNotConfigured)
	}
	host, err := hostOf(siteURL)
	if err != nil {
		return Metadata{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/brands/"+url.PathEscape(host), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("brand api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Metadata{}, &providers.StatusError{Provider: providerName, Code: resp.StatusCode, Body: string(body)}
	}

	var payload brandResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Metadata{}, fmt.Errorf("decode brand response: %w", err)
	}
	return payload.toMetadata(), nil
}

func (p brandResponse) toMetadata() Metadata {
	md := Metadata{
		Title:       strings.TrimSpace(p.Name),
		Description: strings.TrimSpace(p.Description),
		LogoURL:     p.pickLogo(),
	}

	// brand colors first, then accents, then the rest
	rank := map[string]int{"brand": 0, "accent": 1, "dark": 2, "light": 3}
	ordered := make([][]string, 5)
	for _, col := range p.Colors {
		r, ok := rank[strings.ToLower(col.Type)]
		if !ok {
			r = 4
		}
		ordered[r] = append(ordered[r], col.Hex)
	}
	var colors []string
	for _, group := range ordered {
		colors = append(colors, group...)
	}
	md.Colors = domain.FilterColors(colors)

	for _, f := range p.Fonts {
		if name := strings.TrimSpace(f.Name); name != "" {
			md.Fonts = append(md.Fonts, name)
		}
	}
	return md
}

// pickLogo prefers a "logo" over an "icon" and svg/png over other formats.
func (p brandResponse) pickLogo() string {
	best, bestScore := "", -1
	for _, logo := range p.Logos {
		typeScore := 0
		switch strings.ToLower(logo.Type) {
		case "logo":
			typeScore = 20
		case "symbol":
			typeScore = 10
		}
		for _, f := range logo.Formats {
			if f.Src == "" {
				continue
			}
			score := typeScore
			switch strings.ToLower(f.Format) {
			case "svg":
				score += 3
			case "png":
				score += 2
			}
			if score > bestScore {
				best, bestScore = f.Src, score
			}
		}
	}
	return best
}

func hostOf(siteURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: invalid url %q", domain.ErrValidation, siteURL)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), nil
}
