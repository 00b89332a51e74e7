// Package scrape reads a single web page and extracts brand hints: text
// content, logo candidates, colors and fonts.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"brandmerch/internal/domain"
	"brandmerch/internal/providers"
)

const (
	providerName   = "scrape"
	defaultTimeout = 30 * time.Second
	defaultAgent   = "Mozilla/5.0 (compatible; BrandMerchBot/1.0)"
	maxBodyRunes   = 2000
	maxHeadings    = 12
	maxColorHints  = 12
	maxFontHints   = 6
	maxLogoHints   = 5
)

// Page is what the scraper learned from one URL.
type Page struct {
	Title       string
	Description string
	Headings    []string
	BodyText    string
	LogoHints   []string
	ColorHints  []string
	FontHints   []string
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
}

// Scraper fetches pages with colly. One collector is built per call so
// concurrent scrapes never share callbacks.
type Scraper struct {
	timeout   time.Duration
	userAgent string
}

func New(opts Options) *Scraper {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	agent := strings.TrimSpace(opts.UserAgent)
	if agent == "" {
		agent = defaultAgent
	}
	return &Scraper{timeout: timeout, userAgent: agent}
}

var (
	hexPattern  = regexp.MustCompile(`#(?:[0-9a-fA-F]{6}|[0-9a-fA-F]{3})\b`)
	fontPattern = regexp.MustCompile(`font-family\s*:\s*([^;}]+)`)
	gfontFamily = regexp.MustCompile(`family=([^&:]+)`)
	spaces      = regexp.MustCompile(`\s+`)
)

// Scrape fetches siteURL and extracts its brand hints.
func (s *Scraper) Scrape(ctx context.Context, siteURL string) (Page, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.MaxDepth(1),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.timeout)

	var (
		page    Page
		body    strings.Builder
		colors  []string
		fonts   []string
		logos   []string
		ogTitle string
		ogDesc  string
		ogImage string
		status  int
		visited bool
	)

	c.OnResponse(func(r *colly.Response) {
		visited = true
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	c.OnHTML("head title", func(e *colly.HTMLElement) {
		if page.Title == "" {
			page.Title = clean(e.Text)
		}
	})
	c.OnHTML("meta", func(e *colly.HTMLElement) {
		name := strings.ToLower(e.Attr("name") + e.Attr("property"))
		content := clean(e.Attr("content"))
		switch name {
		case "description":
			page.Description = content
		case "og:title":
			ogTitle = content
		case "og:description":
			ogDesc = content
		case "og:image":
			ogImage = e.Request.AbsoluteURL(content)
		case "theme-color", "msapplication-tilecolor":
			colors = append(colors, content)
		}
	})
	c.OnHTML("link[rel]", func(e *colly.HTMLElement) {
		rel := strings.ToLower(e.Attr("rel"))
		href := e.Attr("href")
		switch {
		case strings.Contains(rel, "apple-touch-icon"), strings.Contains(rel, "icon"):
			logos = append(logos, e.Request.AbsoluteURL(href))
		case strings.Contains(rel, "stylesheet") && strings.Contains(href, "fonts.googleapis.com"):
			for _, m := range gfontFamily.FindAllStringSubmatch(href, -1) {
				for _, fam := range strings.Split(m[1], "|") {
					fonts = append(fonts, strings.ReplaceAll(fam, "+", " "))
				}
			}
		}
	})
	c.OnHTML("img", func(e *colly.HTMLElement) {
		hint := strings.ToLower(e.Attr("class") + " " + e.Attr("id") + " " + e.Attr("alt") + " " + e.Attr("src"))
		if strings.Contains(hint, "logo") {
			if src := e.Attr("src"); src != "" {
				// logo images go before favicons
				logos = append([]string{e.Request.AbsoluteURL(src)}, logos...)
			}
		}
	})
	c.OnHTML("h1, h2, h3", func(e *colly.HTMLElement) {
		if text := clean(e.Text); text != "" && len(page.Headings) < maxHeadings {
			page.Headings = append(page.Headings, text)
		}
	})
	c.OnHTML("p", func(e *colly.HTMLElement) {
		if body.Len() >= maxBodyRunes*2 {
			return
		}
		if text := clean(e.Text); text != "" {
			body.WriteString(text)
			body.WriteString(" ")
		}
	})
	c.OnHTML("style", func(e *colly.HTMLElement) {
		colors = append(colors, hexPattern.FindAllString(e.Text, -1)...)
		fonts = append(fonts, fontFamilies(e.Text)...)
	})
	c.OnHTML("[style]", func(e *colly.HTMLElement) {
		style := e.Attr("style")
		colors = append(colors, hexPattern.FindAllString(style, -1)...)
		fonts = append(fonts, fontFamilies(style)...)
	})

	if err := c.Visit(siteURL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Page{}, ctxErr
		}
		if status >= http.StatusBadRequest {
			return Page{}, &providers.StatusError{Provider: providerName, Code: status, Body: err.Error()}
		}
		if errors.Is(err, colly.ErrMissingURL) || errors.Is(err, colly.ErrForbiddenURL) {
			return Page{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		return Page{}, fmt.Errorf("scrape %s: %w", siteURL, err)
	}
	c.Wait()
	if !visited {
		return Page{}, fmt.Errorf("scrape %s: no response", siteURL)
	}

	if page.Title == "" {
		page.Title = ogTitle
	}
	if page.Description == "" {
		page.Description = ogDesc
	}
	if ogImage != "" {
		logos = append(logos, ogImage)
	}
	page.BodyText = truncateRunes(strings.TrimSpace(body.String()), maxBodyRunes)
	page.LogoHints = limit(uniq(logos), maxLogoHints)
	page.ColorHints = limit(rankColors(colors), maxColorHints)
	page.FontHints = limit(uniq(fonts), maxFontHints)
	return page, nil
}

// rankColors orders valid colors by frequency, dropping pure black and
// white which rarely carry brand identity.
func rankColors(raw []string) []string {
	counts := map[string]int{}
	var order []string
	for _, r := range raw {
		c, ok := domain.NormalizeHexColor(r)
		if !ok || c == "#000000" || c == "#ffffff" {
			continue
		}
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}
	// stable insertion sort by descending count
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && counts[order[j]] > counts[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return order
}

func fontFamilies(css string) []string {
	var out []string
	for _, m := range fontPattern.FindAllStringSubmatch(css, -1) {
		first := strings.Split(m[1], ",")[0]
		first = strings.Trim(strings.TrimSpace(first), `'"`)
		switch strings.ToLower(first) {
		case "", "inherit", "initial", "sans-serif", "serif", "monospace", "system-ui", "-apple-system":
			continue
		}
		if strings.HasPrefix(first, "var(") {
			continue
		}
		out = append(out, first)
	}
	return out
}

func clean(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func uniq(values []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func limit(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
