package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"brandmerch/internal/domain"
	"brandmerch/internal/notify"
	"brandmerch/internal/providers/brand"
	"brandmerch/internal/providers/llm"
	"brandmerch/internal/providers/scrape"
	"brandmerch/internal/retry"
)

const (
	maxBrandColors = 6
	maxBrandFonts  = 4
	maxKeywords    = 8
	bodyExcerptLen = 1500
)

var errNoBrandSource = errors.New("no brand source configured")

// RunScrape gathers brand data for the session website, enhances it and
// either moves the session to concept (queuing the concept stage) or parks
// it in awaiting_approval when a logo or colors are missing.
func (s *Service) RunScrape(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Status.In(domain.StatusScraping, domain.StatusAwaitingApproval) {
		return nil, fmt.Errorf("%w: brand data was already approved", domain.ErrPrecondition)
	}

	started := s.now()
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Scrape)
	defer cancel()

	meta, page, err := s.fetchBrand(ctx, sess.URL)
	if err != nil {
		return nil, s.fail(ctx, id, domain.StageScrape, err)
	}
	data := mergeBrand(meta, page)
	s.enhance(ctx, sess.URL, data, page)

	var before domain.Status
	next := &transition{from: []domain.Status{domain.StatusScraping, domain.StatusAwaitingApproval}}
	updated, err := s.apply(ctx, id, next, func(cur *domain.Session) error {
		before = cur.Status
		cur.ScrapedData = keepManualEdits(data, cur.ScrapedData)
		next.to = nextAfterScrape(cur.ScrapedData)
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, id, domain.StageScrape, err)
	}

	switch {
	case updated.Status == domain.StatusConcept && before != domain.StatusConcept:
		s.enqueue(ctx, id, domain.StageConcept)
	case updated.Status == domain.StatusAwaitingApproval && before != domain.StatusAwaitingApproval:
		s.notify(ctx, updated, notify.TemplateNeedsReview, notify.Data{
			Missing:  updated.ScrapedData.MissingFields,
			Progress: updated.Status.Progress(),
			Stage:    updated.Status.Label(),
		})
	}
	s.logger.Info().
		Str("session_id", id).
		Str("status", string(updated.Status)).
		Bool("enhanced", updated.ScrapedData.Enhanced).
		Dur("elapsed", s.now().Sub(started)).
		Msg("pipeline: scrape finished")
	return updated, nil
}

// fetchBrand queries the metadata source and the page scraper concurrently.
// One failing source is tolerated; both failing fails the stage. Each source
// keeps its own error, so the group has no shared context (a failure must not
// cancel the sibling) and the goroutines return nil.
func (s *Service) fetchBrand(ctx context.Context, siteURL string) (brand.Metadata, scrape.Page, error) {
	var (
		meta             brand.Metadata
		page             scrape.Page
		metaErr, pageErr error
		g                errgroup.Group
	)
	metaErr, pageErr = errNoBrandSource, errNoBrandSource
	if s.brand != nil {
		g.Go(func() error {
			meta, metaErr = retry.Do(ctx, s.retry, func(ctx context.Context) (brand.Metadata, error) {
				return s.brand.Fetch(ctx, siteURL)
			})
			return nil
		})
	}
	if s.scraper != nil {
		g.Go(func() error {
			page, pageErr = retry.Do(ctx, s.retry, func(ctx context.Context) (scrape.Page, error) {
				return s.scraper.Scrape(ctx, siteURL)
			})
			return nil
		})
	}
	_ = g.Wait()

	if metaErr != nil && pageErr != nil {
		return meta, page, fmt.Errorf("%w: brand lookup: %w; page scrape: %w", domain.ErrProviderFailure, metaErr, pageErr)
	}
	if metaErr != nil && !errors.Is(metaErr, errNoBrandSource) {
		s.logger.Warn().Err(metaErr).Str("url", siteURL).Msg("pipeline: brand metadata unavailable, using page content")
	}
	if pageErr != nil && !errors.Is(pageErr, errNoBrandSource) {
		s.logger.Warn().Err(pageErr).Str("url", siteURL).Msg("pipeline: page scrape failed, using brand metadata")
	}
	return meta, page, nil
}

// mergeBrand combines both sources. Metadata wins per field and the page
// fills the gaps.
func mergeBrand(meta brand.Metadata, page scrape.Page) *domain.ScrapedData {
	data := &domain.ScrapedData{
		Title:       firstText(meta.Title, page.Title),
		Description: firstText(meta.Description, page.Description),
		LogoURL:     firstText(meta.LogoURL, firstHTTPURL(page.LogoHints)),
		Headings:    append([]string(nil), page.Headings...),
		BodyExcerpt: truncate(strings.TrimSpace(page.BodyText), bodyExcerptLen),
	}
	data.Colors = capList(domain.FilterColors(append(append([]string(nil), meta.Colors...), page.ColorHints...)), maxBrandColors)
	data.Fonts = capList(mergeNames(meta.Fonts, page.FontHints), maxBrandFonts)
	data.EvaluateManualInput()
	return data
}

// keepManualEdits carries user-supplied logo and colors over a fresh scrape.
func keepManualEdits(fresh, prev *domain.ScrapedData) *domain.ScrapedData {
	out := fresh.Clone()
	if prev != nil {
		if prev.ManualLogo && prev.LogoURL != "" {
			out.LogoURL = prev.LogoURL
			out.ManualLogo = true
		}
		if prev.ManualColors && len(prev.Colors) > 0 {
			out.Colors = append([]string(nil), prev.Colors...)
			out.ManualColors = true
		}
	}
	out.EvaluateManualInput()
	return out
}

func nextAfterScrape(data *domain.ScrapedData) domain.Status {
	if data.RequiresManualInput {
		return domain.StatusAwaitingApproval
	}
	return domain.StatusConcept
}

type brandTraits struct {
	Tone        string   `json:"tone"`
	Style       string   `json:"style"`
	Sentiment   string   `json:"sentiment"`
	Audience    string   `json:"audience"`
	Industry    string   `json:"industry"`
	Personality string   `json:"personality"`
	Keywords    []string `json:"keywords"`
}

// enhance fills qualitative traits from the text model. Failure leaves the
// data unenhanced.
func (s *Service) enhance(ctx context.Context, siteURL string, data *domain.ScrapedData, page scrape.Page) {
	prompt, err := s.prompts.Render(ctx, domain.PromptBrandEnhance, map[string]string{
		"url":         siteURL,
		"title":       data.Title,
		"description": data.Description,
		"headings":    strings.Join(page.Headings, "; "),
		"body":        truncate(page.BodyText, bodyExcerptLen),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("pipeline: render brand enhancement prompt")
		return
	}
	traits, err := retry.Do(ctx, s.retry, func(ctx context.Context) (brandTraits, error) {
		raw, err := s.text.Generate(ctx, llm.Request{Template: domain.PromptBrandEnhance, Prompt: prompt, JSON: true, Temperature: 0.3})
		if err != nil {
			return brandTraits{}, err
		}
		return llm.ParseJSON[brandTraits](raw)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("url", siteURL).Msg("pipeline: brand enhancement failed, keeping scraped data")
		return
	}
	data.Tone = strings.TrimSpace(traits.Tone)
	data.Style = strings.TrimSpace(traits.Style)
	data.Sentiment = strings.TrimSpace(traits.Sentiment)
	data.Audience = strings.TrimSpace(traits.Audience)
	data.Industry = strings.TrimSpace(traits.Industry)
	data.Personality = strings.TrimSpace(traits.Personality)
	data.Keywords = llm.NormalizeKeywords(traits.Keywords, maxKeywords)
	data.Enhanced = true
}

func firstText(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstHTTPURL(values []string) string {
	for _, v := range values {
		if u, err := domain.ValidateWebsiteURL(v); err == nil {
			return u
		}
	}
	return ""
}

func mergeNames(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, list := range lists {
		for _, v := range list {
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
	}
	return out
}

func capList(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// stageSeed keeps synthetic images distinct between regenerations.
func stageSeed(id, stage string, at time.Time) string {
	return id + ":" + stage + ":" + at.UTC().Format(time.RFC3339Nano)
}
