package pipeline

import (
	"context"
	"fmt"
	"strings"

	"brandmerch/internal/domain"
	"brandmerch/internal/providers/genai"
	"brandmerch/internal/retry"
)

// RunMotif generates the motif brief and artwork using the first active
// product as the reference for print zones.
func (s *Service) RunMotif(ctx context.Context, id string, regenerate bool) (*domain.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.ScrapedData == nil || !domain.HasText(sess.Concept) {
		return nil, fmt.Errorf("%w: motif needs brand data and a concept", domain.ErrPrecondition)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Motif)
	defer cancel()

	catalog, err := s.activeProducts(ctx)
	if err != nil {
		return nil, s.fail(ctx, id, domain.StageMotif, err)
	}
	ref := catalog[0]
	data := sess.ScrapedData

	name := domain.PromptMotif
	vars := map[string]string{
		"title":        brandName(data),
		"concept":      *sess.Concept,
		"colors":       strings.Join(data.Colors, ", "),
		"product_name": ref.Name,
		"print_zones":  strings.Join(ref.PrintZones, ", "),
	}
	if regenerate && domain.HasText(sess.MotifDescription) {
		name = domain.PromptMotifRegenerate
		vars["previous_motif"] = *sess.MotifDescription
	}

	description, err := s.generateText(ctx, name, vars, 0.8)
	if err != nil {
		return nil, s.fail(ctx, id, domain.StageMotif, err)
	}

	var refs []string
	if data.LogoURL != "" {
		refs = append(refs, data.LogoURL)
	}
	now := s.now()
	imageURL, err := s.renderAndStore(ctx, genai.Request{
		Prompt:      description,
		AspectRatio: "1:1",
		Palette:     data.Colors,
		References:  refs,
		Seed:        stageSeed(id, "motif", now),
	}, fmt.Sprintf("sessions/%s/motif-%d", id, now.Unix()))
	if err != nil {
		return nil, s.fail(ctx, id, domain.StageMotif, err)
	}

	updated, err := s.apply(ctx, id, &transition{
		from: []domain.Status{domain.StatusConcept},
		to:   domain.StatusMotif,
	}, func(cur *domain.Session) error {
		cur.MotifDescription = &description
		cur.MotifImageURL = &imageURL
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, id, domain.StageMotif, err)
	}
	s.logger.Info().Str("session_id", id).Str("reference_product", ref.ID).Str("motif_url", imageURL).Msg("pipeline: motif stored")
	return updated, nil
}

func (s *Service) activeProducts(ctx context.Context) ([]domain.Product, error) {
	catalog, err := s.products.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("%w: product catalog is empty", domain.ErrPrecondition)
	}
	return catalog, nil
}

// renderAndStore generates an image and uploads it under keyBase plus an
// extension matching its MIME type.
func (s *Service) renderAndStore(ctx context.Context, req genai.Request, keyBase string) (string, error) {
	img, err := retry.Do(ctx, s.retry, func(ctx context.Context) (genai.Image, error) {
		return s.images.GenerateImage(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	mime := img.MIME
	if mime == "" {
		mime = "image/png"
	}
	key := keyBase + extensionFor(mime)
	url, err := retry.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.store.Put(ctx, key, img.Data, mime)
	})
	if err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return url, nil
}

func extensionFor(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
