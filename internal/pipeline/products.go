package pipeline

import (
	"context"
	"fmt"
	"strings"

	"brandmerch/internal/domain"
	"brandmerch/internal/notify"
	"brandmerch/internal/providers/genai"
)

// RunProducts renders one mockup per active product. The list is stored in
// a single write once every product succeeded.
func (s *Service) RunProducts(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.ScrapedData == nil || !domain.HasText(sess.Concept) || !domain.HasText(sess.MotifImageURL) {
		return nil, fmt.Errorf("%w: products need brand data, a concept and a motif", domain.ErrPrecondition)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Products)
	defer cancel()

	catalog, err := s.activeProducts(ctx)
	if err != nil {
		return nil, s.fail(ctx, id, domain.StageProducts, err)
	}

	if sess.Status == domain.StatusMotif {
		if _, err := s.apply(ctx, id, &transition{
			from: []domain.Status{domain.StatusMotif},
			to:   domain.StatusProducts,
		}, nil); err != nil {
			return nil, s.fail(ctx, id, domain.StageProducts, err)
		}
	}

	data := sess.ScrapedData
	motif := domain.StringValue(sess.MotifDescription)
	if motif == "" {
		motif = *sess.Concept
	}
	now := s.now()
	images := make([]domain.ProductImage, 0, len(catalog))
	for _, p := range catalog {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(ctx, id, domain.StageProducts, err)
		}
		prompt, err := s.prompts.Render(ctx, domain.PromptProductMockup, map[string]string{
			"product_name":    p.Name,
			"title":           brandName(data),
			"print_zones":     strings.Join(p.PrintZones, ", "),
			"motif":           motif,
			"motif_image_url": *sess.MotifImageURL,
			"base_image_url":  p.BaseImageURL,
			"colors":          strings.Join(capList(data.Colors, maxColorsFor(p)), ", "),
			"constraints":     p.Constraints,
		})
		if err != nil {
			return nil, s.fail(ctx, id, domain.StageProducts, fmt.Errorf("render prompt %s: %v", domain.PromptProductMockup, err))
		}
		refs := []string{*sess.MotifImageURL}
		if p.BaseImageURL != "" {
			refs = append(refs, p.BaseImageURL)
		}
		url, err := s.renderAndStore(ctx, genai.Request{
			Prompt:      prompt,
			AspectRatio: "1:1",
			Palette:     data.Colors,
			References:  refs,
			Seed:        stageSeed(id, "product-"+p.ID, now),
		}, fmt.Sprintf("sessions/%s/products/%s", id, p.ID))
		if err != nil {
			return nil, s.fail(ctx, id, domain.StageProducts, fmt.Errorf("product %s: %w", p.Name, err))
		}
		images = append(images, domain.ProductImage{
			ProductID:   p.ID,
			ProductName: p.Name,
			ImageURL:    url,
			PrintZones:  append([]string(nil), p.PrintZones...),
			DesignNotes: motif,
		})
	}

	updated, err := s.apply(ctx, id, &transition{
		from: []domain.Status{domain.StatusMotif, domain.StatusProducts},
		to:   domain.StatusComplete,
	}, func(cur *domain.Session) error {
		cur.ProductImages = images
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, id, domain.StageProducts, err)
	}
	s.logger.Info().Str("session_id", id).Int("products", len(images)).Msg("pipeline: products stored")

	s.notify(ctx, updated, notify.TemplateResults, notify.Data{
		Products: updated.ProductImages,
		MotifURL: domain.StringValue(updated.MotifImageURL),
		Progress: updated.Status.Progress(),
		Stage:    updated.Status.Label(),
	})
	return updated, nil
}

func maxColorsFor(p domain.Product) int {
	if p.MaxColors <= 0 {
		return maxBrandColors
	}
	return p.MaxColors
}
