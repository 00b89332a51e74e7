package pipeline

import (
	"context"
	"fmt"
	"strings"

	"brandmerch/internal/domain"
	"brandmerch/internal/providers/llm"
	"brandmerch/internal/retry"
)

// RunConcept writes a design concept. With regenerate set and a concept
// already stored, the model is asked for a different direction.
func (s *Service) RunConcept(ctx context.Context, id string, regenerate bool) (*domain.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	data := sess.ScrapedData
	if data == nil {
		return nil, fmt.Errorf("%w: brand data is missing, run the scrape stage first", domain.ErrPrecondition)
	}
	if !sess.Status.AtOrPast(domain.StatusConcept) && !data.ReadyForConcept() {
		return nil, fmt.Errorf("%w: brand data needs %s", domain.ErrPrecondition, strings.Join(data.MissingFields, " and "))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Concept)
	defer cancel()

	name := domain.PromptConcept
	vars := map[string]string{
		"title":       brandName(data),
		"description": data.Description,
		"colors":      strings.Join(data.Colors, ", "),
		"fonts":       strings.Join(data.Fonts, ", "),
		"tone":        data.Tone,
		"style":       data.Style,
		"audience":    data.Audience,
		"industry":    data.Industry,
		"keywords":    strings.Join(data.Keywords, ", "),
	}
	if regenerate && domain.HasText(sess.Concept) {
		name = domain.PromptConceptRegenerate
		vars["previous_concept"] = *sess.Concept
	}

	concept, err := s.generateText(ctx, name, vars, 0.9)
	if err != nil {
		return nil, s.fail(ctx, id, domain.StageConcept, err)
	}

	updated, err := s.apply(ctx, id, &transition{
		from: []domain.Status{domain.StatusScraping, domain.StatusAwaitingApproval},
		to:   domain.StatusConcept,
	}, func(cur *domain.Session) error {
		cur.Concept = &concept
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, id, domain.StageConcept, err)
	}
	s.logger.Info().Str("session_id", id).Bool("regenerate", name == domain.PromptConceptRegenerate).Msg("pipeline: concept stored")
	return updated, nil
}

// generateText renders a template and asks the text model for plain text.
func (s *Service) generateText(ctx context.Context, template string, vars map[string]string, temperature float32) (string, error) {
	prompt, err := s.prompts.Render(ctx, template, vars)
	if err != nil {
		// A broken stored template is a processing failure, not a bad request.
		return "", fmt.Errorf("render prompt %s: %v", template, err)
	}
	return retry.Do(ctx, s.retry, func(ctx context.Context) (string, error) {
		raw, err := s.text.Generate(ctx, llm.Request{Template: template, Prompt: prompt, Temperature: temperature})
		if err != nil {
			return "", err
		}
		text := llm.CleanText(raw)
		if text == "" {
			return "", fmt.Errorf("%w: %s returned empty text for %s", domain.ErrProviderFailure, s.text.Name(), template)
		}
		return text, nil
	})
}

func brandName(data *domain.ScrapedData) string {
	if data == nil || strings.TrimSpace(data.Title) == "" {
		return "the brand"
	}
	return data.Title
}
