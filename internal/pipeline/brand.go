package pipeline

import (
	"context"
	"fmt"
	"strings"

	"brandmerch/internal/domain"
)

// ApproveBrand releases a session from manual review once it has a logo and
// enough colors, and queues the concept stage.
func (s *Service) ApproveBrand(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.AtOrPast(domain.StatusConcept) {
		return sess, nil
	}
	if sess.Status != domain.StatusAwaitingApproval || sess.ScrapedData == nil {
		return nil, fmt.Errorf("%w: brand data is not ready for review", domain.ErrPrecondition)
	}
	if !sess.ScrapedData.ReadyForConcept() {
		sess.ScrapedData.EvaluateManualInput()
		return nil, fmt.Errorf("%w: brand data needs %s", domain.ErrPrecondition, strings.Join(sess.ScrapedData.MissingFields, " and "))
	}

	var before domain.Status
	updated, err := s.apply(ctx, id, &transition{
		from: []domain.Status{domain.StatusAwaitingApproval},
		to:   domain.StatusConcept,
	}, func(cur *domain.Session) error {
		before = cur.Status
		if !cur.ScrapedData.ReadyForConcept() {
			return fmt.Errorf("%w: brand data changed during approval", domain.ErrPrecondition)
		}
		cur.ScrapedData.EvaluateManualInput()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if before == domain.StatusAwaitingApproval && updated.Status == domain.StatusConcept {
		s.enqueue(ctx, id, domain.StageConcept)
	}
	return updated, nil
}

// UpdateBrandData merges user edits into the scraped data. The patch is
// validated before anything is written.
func (s *Service) UpdateBrandData(ctx context.Context, id string, patch domain.BrandPatch) (*domain.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	probe := sess.ScrapedData.Clone()
	if probe == nil {
		probe = &domain.ScrapedData{}
	}
	if err := patch.Apply(probe); err != nil {
		return nil, err
	}

	return s.apply(ctx, id, nil, func(cur *domain.Session) error {
		data := cur.ScrapedData.Clone()
		if data == nil {
			data = &domain.ScrapedData{}
		}
		if err := patch.Apply(data); err != nil {
			return err
		}
		cur.ScrapedData = data
		return nil
	})
}
