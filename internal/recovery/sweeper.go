// Package recovery reminds users about sessions stalled mid-pipeline.
package recovery

import (
	"context"
	"fmt"
	"time"

	"brandmerch/internal/domain"
	"brandmerch/internal/infra"
	"brandmerch/internal/notify"
)

const (
	DefaultStaleAge  = 24 * time.Hour
	DefaultBatchSize = 200
)

// StalledStatuses are the user-actionable stages a reminder is sent for.
var StalledStatuses = []domain.Status{domain.StatusConcept, domain.StatusMotif}

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (bool, error)
}

type LinkBuilder interface {
	URL(sessionID, email string) (string, error)
}

// Result summarises one sweep.
type Result struct {
	Found   int `json:"found"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type Options struct {
	StaleAge  time.Duration
	BatchSize int
	Now       func() time.Time
	Logger    *infra.Logger
}

// Sweeper finds stalled sessions and emails a resume link. A session is
// reminded once per stall: the marker is re-armed when the session changes.
type Sweeper struct {
	sessions  domain.SessionRepository
	notifier  Notifier
	links     LinkBuilder
	staleAge  time.Duration
	batchSize int
	now       func() time.Time
	logger    *infra.Logger
}

func NewSweeper(sessions domain.SessionRepository, notifier Notifier, links LinkBuilder, opts Options) *Sweeper {
	s := &Sweeper{
		sessions:  sessions,
		notifier:  notifier,
		links:     links,
		staleAge:  opts.StaleAge,
		batchSize: opts.BatchSize,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if s.staleAge <= 0 {
		s.staleAge = DefaultStaleAge
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = infra.NopLogger()
	}
	return s
}

// Run performs one sweep. Per-session failures are counted and never stop
// the sweep; only a failing listing query returns an error.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var res Result
	now := s.now()
	stale, err := s.sessions.ListStale(ctx, StalledStatuses, now.Add(-s.staleAge), s.batchSize)
	if err != nil {
		return res, fmt.Errorf("list stale sessions: %w", err)
	}
	res.Found = len(stale)

	for i := range stale {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sent, err := s.remind(ctx, &stale[i], now)
		switch {
		case err != nil:
			res.Failed++
			s.logger.Warn().Err(err).Str("session_id", stale[i].ID).Msg("recovery: reminder failed")
		case sent:
			res.Sent++
		default:
			res.Skipped++
		}
	}
	s.logger.Info().
		Int("found", res.Found).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("recovery: sweep finished")
	return res, nil
}

func (s *Sweeper) remind(ctx context.Context, sess *domain.Session, now time.Time) (bool, error) {
	if domain.IsPlaceholderEmail(sess.Email) {
		return false, nil
	}
	link, err := s.links.URL(sess.ID, sess.Email)
	if err != nil {
		return false, fmt.Errorf("build link: %w", err)
	}
	var name string
	if sess.ScrapedData != nil {
		name = sess.ScrapedData.Title
	}
	sent, err := s.notifier.Send(ctx, notify.Message{
		To:       sess.Email,
		Template: notify.TemplateRecovery,
		Data: notify.Data{
			BrandName: name,
			Link:      link,
			Progress:  sess.Status.Progress(),
			Stage:     sess.Status.Label(),
		},
	})
	if err != nil || !sent {
		return false, err
	}
	if err := s.sessions.MarkNotified(ctx, sess.ID, now); err != nil {
		return true, fmt.Errorf("mark notified: %w", err)
	}
	return true, nil
}
