// Package pipeline drives a brand session through scrape, concept, motif and
// products. Every stage reloads the persisted session, so any stage can be
// re-run on its own.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brandmerch/internal/domain"
	"brandmerch/internal/infra"
	"brandmerch/internal/magiclink"
	"brandmerch/internal/notify"
	"brandmerch/internal/providers/brand"
	"brandmerch/internal/providers/genai"
	"brandmerch/internal/providers/llm"
	"brandmerch/internal/providers/scrape"
	"brandmerch/internal/retry"
	"brandmerch/internal/storage"
)

const (
	maxApplyAttempts = 4
	failWriteTimeout = 10 * time.Second
)

// BrandSource looks up brand metadata for a website.
type BrandSource interface {
	Fetch(ctx context.Context, siteURL string) (brand.Metadata, error)
}

// ContentScraper reads brand hints from a web page.
type ContentScraper interface {
	Scrape(ctx context.Context, siteURL string) (scrape.Page, error)
}

// ImageGenerator renders an image from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req genai.Request) (genai.Image, error)
}

// PromptRenderer resolves a named template with variables.
type PromptRenderer interface {
	Render(ctx context.Context, name string, vars map[string]string) (string, error)
}

// Notifier sends templated email. It reports false when nothing was sent.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (bool, error)
}

// Links issues and checks resumable access links.
type Links interface {
	URL(sessionID, email string) (string, error)
	Verify(token string) (magiclink.Claims, error)
}

// Timeouts is the wall-clock budget of each stage.
type Timeouts struct {
	Scrape   time.Duration
	Concept  time.Duration
	Motif    time.Duration
	Products time.Duration
}

// DefaultTimeouts returns the stock stage budgets.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Scrape:   90 * time.Second,
		Concept:  60 * time.Second,
		Motif:    120 * time.Second,
		Products: 300 * time.Second,
	}
}

// Deps wires the Service collaborators.
type Deps struct {
	Sessions domain.SessionRepository
	Products domain.ProductRepository
	Tasks    domain.TaskQueue
	Prompts  PromptRenderer
	Brand    BrandSource
	Scraper  ContentScraper
	Text     llm.Generator
	Images   ImageGenerator
	Store    storage.ObjectStore
	Notifier Notifier
	Links    Links
	Retry    retry.Policy
	Timeouts Timeouts
	Now      func() time.Time
	Logger   *infra.Logger
}

// Service runs pipeline stages.
type Service struct {
	sessions domain.SessionRepository
	products domain.ProductRepository
	tasks    domain.TaskQueue
	prompts  PromptRenderer
	brand    BrandSource
	scraper  ContentScraper
	text     llm.Generator
	images   ImageGenerator
	store    storage.ObjectStore
	notifier Notifier
	links    Links
	retry    retry.Policy
	timeouts Timeouts
	now      func() time.Time
	logger   *infra.Logger
}

// NewService validates deps and builds a Service.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Sessions == nil:
		return nil, fmt.Errorf("%w: session repository", domain.ErrNotConfigured)
	case deps.Products == nil:
		return nil, fmt.Errorf("%w: product repository", domain.ErrNotConfigured)
	case deps.Tasks == nil:
		return nil, fmt.Errorf("%w: task queue", domain.ErrNotConfigured)
	case deps.Prompts == nil:
		return nil, fmt.Errorf("%w: prompt store", domain.ErrNotConfigured)
	case deps.Text == nil:
		return nil, fmt.Errorf("%w: text generator", domain.ErrNotConfigured)
	case deps.Images == nil:
		return nil, fmt.Errorf("%w: image generator", domain.ErrNotConfigured)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: object store", domain.ErrNotConfigured)
	case deps.Links == nil:
		return nil, fmt.Errorf("%w: link signer", domain.ErrNotConfigured)
	}
	if deps.Brand == nil && deps.Scraper == nil {
		return nil, fmt.Errorf("%w: brand source or content scraper", domain.ErrNotConfigured)
	}

	policy := deps.Retry
	if policy.MaxAttempts == 0 {
		defaults := retry.DefaultPolicy()
		policy.MaxAttempts = defaults.MaxAttempts
		if policy.InitialDelay == 0 {
			policy.InitialDelay = defaults.InitialDelay
		}
	}
	if policy.Retryable == nil {
		policy.Retryable = Retryable
	}

	timeouts := deps.Timeouts
	def := DefaultTimeouts()
	if timeouts.Scrape <= 0 {
		timeouts.Scrape = def.Scrape
	}
	if timeouts.Concept <= 0 {
		timeouts.Concept = def.Concept
	}
	if timeouts.Motif <= 0 {
		timeouts.Motif = def.Motif
	}
	if timeouts.Products <= 0 {
		timeouts.Products = def.Products
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	s := &Service{
		sessions: deps.Sessions,
		products: deps.Products,
		tasks:    deps.Tasks,
		prompts:  deps.Prompts,
		brand:    deps.Brand,
		scraper:  deps.Scraper,
		text:     deps.Text,
		images:   deps.Images,
		store:    deps.Store,
		notifier: deps.Notifier,
		links:    deps.Links,
		retry:    policy,
		timeouts: timeouts,
		now:      now,
		logger:   logger,
	}
	if s.retry.OnRetry == nil {
		s.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
			s.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("pipeline: retrying external call")
		}
	}
	return s, nil
}

// CreateInput is a session creation request.
type CreateInput struct {
	Email     string
	URL       string
	SkipEmail bool
}

// CreateSession validates input and stores a new session with its scrape
// task queued. A repeated (email, url) pair returns the stored session and
// created=false.
func (s *Service) CreateSession(ctx context.Context, in CreateInput) (*domain.Session, bool, error) {
	siteURL, err := domain.ValidateWebsiteURL(in.URL)
	if err != nil {
		return nil, false, err
	}
	var email string
	if in.SkipEmail {
		email = domain.PlaceholderEmail()
	} else if email, err = domain.ValidateEmail(in.Email); err != nil {
		return nil, false, err
	}

	sess, created, err := s.sessions.CreateWithTask(ctx, &domain.Session{
		Email:  email,
		URL:    siteURL,
		Status: domain.StatusScraping,
	}, domain.StageScrape)
	if err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info().Str("session_id", sess.ID).Bool("created", created).Msg("pipeline: session created")
	return sess, created, nil
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, id string) (*domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}
	return s.sessions.Get(ctx, id)
}

// ErrInvalidLink is returned by ResumeFromLink for bad or expired tokens.
var ErrInvalidLink = fmt.Errorf("%w: %w", domain.ErrUnauthorized, magiclink.ErrInvalidToken)

// ResumeFromLink verifies an access token and returns its session. The token
// email must still match the session.
func (s *Service) ResumeFromLink(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := s.links.Verify(token)
	if err != nil {
		return nil, ErrInvalidLink
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidLink
		}
		return nil, err
	}
	if !strings.EqualFold(sess.Email, claims.Email) {
		return nil, ErrInvalidLink
	}
	return sess, nil
}

// RunTask runs the stage named by a queued task.
func (s *Service) RunTask(ctx context.Context, task domain.Task) error {
	var err error
	switch task.Stage {
	case domain.StageScrape:
		_, err = s.RunScrape(ctx, task.SessionID)
	case domain.StageConcept:
		_, err = s.RunConcept(ctx, task.SessionID, task.Regenerate)
	case domain.StageMotif:
		_, err = s.RunMotif(ctx, task.SessionID, task.Regenerate)
	case domain.StageProducts:
		_, err = s.RunProducts(ctx, task.SessionID)
	default:
		return fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, task.Stage)
	}
	return err
}

// transition describes the status change a stage result may cause.
type transition struct {
	from []domain.Status
	to   domain.Status
}

// apply reloads the session, runs mutate on it and writes it back with a
// version check. The status moves to t.to only when the current status is in
// t.from. Version conflicts reload and re-apply.
func (s *Service) apply(ctx context.Context, id string, t *transition, mutate func(*domain.Session) error) (*domain.Session, error) {
	var lastErr error
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		cur, err := s.sessions.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.Status == domain.StatusFailed && (t == nil || t.to != domain.StatusFailed) {
			return nil, fmt.Errorf("%w: session has failed", domain.ErrPrecondition)
		}
		if mutate != nil {
			if err := mutate(cur); err != nil {
				return nil, err
			}
		}
		if t != nil && cur.Status.In(t.from...) && cur.Status.CanTransition(t.to) {
			cur.Status = t.to
		}
		updated, err := s.sessions.Update(ctx, cur)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug().Str("session_id", id).Int("attempt", attempt+1).Msg("pipeline: version conflict, reloading")
	}
	return nil, lastErr
}

// fail records a processing failure on the session unless err is a client
// error. The write is best effort and runs detached from ctx, which may
// already be past its deadline. The original error is returned.
func (s *Service) fail(ctx context.Context, id string, stage domain.Stage, err error) error {
	if err == nil || !marksFailed(err) {
		return err
	}
	s.logger.Error().Err(err).Str("session_id", id).Str("stage", string(stage)).Msg("pipeline: stage failed")

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()
	message := truncate(fmt.Sprintf("%s: %v", stage, err), 500)
	_, werr := s.apply(writeCtx, id, &transition{from: nonTerminal, to: domain.StatusFailed}, func(sess *domain.Session) error {
		if sess.Status.IsTerminal() {
			return errSkipWrite
		}
		sess.ErrorMessage = &message
		return nil
	})
	if werr != nil && !errors.Is(werr, errSkipWrite) {
		s.logger.Error().Err(werr).Str("session_id", id).Msg("pipeline: could not record failure")
	}
	return err
}

var (
	errSkipWrite = errors.New("skip write")
	nonTerminal  = []domain.Status{
		domain.StatusScraping,
		domain.StatusAwaitingApproval,
		domain.StatusConcept,
		domain.StatusMotif,
		domain.StatusProducts,
	}
)

// load fetches a session for a stage and rejects failed ones.
func (s *Service) load(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == domain.StatusFailed {
		return nil, fmt.Errorf("%w: session has failed", domain.ErrPrecondition)
	}
	return sess, nil
}

// enqueue queues the next stage. A queueing error is logged; the stage result
// is already stored and the stage can be triggered again.
func (s *Service) enqueue(ctx context.Context, id string, stage domain.Stage) {
	if _, err := s.tasks.Enqueue(ctx, id, stage, false); err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Str("stage", string(stage)).Msg("pipeline: enqueue next stage failed")
	}
}

// notify sends a best-effort email.
func (s *Service) notify(ctx context.Context, sess *domain.Session, template string, data notify.Data) {
	if s.notifier == nil {
		return
	}
	link, err := s.links.URL(sess.ID, sess.Email)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("pipeline: build access link")
		return
	}
	data.Link = link
	if data.BrandName == "" && sess.ScrapedData != nil {
		data.BrandName = sess.ScrapedData.Title
	}
	_, err = retry.Do(ctx, s.retry, func(ctx context.Context) (bool, error) {
		return s.notifier.Send(ctx, notify.Message{To: sess.Email, Template: template, Data: data})
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Str("template", template).Msg("pipeline: notification failed")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
