package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"brandmerch/internal/domain"
	"brandmerch/internal/magiclink"
	"brandmerch/internal/notify"
	"brandmerch/internal/prompts"
	"brandmerch/internal/providers/brand"
	"brandmerch/internal/providers/genai"
	"brandmerch/internal/providers/llm"
	"brandmerch/internal/providers/scrape"
	"brandmerch/internal/retry"
	"brandmerch/internal/storage"
)

type memSessions struct {
	mu        sync.Mutex
	rows      map[string]domain.Session
	tasks     *memTasks
	conflicts int
	updates   int
}

func newMemSessions(tasks *memTasks) *memSessions {
	return &memSessions{rows: map[string]domain.Session{}, tasks: tasks}
}

func copySession(s domain.Session) domain.Session {
	out := s
	out.ScrapedData = s.ScrapedData.Clone()
	out.ProductImages = append([]domain.ProductImage(nil), s.ProductImages...)
	for _, p := range []**string{&out.Concept, &out.MotifDescription, &out.MotifImageURL, &out.ErrorMessage} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return out
}

func (m *memSessions) CreateWithTask(ctx context.Context, s *domain.Session, first domain.Stage) (*domain.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == s.Email && row.URL == s.URL {
			out := copySession(row)
			return &out, false, nil
		}
	}
	row := copySession(*s)
	row.ID = uuid.NewString()
	row.Version = 1
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	m.rows[row.ID] = row
	if _, err := m.tasks.Enqueue(ctx, row.ID, first, false); err != nil {
		return nil, false, err
	}
	out := copySession(row)
	return &out, true, nil
}

func (m *memSessions) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copySession(row)
	return &out, nil
}

func (m *memSessions) Update(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[s.ID]
	if !ok || row.Version != s.Version {
		return nil, domain.ErrConflict
	}
	if m.conflicts > 0 {
		m.conflicts--
		// Simulate a concurrent writer bumping the version.
		row.Version++
		m.rows[s.ID] = row
		return nil, domain.ErrConflict
	}
	if !row.Status.CanTransition(s.Status) {
		return nil, fmt.Errorf("illegal transition %s -> %s", row.Status, s.Status)
	}
	next := copySession(*s)
	next.Version = row.Version + 1
	next.UpdatedAt = time.Now()
	m.rows[s.ID] = next
	m.updates++
	out := copySession(next)
	return &out, nil
}

func (m *memSessions) ListStale(ctx context.Context, statuses []domain.Status, before time.Time, limit int) ([]domain.Session, error) {
	return nil, nil
}

func (m *memSessions) MarkNotified(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (m *memSessions) put(t *testing.T, s domain.Session) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	m.rows[s.ID] = copySession(s)
	return s.ID
}

type memTasks struct {
	mu    sync.Mutex
	queue []domain.Task
}

func (q *memTasks) Enqueue(ctx context.Context, sessionID string, stage domain.Stage, regenerate bool) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task := domain.Task{ID: uuid.NewString(), SessionID: sessionID, Stage: stage, Regenerate: regenerate, Status: domain.TaskQueued}
	q.queue = append(q.queue, task)
	return &task, nil
}

func (q *memTasks) Claim(ctx context.Context, lease time.Duration) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return nil, nil
	}
	task := q.queue[0]
	q.queue = q.queue[1:]
	return &task, nil
}

func (q *memTasks) Complete(ctx context.Context, id string) error            { return nil }
func (q *memTasks) Fail(ctx context.Context, id string, reason string) error { return nil }
func (q *memTasks) Release(ctx context.Context, id string) error             { return nil }

func (q *memTasks) stages() []domain.Stage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Stage, 0, len(q.queue))
	for _, task := range q.queue {
		out = append(out, task.Stage)
	}
	return out
}

type memProducts struct {
	items   []domain.Product
	listErr error
}

func (p *memProducts) ListActive(ctx context.Context) ([]domain.Product, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	var out []domain.Product
	for _, item := range p.items {
		if !item.Archived {
			out = append(out, item)
		}
	}
	return out, nil
}

func (p *memProducts) List(ctx context.Context) ([]domain.Product, error) { return p.items, nil }

func (p *memProducts) Upsert(ctx context.Context, item *domain.Product) (*domain.Product, error) {
	p.items = append(p.items, *item)
	return item, nil
}

type noPrompts struct{}

func (noPrompts) Get(ctx context.Context, name string) (*domain.PromptTemplate, error) {
	return nil, domain.ErrNotFound
}
func (noPrompts) List(ctx context.Context) ([]domain.PromptTemplate, error) { return nil, nil }
func (noPrompts) Save(ctx context.Context, t *domain.PromptTemplate) (*domain.PromptTemplate, error) {
	return t, nil
}

type fakeBrand struct {
	mu    sync.Mutex
	calls int
	errs  []error
	meta  brand.Metadata
}

func (f *fakeBrand) Fetch(ctx context.Context, siteURL string) (brand.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		if len(f.errs) > 1 {
			f.errs = f.errs[1:]
		}
		if err != nil {
			return brand.Metadata{}, err
		}
	}
	return f.meta, nil
}

// stallingText blocks until the request context ends.
type stallingText struct{}

func (stallingText) Generate(ctx context.Context, req llm.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (stallingText) Name() string { return "stalling" }

type fakeScraper struct {
	page scrape.Page
	err  error
}

func (f *fakeScraper) Scrape(ctx context.Context, siteURL string) (scrape.Page, error) {
	return f.page, f.err
}

// failingImages fails every request whose prompt mentions match.
type failingImages struct {
	inner *genai.Client
	match string
	err   error
	calls int
}

func (f *failingImages) GenerateImage(ctx context.Context, req genai.Request) (genai.Image, error) {
	f.calls++
	if f.match != "" && strings.Contains(req.Prompt, f.match) {
		return genai.Image{}, f.err
	}
	return f.inner.GenerateImage(ctx, req)
}

type sentMail struct {
	to       string
	template string
	data     notify.Data
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (r *recordingNotifier) Send(ctx context.Context, msg notify.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	r.sent = append(r.sent, sentMail{to: msg.To, template: msg.Template, data: msg.Data})
	return true, nil
}

func (r *recordingNotifier) templates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.sent {
		out = append(out, m.template)
	}
	return out
}

type harness struct {
	svc      *Service
	sessions *memSessions
	tasks    *memTasks
	products *memProducts
	brand    *fakeBrand
	scraper  *fakeScraper
	images   *failingImages
	notifier *recordingNotifier
	signer   *magiclink.Signer
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()
	tasks := &memTasks{}
	h := &harness{
		tasks:    tasks,
		sessions: newMemSessions(tasks),
		products: &memProducts{items: []domain.Product{
			{ID: "prod-tee", Name: "t-shirt", BaseImageURL: "https://cdn.test/base/tee.png", PrintZones: []string{"front", "back"}, MaxColors: 4},
			{ID: "prod-mug", Name: "coffee mug", BaseImageURL: "https://cdn.test/base/mug.png", PrintZones: []string{"wrap"}, MaxColors: 2},
		}},
		brand: &fakeBrand{meta: brand.Metadata{
			Title:   "Example",
			LogoURL: "https://example.com/logo.svg",
			Colors:  []string{"#112233", "#AABBCC"},
			Fonts:   []string{"Inter"},
		}},
		scraper: &fakeScraper{page: scrape.Page{
			Title:     "Example Inc",
			Headings:  []string{"We make things"},
			BodyText:  "Example makes useful things for everyone.",
			FontHints: []string{"Lato"},
		}},
		images:   &failingImages{inner: genai.NewClient(genai.Options{})},
		notifier: &recordingNotifier{},
	}

	store, err := storage.NewFileStore(t.TempDir(), "http://cdn.test/static")
	require.NoError(t, err)
	h.signer, err = magiclink.NewSigner(magiclink.Options{Secret: "test-secret", BaseURL: "https://app.test"})
	require.NoError(t, err)

	deps := Deps{
		Sessions: h.sessions,
		Products: h.products,
		Tasks:    h.tasks,
		Prompts:  prompts.NewStore(noPrompts{}),
		Brand:    h.brand,
		Scraper:  h.scraper,
		Text:     llm.NewStaticGenerator(),
		Images:   h.images,
		Store:    store,
		Notifier: h.notifier,
		Links:    h.signer,
		Retry:    retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Sleep: noSleep},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.svc, err = NewService(deps)
	require.NoError(t, err)
	return h
}
