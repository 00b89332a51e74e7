// Package prompts serves the pipeline's prompt templates from the database
// with built-in defaults and a short-lived in-process cache.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"brandmerch/internal/domain"
)

const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	tmpl    domain.PromptTemplate
	expires time.Time
}

// Store resolves templates by name. Reads hit the cache first; writes go
// through to the repository and drop the cached entry.
type Store struct {
	repo domain.PromptRepository
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type Option func(*Store)

// WithTTL sets the cache lifetime; zero disables caching.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock injects the time source used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(repo domain.PromptRepository, opts ...Option) *Store {
	s := &Store{
		repo:  repo,
		ttl:   DefaultCacheTTL,
		now:   time.Now,
		cache: map[string]cacheEntry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the stored template for name, or the built-in default when no
// row exists.
func (s *Store) Get(ctx context.Context, name string) (domain.PromptTemplate, error) {
	if t, ok := s.cached(name); ok {
		return t, nil
	}
	var tmpl domain.PromptTemplate
	stored, err := s.repo.Get(ctx, name)
	switch {
	case err == nil:
		tmpl = *stored
	case errors.Is(err, domain.ErrNotFound):
		def, ok := Default(name)
		if !ok {
			return domain.PromptTemplate{}, fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
		}
		tmpl = def
	default:
		return domain.PromptTemplate{}, fmt.Errorf("load prompt %q: %w", name, err)
	}
	s.remember(tmpl)
	return tmpl, nil
}

// Render loads name and fills its slots.
func (s *Store) Render(ctx context.Context, name string, vars map[string]string) (string, error) {
	tmpl, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return Render(tmpl, vars)
}

// List returns every known template, stored rows taking precedence over defaults.
func (s *Store) List(ctx context.Context) ([]domain.PromptTemplate, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	byName := map[string]domain.PromptTemplate{}
	for _, name := range Names() {
		def, _ := Default(name)
		byName[name] = def
	}
	for _, t := range stored {
		byName[t.Name] = t
	}
	out := make([]domain.PromptTemplate, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Update replaces the template text. Only slots the pipeline supplies for
// name may be used; the stored variables are the slots text references.
func (s *Store) Update(ctx context.Context, name, text string) (domain.PromptTemplate, error) {
	def, ok := Default(name)
	if !ok {
		return domain.PromptTemplate{}, fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
	}
	if strings.TrimSpace(text) == "" {
		return domain.PromptTemplate{}, fmt.Errorf("%w: template text is required", domain.ErrValidation)
	}
	allowed := map[string]struct{}{}
	for _, v := range def.Variables {
		allowed[v] = struct{}{}
	}
	slots := Slots(text)
	for _, slot := range slots {
		if _, ok := allowed[slot]; !ok {
			return domain.PromptTemplate{}, fmt.Errorf("%w: unknown slot {{%s}} for prompt %s", domain.ErrValidation, slot, name)
		}
	}
	return s.save(ctx, domain.PromptTemplate{Name: name, Template: text, Variables: slots})
}

// Reset restores the built-in default; the stored version still increases.
func (s *Store) Reset(ctx context.Context, name string) (domain.PromptTemplate, error) {
	def, ok := Default(name)
	if !ok {
		return domain.PromptTemplate{}, fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
	}
	return s.save(ctx, def)
}

// Invalidate drops name from the cache.
func (s *Store) Invalidate(name string) {
	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()
}

func (s *Store) save(ctx context.Context, tmpl domain.PromptTemplate) (domain.PromptTemplate, error) {
	s.Invalidate(tmpl.Name)
	saved, err := s.repo.Save(ctx, &tmpl)
	if err != nil {
		return domain.PromptTemplate{}, fmt.Errorf("save prompt %q: %w", tmpl.Name, err)
	}
	s.Invalidate(tmpl.Name)
	return *saved, nil
}

func (s *Store) cached(name string) (domain.PromptTemplate, bool) {
	if s.ttl <= 0 {
		return domain.PromptTemplate{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[name]
	if !ok {
		return domain.PromptTemplate{}, false
	}
	if !s.now().Before(e.expires) {
		delete(s.cache, name)
		return domain.PromptTemplate{}, false
	}
	return e.tmpl, true
}

func (s *Store) remember(tmpl domain.PromptTemplate) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.cache[tmpl.Name] = cacheEntry{tmpl: tmpl, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
}
