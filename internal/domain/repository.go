package domain

import (
	"context"
	"time"
)

// SessionRepository persists sessions. Update is a compare-and-swap on
// Version and returns ErrConflict when the row moved on.
type SessionRepository interface {
	// CreateWithTask inserts a session and queues its first stage in one
	// statement. An existing (email, url) pair returns the stored session
	// with created=false and queues nothing.
	CreateWithTask(ctx context.Context, s *Session, first Stage) (*Session, bool, error)
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) (*Session, error)
	ListStale(ctx context.Context, statuses []Status, before time.Time, limit int) ([]Session, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
}

// ProductRepository reads the merchandise catalog.
type ProductRepository interface {
	ListActive(ctx context.Context) ([]Product, error)
	List(ctx context.Context) ([]Product, error)
	Upsert(ctx context.Context, p *Product) (*Product, error)
}

// PromptRepository stores prompt templates.
type PromptRepository interface {
	Get(ctx context.Context, name string) (*PromptTemplate, error)
	List(ctx context.Context) ([]PromptTemplate, error)
	Save(ctx context.Context, tmpl *PromptTemplate) (*PromptTemplate, error)
}

// TaskQueue is the durable stage queue.
type TaskQueue interface {
	Enqueue(ctx context.Context, sessionID string, stage Stage, regenerate bool) (*Task, error)
	Claim(ctx context.Context, lease time.Duration) (*Task, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, reason string) error
	// Release returns a claimed task to the queue, e.g. on shutdown.
	Release(ctx context.Context, id string) error
}
