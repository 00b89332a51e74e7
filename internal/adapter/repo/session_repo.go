package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"brandmerch/internal/domain"
	"brandmerch/internal/infra"
	"brandmerch/internal/sqlinline"
)

// SessionRepositoryPG implements domain.SessionRepository.
type SessionRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewSessionRepository creates a session repository backed by PostgreSQL.
func NewSessionRepository(sql infra.SQLExecutor) *SessionRepositoryPG {
	return &SessionRepositoryPG{sql: sql}
}

// CreateWithTask inserts the session and its first task, or returns the
// existing session for the same (email, url).
func (r *SessionRepositoryPG) CreateWithTask(ctx context.Context, s *domain.Session, first domain.Stage) (*domain.Session, bool, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertSessionWithTask, s.Email, s.URL, string(domain.StatusScraping), string(first))
	var created bool
	out, err := scanSession(row, &created)
	if err == nil {
		return out, created, nil
	}
	if !infra.IsNoRows(err) {
		return nil, false, err
	}
	// A concurrent insert of the same pair committed after this statement's
	// snapshot; it is visible to a fresh statement.
	existing, err := scanSession(r.sql.QueryRow(ctx, sqlinline.QSelectSessionByEmailURL, s.Email, s.URL))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, false, domain.ErrConflict
		}
		return nil, false, err
	}
	return existing, false, nil
}

// Get fetches a session by id.
func (r *SessionRepositoryPG) Get(ctx context.Context, id string) (*domain.Session, error) {
	s, err := scanSession(r.sql.QueryRow(ctx, sqlinline.QSelectSessionByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// Update writes s if its Version still matches the stored row.
func (r *SessionRepositoryPG) Update(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	var scraped []byte
	if s.ScrapedData != nil {
		raw, err := json.Marshal(s.ScrapedData)
		if err != nil {
			return nil, fmt.Errorf("encode scraped data: %w", err)
		}
		scraped = raw
	}
	images := s.ProductImages
	if images == nil {
		images = []domain.ProductImage{}
	}
	rawImages, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encode product images: %w", err)
	}

	out, err := scanSession(r.sql.QueryRow(ctx, sqlinline.QUpdateSessionVersioned,
		s.ID,
		s.Version,
		string(s.Status),
		scraped,
		s.Concept,
		s.MotifDescription,
		s.MotifImageURL,
		rawImages,
		s.ErrorMessage,
	))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return out, nil
}

// ListStale returns sessions parked in one of statuses since before and not
// yet reminded about that stall.
func (r *SessionRepositoryPG) ListStale(ctx context.Context, statuses []domain.Status, before time.Time, limit int) ([]domain.Session, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListStaleSessions, names, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// MarkNotified stamps the reminder time without touching updated_at.
func (r *SessionRepositoryPG) MarkNotified(ctx context.Context, id string, at time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkSessionNotified, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSession(row pgx.Row, extra ...any) (*domain.Session, error) {
	var (
		s       domain.Session
		status  string
		scraped []byte
		images  []byte
	)
	dest := []any{
		&s.ID,
		&s.Email,
		&s.URL,
		&status,
		&scraped,
		&s.Concept,
		&s.MotifDescription,
		&s.MotifImageURL,
		&images,
		&s.ErrorMessage,
		&s.Version,
		&s.LastNotifiedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	s.Status = st
	if len(scraped) > 0 && string(scraped) != "null" {
		var data domain.ScrapedData
		if err := json.Unmarshal(scraped, &data); err != nil {
			return nil, fmt.Errorf("decode scraped data: %w", err)
		}
		s.ScrapedData = &data
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &s.ProductImages); err != nil {
			return nil, fmt.Errorf("decode product images: %w", err)
		}
	}
	return &s, nil
}

var _ domain.SessionRepository = (*SessionRepositoryPG)(nil)
