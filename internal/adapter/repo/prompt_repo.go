package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"brandmerch/internal/domain"
	"brandmerch/internal/infra"
	"brandmerch/internal/sqlinline"
)

// PromptRepositoryPG implements domain.PromptRepository.
type PromptRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewPromptRepository(sql infra.SQLExecutor) *PromptRepositoryPG {
	return &PromptRepositoryPG{sql: sql}
}

// Get returns domain.ErrNotFound when no row overrides the built-in default.
func (r *PromptRepositoryPG) Get(ctx context.Context, name string) (*domain.PromptTemplate, error) {
	t, err := scanPrompt(r.sql.QueryRow(ctx, sqlinline.QSelectPromptTemplate, name))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *PromptRepositoryPG) List(ctx context.Context) ([]domain.PromptTemplate, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListPromptTemplates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PromptTemplate
	for rows.Next() {
		t, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Save upserts the template; the stored version is bumped on overwrite.
func (r *PromptRepositoryPG) Save(ctx context.Context, tmpl *domain.PromptTemplate) (*domain.PromptTemplate, error) {
	if tmpl == nil || tmpl.Name == "" {
		return nil, domain.ErrValidation
	}
	version := tmpl.Version
	if version <= 0 {
		version = 1
	}
	vars := tmpl.Variables
	if vars == nil {
		vars = []string{}
	}
	return scanPrompt(r.sql.QueryRow(ctx, sqlinline.QSavePromptTemplate, tmpl.Name, version, tmpl.Template, vars))
}

func scanPrompt(row pgx.Row) (*domain.PromptTemplate, error) {
	var t domain.PromptTemplate
	if err := row.Scan(&t.Name, &t.Version, &t.Template, &t.Variables, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

var _ domain.PromptRepository = (*PromptRepositoryPG)(nil)
