package repo

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"brandmerch/internal/domain"
	"brandmerch/internal/infra"
	"brandmerch/internal/sqlinline"
)

// ProductRepositoryPG implements domain.ProductRepository.
type ProductRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewProductRepository(sql infra.SQLExecutor) *ProductRepositoryPG {
	return &ProductRepositoryPG{sql: sql}
}

// ListActive returns the non-archived catalog in display order.
func (r *ProductRepositoryPG) ListActive(ctx context.Context) ([]domain.Product, error) {
	return r.list(ctx, sqlinline.QListActiveProducts)
}

func (r *ProductRepositoryPG) List(ctx context.Context) ([]domain.Product, error) {
	return r.list(ctx, sqlinline.QListProducts)
}

// Upsert inserts p, or replaces the row with the same id.
func (r *ProductRepositoryPG) Upsert(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil, domain.ErrValidation
	}
	zones := p.PrintZones
	if zones == nil {
		zones = []string{}
	}
	return scanProduct(r.sql.QueryRow(ctx, sqlinline.QUpsertProduct,
		p.ID,
		strings.TrimSpace(p.Name),
		p.BaseImageURL,
		zones,
		p.MaxColors,
		p.Constraints,
		p.Archived,
		p.SortOrder,
	))
}

func (r *ProductRepositoryPG) list(ctx context.Context, query string) ([]domain.Product, error) {
	rows, err := r.sql.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.BaseImageURL,
		&p.PrintZones,
		&p.MaxColors,
		&p.Constraints,
		&p.Archived,
		&p.SortOrder,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ domain.ProductRepository = (*ProductRepositoryPG)(nil)
