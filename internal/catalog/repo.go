package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Product struct {
	ID         string
	Name       string
	PriceCents int64
	CostCents  int64
	Stock      int
	Views      int
	SalesCount int
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var ErrProductNotFound = errors.New("product not found")

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price_cents, cost_cents, stock, views, sales_count, is_active, created_at, updated_at
		FROM products WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.CostCents, &p.Stock, &p.Views, &p.SalesCount, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, price_cents, cost_cents, stock, views, sales_count, is_active, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.CostCents, &p.Stock, &p.Views, &p.SalesCount, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// IncrementViews bumps the monotonic popularity counter.
func (r *Repo) IncrementViews(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `UPDATE products SET views = views + 1 WHERE id=$1`, id)
	return err
}
