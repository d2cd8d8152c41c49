package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the core tables if they do not exist yet. Monetary columns
// are integer cents; promo discount values are NUMERIC because percent rates
// are not cent amounts.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		price_cents BIGINT NOT NULL,
		cost_cents BIGINT NOT NULL DEFAULT 0,
		stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		views INT NOT NULL DEFAULT 0,
		sales_count INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cart (
		id BIGSERIAL PRIMARY KEY,
		user_id UUID NOT NULL,
		product_id UUID NOT NULL REFERENCES products(id),
		quantity INT NOT NULL CHECK (quantity >= 1),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		external_id TEXT UNIQUE NOT NULL,
		user_id UUID NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_status TEXT NOT NULL DEFAULT 'pending',
		payment_ref TEXT,
		subtotal_cents BIGINT NOT NULL,
		promo_discount_cents BIGINT NOT NULL DEFAULT 0,
		delivery_cost_cents BIGINT NOT NULL DEFAULT 0,
		total_cents BIGINT NOT NULL,
		delivery_address TEXT,
		delivery_phone TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		product_id UUID NOT NULL REFERENCES products(id),
		quantity INT NOT NULL CHECK (quantity >= 1),
		price_cents BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_reservations (
		id BIGSERIAL PRIMARY KEY,
		product_id UUID NOT NULL REFERENCES products(id),
		order_id UUID NOT NULL REFERENCES orders(id),
		quantity INT NOT NULL CHECK (quantity >= 1),
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (order_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_movements (
		id BIGSERIAL PRIMARY KEY,
		product_id UUID NOT NULL REFERENCES products(id),
		movement_type TEXT NOT NULL,
		quantity_change INT NOT NULL,
		old_quantity INT NOT NULL,
		new_quantity INT NOT NULL,
		supplier_id UUID,
		cost_cents BIGINT,
		reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS promo_codes (
		id UUID PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		discount_type TEXT NOT NULL,
		discount_value NUMERIC(12,2) NOT NULL,
		min_order_cents BIGINT NOT NULL DEFAULT 0,
		max_uses INT,
		expires_at TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS promo_uses (
		id BIGSERIAL PRIMARY KEY,
		promo_code_id UUID NOT NULL REFERENCES promo_codes(id),
		user_id UUID NOT NULL,
		order_id UUID NOT NULL REFERENCES orders(id),
		discount_cents BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS loyalty_points (
		user_id UUID PRIMARY KEY,
		current_points BIGINT NOT NULL DEFAULT 0 CHECK (current_points >= 0),
		total_earned BIGINT NOT NULL DEFAULT 0,
		current_tier TEXT NOT NULL DEFAULT 'Bronze',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS shipments (
		id BIGSERIAL PRIMARY KEY,
		order_id UUID UNIQUE NOT NULL REFERENCES orders(id),
		tracking_number TEXT UNIQUE NOT NULL,
		status TEXT NOT NULL DEFAULT 'created',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_product ON stock_reservations(product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_expiry ON stock_reservations(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_product ON inventory_movements(product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_promo_uses_code ON promo_uses(promo_code_id)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
