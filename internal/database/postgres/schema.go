package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied on every boot. Statements are idempotent, so a restart
// against an existing database is a no-op.
const schema = `
CREATE TABLE IF NOT EXISTS label_orders (
  id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL DEFAULT '',
  recipient_name TEXT NOT NULL,
  recipient_email TEXT NOT NULL DEFAULT '',
  recipient_phone TEXT NOT NULL DEFAULT '',
  recipient_tax_id TEXT NOT NULL DEFAULT '',
  zip TEXT NOT NULL,
  address_line TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT '',
  product_name TEXT NOT NULL DEFAULT '',
  purchase_date TEXT NOT NULL DEFAULT '',
  service_code TEXT NOT NULL DEFAULT '',
  planned_count INT NOT NULL DEFAULT 1,
  issued_count INT NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  labels TEXT[] NOT NULL DEFAULT '{}',
  is_merged BOOLEAN NOT NULL DEFAULT FALSE,
  merged_transactions TEXT[] NOT NULL DEFAULT '{}',
  merged_products TEXT[] NOT NULL DEFAULT '{}',
  folded_into TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS label_orders_transaction_id_key
  ON label_orders (transaction_id) WHERE transaction_id <> '';
CREATE INDEX IF NOT EXISTS label_orders_folded_into_idx ON label_orders (folded_into);

CREATE TABLE IF NOT EXISTS label_records (
  id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL,
  etiqueta TEXT NOT NULL,
  recipient_name TEXT NOT NULL DEFAULT '',
  zip TEXT NOT NULL DEFAULT '',
  envio_numero INT NOT NULL,
  envios_total INT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS label_records_transaction_id_idx ON label_records (transaction_id);

CREATE TABLE IF NOT EXISTS mapping_templates (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL DEFAULT 'import',
  stage_id TEXT NOT NULL DEFAULT '',
  logo TEXT NOT NULL DEFAULT '',
  mapping JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the tables the console needs.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
