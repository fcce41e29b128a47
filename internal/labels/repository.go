package labels

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// recordChunkSize caps how many transaction ids a single record lookup may
// carry. Callers with more ids get their query split into batches.
const recordChunkSize = 30

// Record is one issued label persisted per original transaction id, so a
// re-uploaded spreadsheet seeds prior progress and the export always has one
// row per purchase, merged or not.
type Record struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	Etiqueta      string    `json:"etiqueta"`
	Recipient     string    `json:"destinatario"`
	Zip           string    `json:"cep"`
	EnvioNumero   int       `json:"envioNumero"`
	EnviosTotal   int       `json:"enviosTotal"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Repository persists fulfillment orders and their issued-label records.
type Repository interface {
	UpsertOrders(ctx context.Context, orders []*Order) error
	ListOrders(ctx context.Context) ([]*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	GetOrders(ctx context.Context, ids []string) ([]*Order, error)
	UpdateOrder(ctx context.Context, order *Order) error
	CreateMerged(ctx context.Context, merged *Order, foldedIDs []string) error
	DeleteMerged(ctx context.Context, mergedID string) error
	RecordsByTransactionIDs(ctx context.Context, transactionIDs []string) (map[string][]Record, error)
	SaveRecords(ctx context.Context, records []Record) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const orderColumns = `id, transaction_id, recipient_name, recipient_email, recipient_phone,
	recipient_tax_id, zip, address_line, city, state, product_name, purchase_date,
	service_code, planned_count, issued_count, status, labels, is_merged,
	merged_transactions, merged_products, folded_into, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.TransactionID, &o.Name, &o.Email, &o.Phone, &o.TaxID,
		&o.Zip, &o.AddressLine, &o.City, &o.State, &o.ProductName, &o.PurchaseDate,
		&o.ServiceCode, &o.PlannedCount, &o.IssuedCount, &status, &o.Labels,
		&o.IsMerged, &o.MergedTxIDs, &o.MergedNames, &o.FoldedInto,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

// UpsertOrders inserts new orders and refreshes recipient data on ones seen
// before. Counters, labels and merge state belong to this system, not the
// spreadsheet, so a conflict never touches them.
func (r *repository) UpsertOrders(ctx context.Context, orders []*Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, o := range orders {
		labels := o.Labels
		if labels == nil {
			labels = []string{}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO label_orders (
				id, transaction_id, recipient_name, recipient_email, recipient_phone,
				recipient_tax_id, zip, address_line, city, state, product_name,
				purchase_date, service_code, planned_count, issued_count, status, labels
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (transaction_id) WHERE transaction_id <> '' DO UPDATE SET
				recipient_name = EXCLUDED.recipient_name,
				recipient_email = EXCLUDED.recipient_email,
				recipient_phone = EXCLUDED.recipient_phone,
				recipient_tax_id = EXCLUDED.recipient_tax_id,
				zip = EXCLUDED.zip,
				address_line = EXCLUDED.address_line,
				city = EXCLUDED.city,
				state = EXCLUDED.state,
				product_name = EXCLUDED.product_name,
				purchase_date = EXCLUDED.purchase_date,
				updated_at = now()`,
			o.ID, o.TransactionID, o.Name, o.Email, o.Phone, o.TaxID, o.Zip,
			o.AddressLine, o.City, o.State, o.ProductName, o.PurchaseDate,
			o.ServiceCode, o.PlannedCount, o.IssuedCount, string(o.Status), labels)
		if err != nil {
			return fmt.Errorf("failed to upsert order %s: %w", o.TransactionID, err)
		}
	}

	return tx.Commit(ctx)
}

// ListOrders returns every visible order, newest first. Originals folded
// into a merge stay hidden until unmerged.
func (r *repository) ListOrders(ctx context.Context) ([]*Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM label_orders WHERE folded_into = '' ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *repository) GetOrder(ctx context.Context, id string) (*Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM label_orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *repository) GetOrders(ctx context.Context, ids []string) ([]*Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM label_orders WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *repository) UpdateOrder(ctx context.Context, order *Order) error {
	labels := order.Labels
	if labels == nil {
		labels = []string{}
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE label_orders SET
			planned_count = $2, issued_count = $3, status = $4, labels = $5,
			service_code = $6, updated_at = now()
		WHERE id = $1`,
		order.ID, order.PlannedCount, order.IssuedCount, string(order.Status),
		labels, order.ServiceCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CreateMerged stores the synthetic order and hides the originals behind it
// in one transaction.
func (r *repository) CreateMerged(ctx context.Context, merged *Order, foldedIDs []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO label_orders (
			id, transaction_id, recipient_name, recipient_email, recipient_phone,
			recipient_tax_id, zip, address_line, city, state, product_name,
			purchase_date, service_code, planned_count, issued_count, status, labels,
			is_merged, merged_transactions, merged_products
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		merged.ID, merged.TransactionID, merged.Name, merged.Email, merged.Phone,
		merged.TaxID, merged.Zip, merged.AddressLine, merged.City, merged.State,
		merged.ProductName, merged.PurchaseDate, merged.ServiceCode,
		merged.PlannedCount, merged.IssuedCount, string(merged.Status), []string{},
		merged.IsMerged, merged.MergedTxIDs, merged.MergedNames)
	if err != nil {
		return fmt.Errorf("failed to insert merged order: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE label_orders SET folded_into = $1, updated_at = now()
		WHERE id = ANY($2) AND folded_into = ''`,
		merged.ID, foldedIDs)
	if err != nil {
		return fmt.Errorf("failed to fold orders: %w", err)
	}
	if int(tag.RowsAffected()) != len(foldedIDs) {
		return fmt.Errorf("failed to fold orders: expected %d, folded %d", len(foldedIDs), tag.RowsAffected())
	}

	return tx.Commit(ctx)
}

// DeleteMerged removes the synthetic order and restores its originals.
func (r *repository) DeleteMerged(ctx context.Context, mergedID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE label_orders SET folded_into = '', updated_at = now()
		WHERE folded_into = $1`, mergedID); err != nil {
		return fmt.Errorf("failed to restore folded orders: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM label_orders WHERE id = $1 AND is_merged`, mergedID)
	if err != nil {
		return fmt.Errorf("failed to delete merged order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

// RecordsByTransactionIDs loads issued-label history grouped by transaction
// id. The id list is queried in batches of at most recordChunkSize entries.
func (r *repository) RecordsByTransactionIDs(ctx context.Context, transactionIDs []string) (map[string][]Record, error) {
	out := make(map[string][]Record)
	for start := 0; start < len(transactionIDs); start += recordChunkSize {
		chunk := transactionIDs[start:min(start+recordChunkSize, len(transactionIDs))]
		if err := r.collectRecords(ctx, chunk, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *repository) collectRecords(ctx context.Context, transactionIDs []string, out map[string][]Record) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, transaction_id, etiqueta, recipient_name, zip, envio_numero, envios_total, created_at
		FROM label_records WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, envio_numero`, transactionIDs)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.TransactionID, &rec.Etiqueta, &rec.Recipient,
			&rec.Zip, &rec.EnvioNumero, &rec.EnviosTotal, &rec.CreatedAt); err != nil {
			return err
		}
		out[rec.TransactionID] = append(out[rec.TransactionID], rec)
	}
	return rows.Err()
}

func (r *repository) SaveRecords(ctx context.Context, records []Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		if _, err := tx.Exec(ctx, `
			INSERT INTO label_records (id, transaction_id, etiqueta, recipient_name, zip, envio_numero, envios_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rec.ID, rec.TransactionID, rec.Etiqueta, rec.Recipient, rec.Zip,
			rec.EnvioNumero, rec.EnviosTotal); err != nil {
			return fmt.Errorf("failed to insert label record: %w", err)
		}
	}

	return tx.Commit(ctx)
}
