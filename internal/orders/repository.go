package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wareflow/wareflow/internal/inventory"
	"github.com/wareflow/wareflow/internal/platform/db"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
// Lots() shares the same database transaction, so the allocator's FIFO walk
// and the order row mutation commit or roll back together.
type TxRepository interface {
	Lots() inventory.LotTx
	InsertOrder(ctx context.Context, order Order) (int64, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	UpdateOrder(ctx context.Context, order Order) error
	DeleteOrder(ctx context.Context, id int64) error
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Lots() inventory.LotTx {
	return inventory.NewLotTx(r.tx)
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("orders repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `id, user_id, product_id, COALESCE(vendor_id, 0), quantity, order_date, status, approval_status, last_updated`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status, approval string
	if err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.VendorID, &o.Quantity, &o.OrderDate, &status, &approval, &o.LastUpdated); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.ApprovalStatus = inventory.ApprovalStatus(approval)
	return o, nil
}

func (r *txRepository) InsertOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO orders (user_id, product_id, vendor_id, quantity, order_date, status, approval_status, last_updated)
VALUES ($1, $2, NULLIF($3, 0), $4, NOW(), $5, $6, NOW()) RETURNING id`,
		order.UserID, order.ProductID, order.VendorID, order.Quantity, string(order.Status), string(order.ApprovalStatus)).Scan(&id)
	return id, err
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (r *txRepository) UpdateOrder(ctx context.Context, order Order) error {
	tag, err := r.tx.Exec(ctx, `UPDATE orders
SET product_id=$2, vendor_id=NULLIF($3, 0), quantity=$4, status=$5, approval_status=$6, last_updated=NOW()
WHERE id=$1`, order.ID, order.ProductID, order.VendorID, order.Quantity, string(order.Status), string(order.ApprovalStatus))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOrder loads a single order outside a transaction.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// ListOrders returns orders matching the filter, newest first, with
// aggregate quantity totals over the filtered set.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, Totals, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var cancelled any
	if filter.Cancelled != nil {
		cancelled = *filter.Cancelled
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+`
FROM orders
WHERE ($1 = 0 OR id = $1)
  AND ($2 = 0 OR product_id = $2)
  AND ($3 = 0 OR vendor_id = $3)
  AND ($4 = 0 OR quantity = $4)
  AND ($5 = '' OR status = $5)
  AND ($6::boolean IS NULL OR (approval_status = 'CANCELLED') = $6)
ORDER BY id DESC
LIMIT $7 OFFSET $8`,
		filter.ID, filter.ProductID, filter.VendorID, filter.Quantity, string(filter.Status), cancelled, limit, filter.Offset)
	if err != nil {
		return nil, Totals{}, err
	}
	defer rows.Close()
	list := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, Totals{}, err
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, Totals{}, err
	}

	var totals Totals
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0),
       COALESCE(SUM(quantity) FILTER (WHERE approval_status <> 'CANCELLED'), 0),
       COALESCE(SUM(quantity) FILTER (WHERE approval_status = 'CANCELLED'), 0)
FROM orders
WHERE ($1 = 0 OR id = $1)
  AND ($2 = 0 OR product_id = $2)
  AND ($3 = 0 OR vendor_id = $3)
  AND ($4 = 0 OR quantity = $4)
  AND ($5 = '' OR status = $5)
  AND ($6::boolean IS NULL OR (approval_status = 'CANCELLED') = $6)`,
		filter.ID, filter.ProductID, filter.VendorID, filter.Quantity, string(filter.Status), cancelled).
		Scan(&totals.TotalQuantity, &totals.ActiveQuantity, &totals.CancelledQuantity)
	if err != nil {
		return nil, Totals{}, err
	}
	return list, totals, nil
}

// OutstandingByPair sums quantity held by non-cancelled orders per
// (product, vendor) pair. Used by the reconciliation job.
func (r *Repository) OutstandingByPair(ctx context.Context) (map[[2]int64]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, COALESCE(vendor_id, 0), SUM(quantity)
FROM orders
WHERE approval_status <> 'CANCELLED'
GROUP BY product_id, vendor_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[[2]int64]int64)
	for rows.Next() {
		var productID, vendorID, qty int64
		if err := rows.Scan(&productID, &vendorID, &qty); err != nil {
			return nil, err
		}
		result[[2]int64{productID, vendorID}] = qty
	}
	return result, rows.Err()
}
