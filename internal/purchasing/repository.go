package purchasing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wareflow/wareflow/internal/inventory"
	"github.com/wareflow/wareflow/internal/platform/db"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error
	DeletePurchaseOrder(ctx context.Context, id int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("purchasing repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const poColumns = `id, user_id, product_id, COALESCE(vendor_id, 0), quantity, status, approval_status, created_at, updated_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status, approval string
	if err := row.Scan(&po.ID, &po.UserID, &po.ProductID, &po.VendorID, &po.Quantity, &status, &approval, &po.CreatedAt, &po.UpdatedAt); err != nil {
		return PurchaseOrder{}, err
	}
	po.Status = Status(status)
	po.ApprovalStatus = inventory.ApprovalStatus(approval)
	return po, nil
}

func (r *txRepository) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (user_id, product_id, vendor_id, quantity, status, approval_status, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, NOW(), NOW()) RETURNING id`,
		po.UserID, po.ProductID, po.VendorID, po.Quantity, string(po.Status), string(po.ApprovalStatus)).Scan(&id)
	return id, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanPO(r.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (r *txRepository) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders
SET product_id=$2, vendor_id=NULLIF($3, 0), quantity=$4, status=$5, approval_status=$6, updated_at=NOW()
WHERE id=$1`, po.ID, po.ProductID, po.VendorID, po.Quantity, string(po.Status), string(po.ApprovalStatus))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) DeletePurchaseOrder(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads a purchase order outside a transaction.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanPO(r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// List returns purchase orders matching the filter, newest first, with
// summed quantities per status over the filtered set.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, StatusSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+poColumns+`
FROM purchase_orders
WHERE ($1 = 0 OR id = $1)
  AND ($2 = 0 OR product_id = $2)
  AND ($3 = 0 OR vendor_id = $3)
  AND ($4 = '' OR status = $4)
ORDER BY id DESC
LIMIT $5 OFFSET $6`,
		filter.ID, filter.ProductID, filter.VendorID, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	list := []PurchaseOrder{}
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, nil, err
		}
		list = append(list, po)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	summary := StatusSummary{}
	sumRows, err := r.pool.Query(ctx, `SELECT status, SUM(quantity)
FROM purchase_orders
WHERE ($1 = 0 OR id = $1)
  AND ($2 = 0 OR product_id = $2)
  AND ($3 = 0 OR vendor_id = $3)
  AND ($4 = '' OR status = $4)
GROUP BY status`,
		filter.ID, filter.ProductID, filter.VendorID, string(filter.Status))
	if err != nil {
		return nil, nil, err
	}
	defer sumRows.Close()
	for sumRows.Next() {
		var status string
		var qty int64
		if err := sumRows.Scan(&status, &qty); err != nil {
			return nil, nil, err
		}
		summary[Status(status)] = qty
	}
	if err := sumRows.Err(); err != nil {
		return nil, nil, err
	}
	return list, summary, nil
}
