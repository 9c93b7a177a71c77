package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wareflow/wareflow/internal/platform/db"
)

// Repository persists inventory lots in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	LotTx
	GetLotForUpdate(ctx context.Context, id int64) (Lot, error)
	UpdateLot(ctx context.Context, lot Lot) error
	DeleteLot(ctx context.Context, id int64) error
}

type lotTx struct {
	tx pgx.Tx
}

// NewLotTx adapts a pgx transaction into a LotTx. Other modules (orders)
// call this so their allocator walk shares their transaction.
func NewLotTx(tx pgx.Tx) LotTx {
	return &lotTx{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &lotTx{tx: tx})
	})
}

const lotColumns = `id, product_id, COALESCE(vendor_id, 0), stock_quantity, inward_qty, status, approval_status, inward_date, last_updated`

func scanLot(row pgx.Row) (Lot, error) {
	var lot Lot
	var status, approval string
	if err := row.Scan(&lot.ID, &lot.ProductID, &lot.VendorID, &lot.StockQty, &lot.InwardQty, &status, &approval, &lot.InwardDate, &lot.LastUpdated); err != nil {
		return Lot{}, err
	}
	lot.Status = Status(status)
	lot.ApprovalStatus = ApprovalStatus(approval)
	return lot, nil
}

func (r *lotTx) LotsForUpdate(ctx context.Context, productID, vendorID int64) ([]Lot, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lotColumns+`
FROM inventory_lots
WHERE product_id=$1 AND vendor_id IS NOT DISTINCT FROM NULLIF($2, 0)
ORDER BY id ASC
FOR UPDATE`, productID, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lots []Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (r *lotTx) AdjustLotQty(ctx context.Context, lotID, delta int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_lots
SET stock_quantity = stock_quantity + $2, last_updated = NOW()
WHERE id=$1 AND stock_quantity + $2 >= 0`, lotID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrencyConflict
	}
	return nil
}

func (r *lotTx) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	inwardDate := lot.InwardDate
	if inwardDate.IsZero() {
		inwardDate = time.Now().UTC()
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_lots (product_id, vendor_id, stock_quantity, inward_qty, status, approval_status, inward_date, last_updated)
VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7, NOW()) RETURNING id`,
		lot.ProductID, lot.VendorID, lot.StockQty, lot.InwardQty, string(lot.Status), string(lot.ApprovalStatus), inwardDate).Scan(&id)
	return id, err
}

func (r *lotTx) GetLotForUpdate(ctx context.Context, id int64) (Lot, error) {
	lot, err := scanLot(r.tx.QueryRow(ctx, `SELECT `+lotColumns+` FROM inventory_lots WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lot{}, ErrNotFound
		}
		return Lot{}, err
	}
	return lot, nil
}

func (r *lotTx) UpdateLot(ctx context.Context, lot Lot) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_lots
SET product_id=$2, vendor_id=NULLIF($3, 0), stock_quantity=$4, status=$5, approval_status=$6, last_updated=NOW()
WHERE id=$1`, lot.ID, lot.ProductID, lot.VendorID, lot.StockQty, string(lot.Status), string(lot.ApprovalStatus))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *lotTx) DeleteLot(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM inventory_lots WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLot loads a single lot outside a transaction.
func (r *Repository) GetLot(ctx context.Context, id int64) (Lot, error) {
	lot, err := scanLot(r.pool.QueryRow(ctx, `SELECT `+lotColumns+` FROM inventory_lots WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lot{}, ErrNotFound
		}
		return Lot{}, err
	}
	return lot, nil
}

// ListLots returns lots matching the filter, newest movement first.
func (r *Repository) ListLots(ctx context.Context, filter LotFilter) ([]Lot, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+lotColumns+`
FROM inventory_lots
WHERE ($1 = 0 OR product_id = $1)
  AND ($2 = 0 OR vendor_id = $2)
  AND ($3 = '' OR status = $3)
ORDER BY last_updated DESC, id DESC
LIMIT $4 OFFSET $5`, filter.ProductID, filter.VendorID, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lots := []Lot{}
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// AvailableStock sums stock across the pair's lots.
func (r *Repository) AvailableStock(ctx context.Context, productID, vendorID int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(stock_quantity), 0)
FROM inventory_lots
WHERE product_id=$1 AND vendor_id IS NOT DISTINCT FROM NULLIF($2, 0)`, productID, vendorID).Scan(&total)
	return total, err
}

// VendorAvailability lists vendors holding stock for a product.
func (r *Repository) VendorAvailability(ctx context.Context, productID int64) ([]VendorStock, error) {
	rows, err := r.pool.Query(ctx, `SELECT vendor_id, SUM(stock_quantity) AS total
FROM inventory_lots
WHERE product_id=$1 AND vendor_id IS NOT NULL
GROUP BY vendor_id
HAVING SUM(stock_quantity) > 0
ORDER BY vendor_id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []VendorStock{}
	for rows.Next() {
		var vs VendorStock
		if err := rows.Scan(&vs.VendorID, &vs.Stock); err != nil {
			return nil, err
		}
		result = append(result, vs)
	}
	return result, rows.Err()
}
