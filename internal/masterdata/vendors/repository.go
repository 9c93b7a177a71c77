package vendors

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error)
	Get(ctx context.Context, id int64) (Vendor, error)
	Create(ctx context.Context, vendor Vendor) (Vendor, error)
	Update(ctx context.Context, id int64, vendor Vendor) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	query := `SELECT id, code, name, address, created_at, updated_at FROM vendors WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM vendors WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if filters.SortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch filters.SortBy {
	case "code":
		query += " ORDER BY code " + dir
	case "created_at":
		query += " ORDER BY created_at " + dir
	default:
		query += " ORDER BY name " + dir
	}

	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	offset := (filters.Page - 1) * filters.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Code, &v.Name, &v.Address, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, 0, err
		}
		vendors = append(vendors, v)
	}
	return vendors, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Vendor, error) {
	var v Vendor
	err := r.db.QueryRow(ctx, `SELECT id, code, name, address, created_at, updated_at FROM vendors WHERE id = $1`, id).
		Scan(&v.ID, &v.Code, &v.Name, &v.Address, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, shared.ErrNotFound
	}
	return v, err
}

func (r *repository) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO vendors (code, name, address, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		vendor.Code, vendor.Name, vendor.Address, now, now).Scan(&vendor.ID)
	if err != nil {
		return Vendor{}, shared.TranslateDBError(err)
	}
	vendor.CreatedAt = now
	vendor.UpdatedAt = now
	return vendor, nil
}

func (r *repository) Update(ctx context.Context, id int64, vendor Vendor) error {
	tag, err := r.db.Exec(ctx, `UPDATE vendors SET code = $1, name = $2, address = $3, updated_at = $4 WHERE id = $5`,
		vendor.Code, vendor.Name, vendor.Address, time.Now(), id)
	if err != nil {
		return shared.TranslateDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vendors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
