package approval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository applies approval transitions against entity tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Apply writes the approval gate and the derived status in one statement.
// Table and column names come from the ruleset, never from request input.
func (r *Repository) Apply(ctx context.Context, rule Rule, id int64, action Action, status string) error {
	query := fmt.Sprintf(`UPDATE %s SET approval_status=$1, status=$2, %s=NOW() WHERE id=$3`,
		rule.Table, rule.UpdatedAtColumn)
	tag, err := r.pool.Exec(ctx, query, string(action), status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PendingCount counts entities of one rule still waiting for a decision.
func (r *Repository) PendingCount(ctx context.Context, rule Rule) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE approval_status='PENDING'`, rule.Table)
	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
