package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service resolves effective permissions from user_profiles.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// EffectivePermissions returns the merged permission set for a user: the
// role's baseline grants plus any per-user overrides flagged true in the
// permissions JSON column.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	var role string
	var overrides map[string]bool
	err := s.pool.QueryRow(ctx, `SELECT role, permissions FROM user_profiles WHERE user_id=$1`, userID).
		Scan(&role, &overrides)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	granted := make(map[string]struct{})
	for _, p := range rolePermissions[strings.ToLower(role)] {
		granted[p] = struct{}{}
	}
	for p, allowed := range overrides {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if allowed {
			granted[p] = struct{}{}
		} else {
			delete(granted, p)
		}
	}
	result := make([]string, 0, len(granted))
	for p := range granted {
		result = append(result, p)
	}
	return result, nil
}
