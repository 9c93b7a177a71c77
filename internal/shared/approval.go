package shared

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalAction enumerates approval history actions.
type ApprovalAction string

const (
	// ApprovalSubmit marks the entity entering the approval queue.
	ApprovalSubmit ApprovalAction = "SUBMIT"
	// ApprovalApprove marks an approval decision.
	ApprovalApprove ApprovalAction = "APPROVE"
	// ApprovalCancel marks a cancellation decision.
	ApprovalCancel ApprovalAction = "CANCEL"
	// ApprovalReset marks a re-submission after a prior decision.
	ApprovalReset ApprovalAction = "RESET"
)

// approvalNamespace seeds deterministic refs so one (kind, id) pair always
// maps to the same history stream.
var approvalNamespace = uuid.MustParse("3f1c0c6e-9b5a-4f62-8a1d-6d3f2f4b7a10")

// ApprovalRef derives the stable history ref for an entity.
func ApprovalRef(kind string, id int64) uuid.UUID {
	return uuid.NewSHA1(approvalNamespace, []byte(kind+"/"+strconv.FormatInt(id, 10)))
}

// ApprovalEntry is one approval history record.
type ApprovalEntry struct {
	ID      int64
	Kind    string
	RefID   uuid.UUID
	ActorID int64
	Action  ApprovalAction
	Note    string
	At      time.Time
}

// ApprovalHistory persists approval decisions per entity.
type ApprovalHistory struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalHistory constructs ApprovalHistory.
func NewApprovalHistory(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalHistory {
	return &ApprovalHistory{pool: pool, logger: logger}
}

// Record writes one history entry. A zero At defaults to the database clock.
func (h *ApprovalHistory) Record(ctx context.Context, entry ApprovalEntry) error {
	if h == nil {
		return errors.New("approval history not initialised")
	}
	if entry.Kind == "" {
		return errors.New("approval kind required")
	}
	if entry.RefID == uuid.Nil {
		return errors.New("approval ref id required")
	}
	if entry.Action == "" {
		return errors.New("approval action required")
	}
	var at any
	if !entry.At.IsZero() {
		at = entry.At
	}
	_, err := h.pool.Exec(ctx, `INSERT INTO approvals (kind, ref_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, entry.Kind, entry.RefID, entry.ActorID, string(entry.Action), entry.Note, at)
	if err != nil {
		h.logger.Error("record approval", slog.Any("error", err))
		return err
	}
	return nil
}

// List returns the history stream for one entity, oldest first.
func (h *ApprovalHistory) List(ctx context.Context, kind string, ref uuid.UUID) ([]ApprovalEntry, error) {
	if h == nil {
		return nil, errors.New("approval history not initialised")
	}
	rows, err := h.pool.Query(ctx, `SELECT id, kind, ref_id, actor_id, action, note, at
FROM approvals WHERE kind=$1 AND ref_id=$2 ORDER BY at ASC, id ASC`, kind, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []ApprovalEntry
	for rows.Next() {
		var e ApprovalEntry
		var action string
		if err := rows.Scan(&e.ID, &e.Kind, &e.RefID, &e.ActorID, &action, &e.Note, &e.At); err != nil {
			return nil, err
		}
		e.Action = ApprovalAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// EnsureSubmit records a SUBMIT entry for the entity if none exists yet, so
// every decision stream starts with the request itself.
func (h *ApprovalHistory) EnsureSubmit(ctx context.Context, kind string, ref uuid.UUID, actorID int64, note string) error {
	if h == nil {
		return errors.New("approval history not initialised")
	}
	var exists bool
	err := h.pool.QueryRow(ctx, `SELECT true FROM approvals WHERE kind=$1 AND ref_id=$2 AND action='SUBMIT' LIMIT 1`, kind, ref).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return h.Record(ctx, ApprovalEntry{Kind: kind, RefID: ref, ActorID: actorID, Action: ApprovalSubmit, Note: note})
		}
		return err
	}
	return nil
}
