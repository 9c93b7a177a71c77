package inventory

import (
	"context"
	"time"
)

// LotTx exposes the lot mutations available inside a transaction. The pgx
// implementation locks rows and applies relative deltas; order and inward
// services share it so their entity writes and lot walks commit atomically.
type LotTx interface {
	// LotsForUpdate returns all lots of the pair ordered by id ascending
	// (insertion order), locked for the duration of the transaction.
	LotsForUpdate(ctx context.Context, productID, vendorID int64) ([]Lot, error)
	// AdjustLotQty applies stock_quantity = stock_quantity + delta, refusing
	// any delta that would drive the quantity negative.
	AdjustLotQty(ctx context.Context, lotID, delta int64) error
	// InsertLot persists a new lot and returns its id.
	InsertLot(ctx context.Context, lot Lot) (int64, error)
}

// Allocator walks lots in FIFO order to satisfy debits and credits. It never
// opens transactions itself; callers pass the LotTx of their own transaction
// so a failed entity write rolls the lot deltas back too.
type Allocator struct{}

// Debit consumes qty from the pair's lots, oldest first. The availability
// check and the per-lot deltas run under the same row locks, so concurrent
// debits against one pair serialize rather than over-allocate.
func (Allocator) Debit(ctx context.Context, tx LotTx, productID, vendorID, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	lots, err := tx.LotsForUpdate(ctx, productID, vendorID)
	if err != nil {
		return err
	}
	var available int64
	for _, lot := range lots {
		available += lot.StockQty
	}
	if available < qty {
		return &InsufficientStockError{Available: available, Requested: qty}
	}
	remaining := qty
	for _, lot := range lots {
		if lot.StockQty <= 0 {
			continue
		}
		take := min(remaining, lot.StockQty)
		if err := tx.AdjustLotQty(ctx, lot.ID, -take); err != nil {
			return err
		}
		remaining -= take
		if remaining == 0 {
			break
		}
	}
	if remaining > 0 {
		// Post-condition re-check; unreachable while LotsForUpdate holds the
		// locks, but aborts the transaction instead of under-debiting.
		return ErrConcurrencyConflict
	}
	return nil
}

// Credit restores qty to the pair's lots, oldest first. Lots have no capacity
// ceiling, so the oldest lot receives the full restoration. When the pair has
// no lots left, a new lot is created to hold the quantity rather than
// dropping it.
func (Allocator) Credit(ctx context.Context, tx LotTx, productID, vendorID, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	lots, err := tx.LotsForUpdate(ctx, productID, vendorID)
	if err != nil {
		return err
	}
	if len(lots) == 0 {
		now := time.Now().UTC()
		_, err := tx.InsertLot(ctx, Lot{
			ProductID:      productID,
			VendorID:       vendorID,
			StockQty:       qty,
			InwardQty:      qty,
			Status:         StatusInwardCompleted,
			ApprovalStatus: ApprovalApproved,
			InwardDate:     now,
			LastUpdated:    now,
		})
		return err
	}
	return tx.AdjustLotQty(ctx, lots[0].ID, qty)
}
