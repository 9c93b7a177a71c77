package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memoryLotStore is an in-memory LotTx holding lots in insertion order.
type memoryLotStore struct {
	lots   []Lot
	nextID int64

	lockErr   error
	adjustErr error
}

func newMemoryLotStore(lots ...Lot) *memoryLotStore {
	s := &memoryLotStore{nextID: 1}
	for _, lot := range lots {
		_, _ = s.InsertLot(context.Background(), lot)
	}
	return s
}

func (s *memoryLotStore) LotsForUpdate(ctx context.Context, productID, vendorID int64) ([]Lot, error) {
	if s.lockErr != nil {
		return nil, s.lockErr
	}
	out := []Lot{}
	for _, lot := range s.lots {
		if lot.ProductID == productID && (vendorID == 0 || lot.VendorID == vendorID) {
			out = append(out, lot)
		}
	}
	return out, nil
}

func (s *memoryLotStore) AdjustLotQty(ctx context.Context, lotID, delta int64) error {
	if s.adjustErr != nil {
		return s.adjustErr
	}
	for i := range s.lots {
		if s.lots[i].ID == lotID {
			if s.lots[i].StockQty+delta < 0 {
				return ErrConcurrencyConflict
			}
			s.lots[i].StockQty += delta
			return nil
		}
	}
	return ErrNotFound
}

func (s *memoryLotStore) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	lot.ID = s.nextID
	s.nextID++
	s.lots = append(s.lots, lot)
	return lot.ID, nil
}

func (s *memoryLotStore) qty(lotID int64) int64 {
	for _, lot := range s.lots {
		if lot.ID == lotID {
			return lot.StockQty
		}
	}
	return -1
}

func (s *memoryLotStore) total(productID, vendorID int64) int64 {
	var sum int64
	for _, lot := range s.lots {
		if lot.ProductID == productID && (vendorID == 0 || lot.VendorID == vendorID) {
			sum += lot.StockQty
		}
	}
	return sum
}

func makeLot(productID, vendorID, qty int64) Lot {
	now := time.Now().UTC()
	return Lot{
		ProductID:      productID,
		VendorID:       vendorID,
		StockQty:       qty,
		InwardQty:      qty,
		Status:         StatusInwardCompleted,
		ApprovalStatus: ApprovalApproved,
		InwardDate:     now,
		LastUpdated:    now,
	}
}

func TestDebitWalksOldestFirst(t *testing.T) {
	store := newMemoryLotStore(makeLot(1, 7, 5), makeLot(1, 7, 5))
	var alloc Allocator

	err := alloc.Debit(context.Background(), store, 1, 7, 7)
	require.NoError(t, err)

	require.EqualValues(t, 0, store.qty(1))
	require.EqualValues(t, 3, store.qty(2))
}

func TestDebitExactDrain(t *testing.T) {
	store := newMemoryLotStore(makeLot(1, 7, 4), makeLot(1, 7, 6))
	var alloc Allocator

	err := alloc.Debit(context.Background(), store, 1, 7, 10)
	require.NoError(t, err)
	require.EqualValues(t, 0, store.total(1, 7))
}

func TestDebitSkipsEmptyLots(t *testing.T) {
	store := newMemoryLotStore(makeLot(1, 7, 0), makeLot(1, 7, 8))
	var alloc Allocator

	err := alloc.Debit(context.Background(), store, 1, 7, 3)
	require.NoError(t, err)
	require.EqualValues(t, 0, store.qty(1))
	require.EqualValues(t, 5, store.qty(2))
}

func TestDebitInsufficientStockLeavesLotsUntouched(t *testing.T) {
	store := newMemoryLotStore(makeLot(1, 7, 4), makeLot(1, 7, 6))
	var alloc Allocator

	err := alloc.Debit(context.Background(), store, 1, 7, 11)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.EqualValues(t, 10, insufficient.Available)
	require.EqualValues(t, 11, insufficient.Requested)
	require.EqualValues(t, 4, store.qty(1))
	require.EqualValues(t, 6, store.qty(2))
}

func TestDebitRejectsNonPositiveQuantity(t *testing.T) {
	store := newMemoryLotStore(makeLot(1, 7, 4))
	var alloc Allocator

	require.ErrorIs(t, alloc.Debit(context.Background(), store, 1, 7, 0), ErrInvalidQuantity)
	require.ErrorIs(t, alloc.Debit(context.Background(), store, 1, 7, -3), ErrInvalidQuantity)
	require.EqualValues(t, 4, store.qty(1))
}

func TestDebitPropagatesAdjustFailure(t *testing.T) {
	store := newMemoryLotStore(makeLot(1, 7, 4))
	store.adjustErr = errors.New("boom")
	var alloc Allocator

	require.Error(t, alloc.Debit(context.Background(), store, 1, 7, 2))
}

func TestCreditGoesToOldestLot(t *testing.T) {
	store := newMemoryLotStore(makeLot(1, 7, 2), makeLot(1, 7, 9))
	var alloc Allocator

	err := alloc.Credit(context.Background(), store, 1, 7, 5)
	require.NoError(t, err)
	require.EqualValues(t, 7, store.qty(1))
	require.EqualValues(t, 9, store.qty(2))
}

func TestCreditCreatesLotWhenNoneExist(t *testing.T) {
	store := newMemoryLotStore()
	var alloc Allocator

	err := alloc.Credit(context.Background(), store, 3, 9, 12)
	require.NoError(t, err)

	require.Len(t, store.lots, 1)
	lot := store.lots[0]
	require.EqualValues(t, 3, lot.ProductID)
	require.EqualValues(t, 9, lot.VendorID)
	require.EqualValues(t, 12, lot.StockQty)
	require.Equal(t, StatusInwardCompleted, lot.Status)
	require.Equal(t, ApprovalApproved, lot.ApprovalStatus)
}

func TestDebitThenCreditConservesTotal(t *testing.T) {
	store := newMemoryLotStore(makeLot(1, 7, 5), makeLot(1, 7, 5), makeLot(1, 7, 3))
	var alloc Allocator
	before := store.total(1, 7)

	require.NoError(t, alloc.Debit(context.Background(), store, 1, 7, 9))
	require.NoError(t, alloc.Credit(context.Background(), store, 1, 7, 9))

	require.Equal(t, before, store.total(1, 7))
}
