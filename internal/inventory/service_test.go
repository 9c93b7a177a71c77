package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wareflow/wareflow/internal/shared"
)

// memoryRepo is an in-memory RepositoryPort backed by memoryLotStore.
type memoryRepo struct {
	store *memoryLotStore

	txErr error
}

func newMemoryRepo(lots ...Lot) *memoryRepo {
	return &memoryRepo{store: newMemoryLotStore(lots...)}
}

type memoryTx struct {
	*memoryLotStore
}

func (t memoryTx) GetLotForUpdate(ctx context.Context, id int64) (Lot, error) {
	for _, lot := range t.lots {
		if lot.ID == id {
			return lot, nil
		}
	}
	return Lot{}, ErrNotFound
}

func (t memoryTx) UpdateLot(ctx context.Context, lot Lot) error {
	for i := range t.lots {
		if t.lots[i].ID == lot.ID {
			t.lots[i] = lot
			return nil
		}
	}
	return ErrNotFound
}

func (t memoryTx) DeleteLot(ctx context.Context, id int64) error {
	for i := range t.lots {
		if t.lots[i].ID == id {
			t.lots = append(t.lots[:i], t.lots[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	return fn(ctx, memoryTx{m.store})
}

func (m *memoryRepo) GetLot(ctx context.Context, id int64) (Lot, error) {
	return memoryTx{m.store}.GetLotForUpdate(ctx, id)
}

func (m *memoryRepo) ListLots(ctx context.Context, filter LotFilter) ([]Lot, error) {
	out := []Lot{}
	for _, lot := range m.store.lots {
		if filter.ProductID != 0 && lot.ProductID != filter.ProductID {
			continue
		}
		if filter.VendorID != 0 && lot.VendorID != filter.VendorID {
			continue
		}
		if filter.Status != "" && lot.Status != filter.Status {
			continue
		}
		out = append(out, lot)
	}
	return out, nil
}

func (m *memoryRepo) AvailableStock(ctx context.Context, productID, vendorID int64) (int64, error) {
	return m.store.total(productID, vendorID), nil
}

func (m *memoryRepo) VendorAvailability(ctx context.Context, productID int64) ([]VendorStock, error) {
	byVendor := map[int64]int64{}
	order := []int64{}
	for _, lot := range m.store.lots {
		if lot.ProductID != productID || lot.StockQty <= 0 {
			continue
		}
		if _, seen := byVendor[lot.VendorID]; !seen {
			order = append(order, lot.VendorID)
		}
		byVendor[lot.VendorID] += lot.StockQty
	}
	out := []VendorStock{}
	for _, vendorID := range order {
		out = append(out, VendorStock{VendorID: vendorID, Stock: byVendor[vendorID]})
	}
	return out, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestCreateInwardReservesFullQuantity(t *testing.T) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, audit, nil)

	lot, err := svc.CreateInward(context.Background(), InwardInput{
		ProductID: 1, VendorID: 7, Quantity: 25, ActorID: 42,
	})
	require.NoError(t, err)

	require.EqualValues(t, 25, lot.StockQty)
	require.EqualValues(t, 25, lot.InwardQty)
	require.Equal(t, StatusInwardRequested, lot.Status)
	require.Equal(t, ApprovalPending, lot.ApprovalStatus)
	require.EqualValues(t, 25, repo.store.total(1, 7))

	require.Len(t, audit.logs, 1)
	require.Equal(t, "inventory:inward", audit.logs[0].Action)
	require.EqualValues(t, 42, audit.logs[0].ActorID)
}

func TestCreateInwardRejectsBadInput(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.CreateInward(context.Background(), InwardInput{ProductID: 1, VendorID: 7, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateInward(context.Background(), InwardInput{ProductID: 1, VendorID: 7, Quantity: 5, Status: "BOGUS"})
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.CreateInward(context.Background(), InwardInput{VendorID: 7, Quantity: 5})
	require.Error(t, err)
}

func TestEditInwardPartialUpdate(t *testing.T) {
	repo := newMemoryRepo(makeLot(1, 7, 10))
	svc := NewService(repo, nil, nil)

	qty := int64(4)
	lot, err := svc.EditInward(context.Background(), 1, EditInput{StockQty: &qty, Status: StatusInwardApproved})
	require.NoError(t, err)

	require.EqualValues(t, 4, lot.StockQty)
	require.Equal(t, StatusInwardApproved, lot.Status)
	require.EqualValues(t, 1, lot.ProductID)
	require.EqualValues(t, 7, lot.VendorID)
}

func TestEditInwardUnknownLot(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	qty := int64(4)
	_, err := svc.EditInward(context.Background(), 99, EditInput{StockQty: &qty})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteInwardRemovesLot(t *testing.T) {
	repo := newMemoryRepo(makeLot(1, 7, 10))
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.DeleteInward(context.Background(), 1, 42))
	require.EqualValues(t, 0, repo.store.total(1, 7))

	require.ErrorIs(t, svc.DeleteInward(context.Background(), 1, 42), ErrNotFound)
}

func TestVendorAvailabilitySkipsDrainedLots(t *testing.T) {
	repo := newMemoryRepo(makeLot(1, 7, 0), makeLot(1, 8, 3), makeLot(1, 8, 2))
	svc := NewService(repo, nil, nil)

	vendors, err := svc.VendorAvailability(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []VendorStock{{VendorID: 8, Stock: 5}}, vendors)
}
