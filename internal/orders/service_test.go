package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wareflow/wareflow/internal/inventory"
	"github.com/wareflow/wareflow/internal/shared"
)

// fakeLotStore is an in-memory inventory.LotTx, lots kept in insertion order.
type fakeLotStore struct {
	lots   []inventory.Lot
	nextID int64
}

func newFakeLotStore() *fakeLotStore {
	return &fakeLotStore{nextID: 1}
}

func (s *fakeLotStore) seed(productID, vendorID, qty int64) int64 {
	id, _ := s.InsertLot(context.Background(), inventory.Lot{
		ProductID:      productID,
		VendorID:       vendorID,
		StockQty:       qty,
		InwardQty:      qty,
		Status:         inventory.StatusInwardCompleted,
		ApprovalStatus: inventory.ApprovalApproved,
		InwardDate:     time.Now().UTC(),
	})
	return id
}

func (s *fakeLotStore) LotsForUpdate(ctx context.Context, productID, vendorID int64) ([]inventory.Lot, error) {
	out := []inventory.Lot{}
	for _, lot := range s.lots {
		if lot.ProductID == productID && (vendorID == 0 || lot.VendorID == vendorID) {
			out = append(out, lot)
		}
	}
	return out, nil
}

func (s *fakeLotStore) AdjustLotQty(ctx context.Context, lotID, delta int64) error {
	for i := range s.lots {
		if s.lots[i].ID == lotID {
			if s.lots[i].StockQty+delta < 0 {
				return inventory.ErrConcurrencyConflict
			}
			s.lots[i].StockQty += delta
			return nil
		}
	}
	return inventory.ErrNotFound
}

func (s *fakeLotStore) InsertLot(ctx context.Context, lot inventory.Lot) (int64, error) {
	lot.ID = s.nextID
	s.nextID++
	s.lots = append(s.lots, lot)
	return lot.ID, nil
}

func (s *fakeLotStore) qty(lotID int64) int64 {
	for _, lot := range s.lots {
		if lot.ID == lotID {
			return lot.StockQty
		}
	}
	return -1
}

func (s *fakeLotStore) total(productID, vendorID int64) int64 {
	var sum int64
	for _, lot := range s.lots {
		if lot.ProductID == productID && (vendorID == 0 || lot.VendorID == vendorID) {
			sum += lot.StockQty
		}
	}
	return sum
}

// fakeRepo is an in-memory RepositoryPort. Every WithTx snapshot-copies the
// state and restores it when the callback fails, mimicking a rollback.
type fakeRepo struct {
	store  *fakeLotStore
	orders map[int64]Order
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{store: newFakeLotStore(), orders: map[int64]Order{}, nextID: 1}
}

type fakeTx struct {
	repo *fakeRepo
}

func (t fakeTx) Lots() inventory.LotTx { return t.repo.store }

func (t fakeTx) InsertOrder(ctx context.Context, order Order) (int64, error) {
	order.ID = t.repo.nextID
	t.repo.nextID++
	order.OrderDate = time.Now().UTC()
	order.LastUpdated = order.OrderDate
	t.repo.orders[order.ID] = order
	return order.ID, nil
}

func (t fakeTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	order, ok := t.repo.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return order, nil
}

func (t fakeTx) UpdateOrder(ctx context.Context, order Order) error {
	if _, ok := t.repo.orders[order.ID]; !ok {
		return ErrNotFound
	}
	t.repo.orders[order.ID] = order
	return nil
}

func (t fakeTx) DeleteOrder(ctx context.Context, id int64) error {
	if _, ok := t.repo.orders[id]; !ok {
		return ErrNotFound
	}
	delete(t.repo.orders, id)
	return nil
}

func (m *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	lotsBefore := append([]inventory.Lot(nil), m.store.lots...)
	nextBefore := m.store.nextID
	ordersBefore := make(map[int64]Order, len(m.orders))
	for id, o := range m.orders {
		ordersBefore[id] = o
	}
	nextOrderBefore := m.nextID

	if err := fn(ctx, fakeTx{repo: m}); err != nil {
		m.store.lots = lotsBefore
		m.store.nextID = nextBefore
		m.orders = ordersBefore
		m.nextID = nextOrderBefore
		return err
	}
	return nil
}

func (m *fakeRepo) GetOrder(ctx context.Context, id int64) (Order, error) {
	return fakeTx{repo: m}.GetOrderForUpdate(ctx, id)
}

func (m *fakeRepo) ListOrders(ctx context.Context, filter ListFilter) ([]Order, Totals, error) {
	out := []Order{}
	var totals Totals
	for _, o := range m.orders {
		if filter.ProductID != 0 && o.ProductID != filter.ProductID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		cancelled := o.ApprovalStatus == inventory.ApprovalCancelled
		if filter.Cancelled != nil && cancelled != *filter.Cancelled {
			continue
		}
		out = append(out, o)
		totals.TotalQuantity += o.Quantity
		if cancelled {
			totals.CancelledQuantity += o.Quantity
		} else {
			totals.ActiveQuantity += o.Quantity
		}
	}
	return out, totals, nil
}

type fakeIdem struct {
	seen map[string]bool
}

func (f *fakeIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	f.seen[key] = true
	return nil
}

func (f *fakeIdem) Delete(ctx context.Context, key string) error {
	delete(f.seen, key)
	return nil
}

func TestCreateDebitsOldestLotsFirst(t *testing.T) {
	repo := newFakeRepo()
	l1 := repo.store.seed(10, 3, 5)
	l2 := repo.store.seed(10, 3, 5)
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 7})
	require.NoError(t, err)

	require.Equal(t, StatusRaised, order.Status)
	require.Equal(t, inventory.ApprovalPending, order.ApprovalStatus)
	require.EqualValues(t, 0, repo.store.qty(l1))
	require.EqualValues(t, 3, repo.store.qty(l2))
}

func TestCreateInsufficientStockWritesNothing(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 4)
	repo.store.seed(10, 3, 6)
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 11})

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.EqualValues(t, 10, insufficient.Available)
	require.EqualValues(t, 11, insufficient.Requested)
	require.Empty(t, repo.orders)
	require.EqualValues(t, 10, repo.store.total(10, 3))
}

func TestCreateReleasesIdempotencyKeyOnFailure(t *testing.T) {
	repo := newFakeRepo()
	idem := &fakeIdem{}
	svc := NewService(repo, nil, idem, nil)

	_, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 5, IdempotencyKey: "k1"})
	require.Error(t, err)
	require.False(t, idem.seen["k1"])
}

func TestCreateRejectsDuplicateIdempotencyKey(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 20)
	idem := &fakeIdem{}
	svc := NewService(repo, nil, idem, nil)

	_, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 5, IdempotencyKey: "k1"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 5, IdempotencyKey: "k1"})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.orders, 1)
	require.EqualValues(t, 15, repo.store.total(10, 3))
}

func TestEditSameShapeIsNetZero(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 20)
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 8})
	require.NoError(t, err)
	require.EqualValues(t, 12, repo.store.total(10, 3))

	_, err = svc.Edit(context.Background(), order.ID, EditInput{ProductID: 10, VendorID: 3, Quantity: 8})
	require.NoError(t, err)
	require.EqualValues(t, 12, repo.store.total(10, 3))
}

func TestEditQuantityChangeMovesTheDifference(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 20)
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 8})
	require.NoError(t, err)

	updated, err := svc.Edit(context.Background(), order.ID, EditInput{ProductID: 10, VendorID: 3, Quantity: 3})
	require.NoError(t, err)
	require.EqualValues(t, 3, updated.Quantity)
	require.EqualValues(t, 17, repo.store.total(10, 3))
}

func TestEditMovesHoldAcrossPairs(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 20)
	repo.store.seed(11, 4, 20)
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 8})
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), order.ID, EditInput{ProductID: 11, VendorID: 4, Quantity: 8})
	require.NoError(t, err)
	require.EqualValues(t, 20, repo.store.total(10, 3))
	require.EqualValues(t, 12, repo.store.total(11, 4))
}

func TestEditInsufficientStockRollsBack(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 10)
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 8})
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), order.ID, EditInput{ProductID: 10, VendorID: 3, Quantity: 15})

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	got, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.EqualValues(t, 8, got.Quantity)
	require.EqualValues(t, 2, repo.store.total(10, 3))
}

func TestEditStatusAfterApprovalRestrictedToAllowList(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 20)
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 5})
	require.NoError(t, err)

	approved := repo.orders[order.ID]
	approved.Status = StatusApproved
	approved.ApprovalStatus = inventory.ApprovalApproved
	repo.orders[order.ID] = approved

	_, err = svc.Edit(context.Background(), order.ID, EditInput{ProductID: 10, VendorID: 3, Quantity: 5, Status: StatusRaised})
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, string(StatusApproved), transition.From)
	require.Equal(t, string(StatusRaised), transition.To)

	updated, err := svc.Edit(context.Background(), order.ID, EditInput{ProductID: 10, VendorID: 3, Quantity: 5, Status: StatusShipped})
	require.NoError(t, err)
	require.Equal(t, StatusShipped, updated.Status)
}

func TestCancelRestoresStockExactlyOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 20)
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 6})
	require.NoError(t, err)
	require.EqualValues(t, 14, repo.store.total(10, 3))

	cancelled, err := svc.Cancel(context.Background(), order.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, cancelled.Status)
	require.Equal(t, inventory.ApprovalCancelled, cancelled.ApprovalStatus)
	require.EqualValues(t, 20, repo.store.total(10, 3))

	// Second cancel is a no-op, no double credit.
	again, err := svc.Cancel(context.Background(), order.ID, 1)
	require.NoError(t, err)
	require.Equal(t, inventory.ApprovalCancelled, again.ApprovalStatus)
	require.EqualValues(t, 20, repo.store.total(10, 3))
}

func TestDeleteRestoresHeldStock(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 20)
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 6})
	require.NoError(t, err)
	require.EqualValues(t, 14, repo.store.total(10, 3))

	require.NoError(t, svc.Delete(context.Background(), order.ID, 1))
	require.EqualValues(t, 20, repo.store.total(10, 3))
	require.Empty(t, repo.orders)
}

func TestDeleteCancelledOrderSkipsCredit(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 20)
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 6})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), order.ID, 1)
	require.NoError(t, err)
	require.EqualValues(t, 20, repo.store.total(10, 3))

	require.NoError(t, svc.Delete(context.Background(), order.ID, 1))
	require.EqualValues(t, 20, repo.store.total(10, 3))
}

func TestCancelUnknownOrder(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil, nil)
	_, err := svc.Cancel(context.Background(), 404, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil, nil)
	_, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestListTotalsSplitActiveAndCancelled(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 50)
	svc := NewService(repo, nil, nil, nil)

	first, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 10})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 15})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), first.ID, 1)
	require.NoError(t, err)

	orders, totals, err := svc.List(context.Background(), ListFilter{ProductID: 10})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.EqualValues(t, 25, totals.TotalQuantity)
	require.EqualValues(t, 15, totals.ActiveQuantity)
	require.EqualValues(t, 10, totals.CancelledQuantity)
}

func TestConservationAcrossLifecycle(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 9)
	repo.store.seed(10, 3, 7)
	svc := NewService(repo, nil, nil, nil)

	heldByOrders := func() int64 {
		var sum int64
		for _, o := range repo.orders {
			if o.ApprovalStatus != inventory.ApprovalCancelled {
				sum += o.Quantity
			}
		}
		return sum
	}
	check := func() {
		require.EqualValues(t, 16, repo.store.total(10, 3)+heldByOrders())
	}

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 11})
	require.NoError(t, err)
	check()

	_, err = svc.Edit(context.Background(), order.ID, EditInput{ProductID: 10, VendorID: 3, Quantity: 4})
	require.NoError(t, err)
	check()

	_, err = svc.Cancel(context.Background(), order.ID, 1)
	require.NoError(t, err)
	check()
}

func TestEditPropagatesTxFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.store.seed(10, 3, 20)
	svc := NewService(repo, nil, nil, nil)

	order, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 10, VendorID: 3, Quantity: 5})
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), order.ID, EditInput{ProductID: 10, VendorID: 3, Quantity: 5, Status: "NONSENSE"})
	require.ErrorIs(t, err, ErrInvalidStatus)

	got, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRaised, got.Status)
}
