package purchasing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wareflow/wareflow/internal/inventory"
	"github.com/wareflow/wareflow/internal/shared"
)

// fakeRepo is an in-memory RepositoryPort.
type fakeRepo struct {
	pos    map[int64]PurchaseOrder
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{pos: map[int64]PurchaseOrder{}, nextID: 1}
}

type fakeTx struct {
	repo *fakeRepo
}

func (t fakeTx) InsertPurchaseOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	po.ID = t.repo.nextID
	t.repo.nextID++
	po.CreatedAt = time.Now().UTC()
	po.UpdatedAt = po.CreatedAt
	t.repo.pos[po.ID] = po
	return po.ID, nil
}

func (t fakeTx) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := t.repo.pos[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, nil
}

func (t fakeTx) UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error {
	if _, ok := t.repo.pos[po.ID]; !ok {
		return ErrNotFound
	}
	t.repo.pos[po.ID] = po
	return nil
}

func (t fakeTx) DeletePurchaseOrder(ctx context.Context, id int64) error {
	if _, ok := t.repo.pos[id]; !ok {
		return ErrNotFound
	}
	delete(t.repo.pos, id)
	return nil
}

func (m *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, fakeTx{repo: m})
}

func (m *fakeRepo) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return fakeTx{repo: m}.GetForUpdate(ctx, id)
}

func (m *fakeRepo) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, StatusSummary, error) {
	out := []PurchaseOrder{}
	summary := StatusSummary{}
	for _, po := range m.pos {
		if filter.ProductID != 0 && po.ProductID != filter.ProductID {
			continue
		}
		if filter.Status != "" && po.Status != filter.Status {
			continue
		}
		out = append(out, po)
		summary[po.Status] += po.Quantity
	}
	return out, summary, nil
}

func approve(repo *fakeRepo, id int64) {
	po := repo.pos[id]
	po.Status = StatusApproved
	po.ApprovalStatus = inventory.ApprovalApproved
	repo.pos[id] = po
}

func TestCreateRaisesPendingPO(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	po, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 5, VendorID: 2, Quantity: 40})
	require.NoError(t, err)

	require.Equal(t, StatusRaised, po.Status)
	require.Equal(t, inventory.ApprovalPending, po.ApprovalStatus)
	require.EqualValues(t, 40, po.Quantity)
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	_, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 5, VendorID: 2, Quantity: -1})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestEditStatusBeforeApprovalRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	po, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 5, VendorID: 2, Quantity: 40})
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), po.ID, EditInput{ProductID: 5, VendorID: 2, Quantity: 40, Status: StatusShipped})
	require.ErrorIs(t, err, ErrNotApproved)
}

func TestEditAfterApprovalFollowsAllowList(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	po, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 5, VendorID: 2, Quantity: 40})
	require.NoError(t, err)
	approve(repo, po.ID)

	updated, err := svc.Edit(context.Background(), po.ID, EditInput{ProductID: 5, VendorID: 2, Quantity: 40, Status: StatusShipped})
	require.NoError(t, err)
	require.Equal(t, StatusShipped, updated.Status)

	for _, banned := range []Status{StatusRaised, StatusRejected} {
		_, err = svc.Edit(context.Background(), po.ID, EditInput{ProductID: 5, VendorID: 2, Quantity: 40, Status: banned})
		var transition *shared.InvalidTransitionError
		require.ErrorAs(t, err, &transition)
		require.Equal(t, string(banned), transition.To)
	}
}

func TestEditFieldsWithoutStatusChange(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	po, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 5, VendorID: 2, Quantity: 40})
	require.NoError(t, err)

	updated, err := svc.Edit(context.Background(), po.ID, EditInput{ProductID: 6, VendorID: 3, Quantity: 25})
	require.NoError(t, err)
	require.EqualValues(t, 6, updated.ProductID)
	require.EqualValues(t, 3, updated.VendorID)
	require.EqualValues(t, 25, updated.Quantity)
	require.Equal(t, StatusRaised, updated.Status)
}

func TestRequestApprovalResetsGate(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	po, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 5, VendorID: 2, Quantity: 40})
	require.NoError(t, err)
	approve(repo, po.ID)

	updated, err := svc.RequestApproval(context.Background(), po.ID, 1)
	require.NoError(t, err)
	require.Equal(t, inventory.ApprovalPending, updated.ApprovalStatus)
	require.Equal(t, StatusRaised, updated.Status)
}

func TestDeletePurchaseOrder(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	po, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 5, VendorID: 2, Quantity: 40})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), po.ID, 1))
	require.ErrorIs(t, svc.Delete(context.Background(), po.ID, 1), ErrNotFound)
}

func TestListSummarySumsPerStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	first, err := svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 5, VendorID: 2, Quantity: 40})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{UserID: 1, ProductID: 5, VendorID: 2, Quantity: 10})
	require.NoError(t, err)
	approve(repo, first.ID)

	pos, summary, err := svc.List(context.Background(), ListFilter{ProductID: 5})
	require.NoError(t, err)
	require.Len(t, pos, 2)
	require.EqualValues(t, 40, summary[StatusApproved])
	require.EqualValues(t, 10, summary[StatusRaised])
}
