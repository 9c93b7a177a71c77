package products

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

type mockRepository struct {
	products map[int64]Product
	byCode   map[string]int64
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{products: map[int64]Product{}, byCode: map[string]int64{}, nextID: 1}
}

func (m *mockRepository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	out := []Product{}
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) Create(ctx context.Context, product Product) (Product, error) {
	if _, dup := m.byCode[product.Code]; dup {
		return Product{}, shared.ErrDuplicate
	}
	product.ID = m.nextID
	m.nextID++
	m.products[product.ID] = product
	m.byCode[product.Code] = product.ID
	return product, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, product Product) error {
	if _, ok := m.products[id]; !ok {
		return shared.ErrNotFound
	}
	product.ID = id
	m.products[id] = product
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func TestCreateProduct(t *testing.T) {
	svc := NewService(newMockRepository())

	p, err := svc.Create(context.Background(), Product{
		Code:       "SKU-001",
		Name:       "Pallet Jack",
		CategoryID: 1,
		Price:      decimal.RequireFromString("149.90"),
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, p.ID)
}

func TestCreateProductValidation(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.Create(context.Background(), Product{Name: "No Code"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), Product{Code: "SKU-002"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), Product{
		Code:  "SKU-003",
		Name:  "Negative",
		Price: decimal.RequireFromString("-1"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateProductDuplicateCode(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.Create(context.Background(), Product{Code: "SKU-001", Name: "First"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Product{Code: "SKU-001", Name: "Second"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestGetProductInvalidID(t *testing.T) {
	svc := NewService(newMockRepository())
	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}
