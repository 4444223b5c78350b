package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	mdshared "github.com/clinistock/clinistock/internal/masterdata/shared"
	"github.com/clinistock/clinistock/internal/shared"
)

type memRepo struct {
	byID map[int64]Product
	next int64
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[int64]Product{}, next: 1}
}

func (m *memRepo) List(_ context.Context, _ mdshared.ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return Product{}, shared.NotFoundf("product")
	}
	return p, nil
}

func (m *memRepo) Create(_ context.Context, product Product) (Product, error) {
	product.ID = m.next
	m.next++
	m.byID[product.ID] = product
	return product, nil
}

func (m *memRepo) Update(_ context.Context, id int64, product Product) error {
	if _, ok := m.byID[id]; !ok {
		return shared.NotFoundf("product")
	}
	product.ID = id
	m.byID[id] = product
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	delete(m.byID, id)
	return nil
}

func (m *memRepo) BelowReorderPoint(_ context.Context) ([]ReorderAlert, error) {
	return nil, nil
}

func validProduct() Product {
	return Product{
		Code:         "AMOX-500",
		Name:         "Amoxicillin 500mg",
		Unit:         "box",
		MinimumStock: 10,
		MaximumStock: 100,
		ReorderPoint: 25,
		Active:       true,
	}
}

func TestCreateProduct(t *testing.T) {
	svc := NewService(newMemRepo())

	created, err := svc.Create(context.Background(), validProduct())
	require.NoError(t, err)
	require.NotZero(t, created.ID)
}

func TestCreateProductRequiresCodeAndName(t *testing.T) {
	svc := NewService(newMemRepo())

	p := validProduct()
	p.Code = "  "
	_, err := svc.Create(context.Background(), p)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	p = validProduct()
	p.Name = ""
	_, err = svc.Create(context.Background(), p)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestThresholdInvariants(t *testing.T) {
	svc := NewService(newMemRepo())

	p := validProduct()
	p.MaximumStock = 5
	_, err := svc.Create(context.Background(), p)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	require.Contains(t, err.Error(), "maximum stock")

	// Zero is not "unset": a product with a minimum needs a real maximum.
	p = validProduct()
	p.MaximumStock = 0
	p.ReorderPoint = 0
	_, err = svc.Create(context.Background(), p)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	require.Contains(t, err.Error(), "maximum stock")

	p = validProduct()
	p.ReorderPoint = 5
	_, err = svc.Create(context.Background(), p)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	require.Contains(t, err.Error(), "below minimum")

	p = validProduct()
	p.ReorderPoint = 150
	_, err = svc.Create(context.Background(), p)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	require.Contains(t, err.Error(), "exceed maximum")
}

func TestUpdateValidatesToo(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	created, err := svc.Create(context.Background(), validProduct())
	require.NoError(t, err)

	bad := validProduct()
	bad.MinimumStock = -1
	err = svc.Update(context.Background(), created.ID, bad)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}
