package products

import (
	"context"

	mdshared "github.com/clinistock/clinistock/internal/masterdata/shared"
	"github.com/clinistock/clinistock/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.InvalidArgumentf("invalid product ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return shared.InvalidArgumentf("invalid product ID")
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.InvalidArgumentf("invalid product ID")
	}
	return s.repo.Delete(ctx, id)
}

// ReorderAlerts lists products whose on-hand stock fell below the reorder
// point.
func (s *Service) ReorderAlerts(ctx context.Context) ([]ReorderAlert, error) {
	return s.repo.BelowReorderPoint(ctx)
}
