package vendors

import (
	"context"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	if err := s.validate(vendor); err != nil {
		return Vendor{}, err
	}
	return s.repo.Create(ctx, vendor)
}

func (s *Service) Update(ctx context.Context, id int64, vendor Vendor) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(vendor); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, vendor)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}
