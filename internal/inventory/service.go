package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wareflow/wareflow/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLot(ctx context.Context, id int64) (Lot, error)
	ListLots(ctx context.Context, filter LotFilter) ([]Lot, error)
	AvailableStock(ctx context.Context, productID, vendorID int64) (int64, error)
	VendorAvailability(ctx context.Context, productID int64) ([]VendorStock, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inward movements and availability reads.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache *AvailabilityCache
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache *AvailabilityCache) *Service {
	return &Service{repo: repo, audit: audit, cache: cache}
}

// CreateInward books a new lot. The lot is reserved as stock immediately on
// request: stock_quantity and inward_qty both start at the requested amount,
// with the approval gate tracked separately.
func (s *Service) CreateInward(ctx context.Context, input InwardInput) (Lot, error) {
	if input.ProductID == 0 || input.VendorID == 0 {
		return Lot{}, errors.New("inventory: product and vendor required")
	}
	if input.Quantity <= 0 {
		return Lot{}, ErrInvalidQuantity
	}
	status := input.Status
	if status == "" {
		status = StatusInwardRequested
	}
	if !ValidStatus(status) {
		return Lot{}, ErrInvalidStatus
	}
	now := time.Now().UTC()
	lot := Lot{
		ProductID:      input.ProductID,
		VendorID:       input.VendorID,
		StockQty:       input.Quantity,
		InwardQty:      input.Quantity,
		Status:         status,
		ApprovalStatus: ApprovalPending,
		InwardDate:     now,
		LastUpdated:    now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertLot(ctx, lot)
		if err != nil {
			return err
		}
		lot.ID = id
		return nil
	})
	if err != nil {
		return Lot{}, err
	}
	s.cache.Invalidate(ctx, lot.ProductID, lot.VendorID)
	s.recordAudit(ctx, input.ActorID, "inventory:inward", lot.ID, map[string]any{
		"product_id": lot.ProductID,
		"vendor_id":  lot.VendorID,
		"qty":        lot.InwardQty,
		"status":     string(lot.Status),
	})
	return lot, nil
}

// EditInward updates a lot in place. The row stays locked for the whole
// transaction, so the explicit quantity write cannot race the allocator.
func (s *Service) EditInward(ctx context.Context, id int64, input EditInput) (Lot, error) {
	if input.StockQty != nil && *input.StockQty < 0 {
		return Lot{}, ErrInvalidQuantity
	}
	if input.Status != "" && !ValidStatus(input.Status) {
		return Lot{}, ErrInvalidStatus
	}
	var before, after Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := tx.GetLotForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before = lot
		if input.ProductID != 0 {
			lot.ProductID = input.ProductID
		}
		if input.VendorID != 0 {
			lot.VendorID = input.VendorID
		}
		if input.StockQty != nil {
			lot.StockQty = *input.StockQty
		}
		if input.Status != "" {
			lot.Status = input.Status
		}
		if err := tx.UpdateLot(ctx, lot); err != nil {
			return err
		}
		after = lot
		return nil
	})
	if err != nil {
		return Lot{}, err
	}
	s.cache.Invalidate(ctx, before.ProductID, before.VendorID)
	s.cache.Invalidate(ctx, after.ProductID, after.VendorID)
	s.recordAudit(ctx, input.ActorID, "inventory:edit", id, map[string]any{
		"product_id": after.ProductID,
		"vendor_id":  after.VendorID,
		"stock_qty":  after.StockQty,
		"status":     string(after.Status),
	})
	return after, nil
}

// DeleteInward removes a lot.
func (s *Service) DeleteInward(ctx context.Context, id int64, actorID int64) error {
	var removed Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := tx.GetLotForUpdate(ctx, id)
		if err != nil {
			return err
		}
		removed = lot
		return tx.DeleteLot(ctx, id)
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, removed.ProductID, removed.VendorID)
	s.recordAudit(ctx, actorID, "inventory:delete", id, map[string]any{
		"product_id": removed.ProductID,
		"vendor_id":  removed.VendorID,
		"stock_qty":  removed.StockQty,
	})
	return nil
}

// GetLot loads a lot by id.
func (s *Service) GetLot(ctx context.Context, id int64) (Lot, error) {
	return s.repo.GetLot(ctx, id)
}

// ListLots lists lots matching the filter.
func (s *Service) ListLots(ctx context.Context, filter LotFilter) ([]Lot, error) {
	return s.repo.ListLots(ctx, filter)
}

// AvailableStock returns the summed stock for a pair, served cache-aside.
func (s *Service) AvailableStock(ctx context.Context, productID, vendorID int64) (int64, error) {
	if productID == 0 {
		return 0, errors.New("inventory: product required")
	}
	return s.cache.Stock(ctx, productID, vendorID, func(ctx context.Context) (int64, error) {
		return s.repo.AvailableStock(ctx, productID, vendorID)
	})
}

// VendorAvailability lists vendors with positive stock for a product.
func (s *Service) VendorAvailability(ctx context.Context, productID int64) ([]VendorStock, error) {
	if productID == 0 {
		return nil, errors.New("inventory: product required")
	}
	return s.cache.Vendors(ctx, productID, func(ctx context.Context) ([]VendorStock, error) {
		return s.repo.VendorAvailability(ctx, productID)
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, lotID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory_lot",
		EntityID: fmt.Sprintf("%d", lotID),
		Meta:     meta,
	})
}
