package orders

import (
	"context"
	"strconv"

	"github.com/wareflow/wareflow/internal/inventory"
	"github.com/wareflow/wareflow/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, Totals, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against duplicate order submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates order lifecycle against the lot store. Every mutation
// that moves stock runs the order row change and the lot walk in one
// transaction, so an order and its stock hold never diverge.
type Service struct {
	repo  RepositoryPort
	alloc inventory.Allocator
	audit AuditPort
	idem  IdempotencyPort
	cache *inventory.AvailabilityCache
}

// NewService builds Service. idem and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cache *inventory.AvailabilityCache) *Service {
	return &Service{repo: repo, audit: audit, idem: idem, cache: cache}
}

// Create books a new order, debiting the requested quantity from the oldest
// lots of the (product, vendor) pair. On insufficient stock nothing is
// written.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	if input.Quantity <= 0 {
		return Order{}, ErrInvalidQuantity
	}
	if s.idem != nil && input.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "orders"); err != nil {
			return Order{}, err
		}
	}
	order := Order{
		UserID:         input.UserID,
		ProductID:      input.ProductID,
		VendorID:       input.VendorID,
		Quantity:       input.Quantity,
		Status:         StatusRaised,
		ApprovalStatus: inventory.ApprovalPending,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.alloc.Debit(ctx, tx.Lots(), input.ProductID, input.VendorID, input.Quantity); err != nil {
			return err
		}
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return nil
	})
	if err != nil {
		if s.idem != nil && input.IdempotencyKey != "" {
			_ = s.idem.Delete(ctx, input.IdempotencyKey)
		}
		return Order{}, err
	}
	s.invalidate(ctx, input.ProductID, input.VendorID)
	s.recordAudit(ctx, input.UserID, "order.create", order.ID, map[string]any{
		"product_id": input.ProductID,
		"vendor_id":  input.VendorID,
		"quantity":   input.Quantity,
	})
	return order, nil
}

// Edit reshapes an existing order. The old hold is credited back and the new
// one debited inside the same transaction, so conservation holds even when
// the product or vendor changes. After approval the status may only move
// within the post-approval allow-list.
func (s *Service) Edit(ctx context.Context, id int64, input EditInput) (Order, error) {
	if input.Quantity <= 0 {
		return Order{}, ErrInvalidQuantity
	}
	if input.Status != "" && !ValidStatus(input.Status) {
		return Order{}, ErrInvalidStatus
	}
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		newStatus := order.Status
		if input.Status != "" && input.Status != order.Status {
			if order.ApprovalStatus == inventory.ApprovalApproved {
				if _, ok := statusesAfterApproval[input.Status]; !ok {
					return &shared.InvalidTransitionError{
						Entity: "order",
						From:   string(order.Status),
						To:     string(input.Status),
					}
				}
			}
			newStatus = input.Status
		}

		samePair := order.ProductID == input.ProductID && order.VendorID == input.VendorID
		if !samePair || order.Quantity != input.Quantity {
			if order.ApprovalStatus != inventory.ApprovalCancelled {
				if err := s.alloc.Credit(ctx, tx.Lots(), order.ProductID, order.VendorID, order.Quantity); err != nil {
					return err
				}
				if err := s.alloc.Debit(ctx, tx.Lots(), input.ProductID, input.VendorID, input.Quantity); err != nil {
					return err
				}
			}
		}

		updated = order
		updated.ProductID = input.ProductID
		updated.VendorID = input.VendorID
		updated.Quantity = input.Quantity
		updated.Status = newStatus
		return tx.UpdateOrder(ctx, updated)
	})
	if err != nil {
		return Order{}, err
	}
	s.invalidate(ctx, updated.ProductID, updated.VendorID)
	s.recordAudit(ctx, input.ActorID, "order.edit", id, map[string]any{
		"product_id": input.ProductID,
		"vendor_id":  input.VendorID,
		"quantity":   input.Quantity,
		"status":     string(updated.Status),
	})
	return updated, nil
}

// Cancel releases the order's stock hold and rejects it. Cancelling an
// already cancelled order is a no-op, so the credit happens exactly once.
func (s *Service) Cancel(ctx context.Context, id, actorID int64) (Order, error) {
	var updated Order
	var alreadyCancelled bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.ApprovalStatus == inventory.ApprovalCancelled {
			alreadyCancelled = true
			updated = order
			return nil
		}
		if err := s.alloc.Credit(ctx, tx.Lots(), order.ProductID, order.VendorID, order.Quantity); err != nil {
			return err
		}
		updated = order
		updated.ApprovalStatus = inventory.ApprovalCancelled
		updated.Status = StatusRejected
		return tx.UpdateOrder(ctx, updated)
	})
	if err != nil {
		return Order{}, err
	}
	if !alreadyCancelled {
		s.invalidate(ctx, updated.ProductID, updated.VendorID)
		s.recordAudit(ctx, actorID, "order.cancel", id, map[string]any{
			"quantity": updated.Quantity,
		})
	}
	return updated, nil
}

// Delete removes the order row. Stock held by the order is restored first,
// unless it was already released by a cancellation.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	var productID, vendorID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		productID, vendorID = order.ProductID, order.VendorID
		if order.ApprovalStatus != inventory.ApprovalCancelled {
			if err := s.alloc.Credit(ctx, tx.Lots(), order.ProductID, order.VendorID, order.Quantity); err != nil {
				return err
			}
		}
		return tx.DeleteOrder(ctx, order.ID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, productID, vendorID)
	s.recordAudit(ctx, actorID, "order.delete", id, nil)
	return nil
}

// Get fetches a single order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// List returns orders matching the filter plus quantity totals.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, Totals, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, Totals{}, ErrInvalidStatus
	}
	return s.repo.ListOrders(ctx, filter)
}

func (s *Service) invalidate(ctx context.Context, productID, vendorID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, productID, vendorID)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
	})
}
