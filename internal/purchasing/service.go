package purchasing

import (
	"context"
	"strconv"

	"github.com/wareflow/wareflow/internal/inventory"
	"github.com/wareflow/wareflow/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, StatusSummary, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the purchase order lifecycle. Purchase orders carry no
// stock; they only track procurement state until goods arrive as inwards.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create raises a new purchase order pending approval.
func (s *Service) Create(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if input.Quantity <= 0 {
		return PurchaseOrder{}, ErrInvalidQuantity
	}
	po := PurchaseOrder{
		UserID:         input.UserID,
		ProductID:      input.ProductID,
		VendorID:       input.VendorID,
		Quantity:       input.Quantity,
		Status:         StatusRaised,
		ApprovalStatus: inventory.ApprovalPending,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertPurchaseOrder(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.UserID, "po.create", po.ID, map[string]any{
		"product_id": input.ProductID,
		"vendor_id":  input.VendorID,
		"quantity":   input.Quantity,
	})
	return po, nil
}

// Edit updates a purchase order. The status field is writable only once the
// order is approved, and an approved order can never be pushed back to
// raised or rejected; those states belong to the approval gateway.
func (s *Service) Edit(ctx context.Context, id int64, input EditInput) (PurchaseOrder, error) {
	if input.Quantity <= 0 {
		return PurchaseOrder{}, ErrInvalidQuantity
	}
	if input.Status != "" && !ValidStatus(input.Status) {
		return PurchaseOrder{}, ErrInvalidStatus
	}
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		newStatus := po.Status
		if input.Status != "" && input.Status != po.Status {
			if po.ApprovalStatus != inventory.ApprovalApproved {
				return ErrNotApproved
			}
			if _, ok := statusesAfterApproval[input.Status]; !ok {
				return &shared.InvalidTransitionError{
					Entity: "purchase_order",
					From:   string(po.Status),
					To:     string(input.Status),
				}
			}
			newStatus = input.Status
		}
		updated = po
		updated.ProductID = input.ProductID
		updated.VendorID = input.VendorID
		updated.Quantity = input.Quantity
		updated.Status = newStatus
		return tx.UpdatePurchaseOrder(ctx, updated)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.ActorID, "po.edit", id, map[string]any{
		"product_id": input.ProductID,
		"vendor_id":  input.VendorID,
		"quantity":   input.Quantity,
		"status":     string(updated.Status),
	})
	return updated, nil
}

// RequestApproval resets the order onto the approval queue. A fresh decision
// is required before the status becomes editable again.
func (s *Service) RequestApproval(ctx context.Context, id, actorID int64) (PurchaseOrder, error) {
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		updated = po
		updated.ApprovalStatus = inventory.ApprovalPending
		updated.Status = StatusRaised
		return tx.UpdatePurchaseOrder(ctx, updated)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "po.request_approval", id, nil)
	return updated, nil
}

// Delete removes a purchase order. No stock compensation is needed since
// purchase orders never held any.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.DeletePurchaseOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "po.delete", id, nil)
	return nil
}

// Get fetches a single purchase order.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns purchase orders matching the filter plus per-status quantity
// sums.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, StatusSummary, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, poID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(poID, 10),
		Meta:     meta,
	})
}
