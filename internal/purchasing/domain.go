package purchasing

import (
	"errors"
	"time"

	"github.com/wareflow/wareflow/internal/inventory"
)

// Status enumerates purchase order workflow states.
type Status string

const (
	StatusRaised          Status = "PO_RAISED"
	StatusApproved        Status = "PO_APPROVED"
	StatusRejected        Status = "PO_REJECTED"
	StatusShipped         Status = "PO_SHIPPED"
	StatusDelivered       Status = "PO_DELIVERED"
	StatusInwardRequested Status = "INWARD_REQUESTED"
)

// PurchaseOrder models a request to buy stock from a vendor. Purchase orders
// never move lot quantities; stock enters the store through an inward once
// the goods arrive.
type PurchaseOrder struct {
	ID             int64
	UserID         int64
	ProductID      int64
	VendorID       int64
	Quantity       int64
	Status         Status
	ApprovalStatus inventory.ApprovalStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// statusesAfterApproval is the allow-list of statuses an approved purchase
// order may be edited into. Raised and rejected are only reachable through
// the approval gateway.
var statusesAfterApproval = map[Status]struct{}{
	StatusApproved:        {},
	StatusShipped:         {},
	StatusDelivered:       {},
	StatusInwardRequested: {},
}

// ValidStatus reports whether s is a known purchase order status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusRaised, StatusApproved, StatusRejected, StatusShipped, StatusDelivered, StatusInwardRequested:
		return true
	}
	return false
}

// CreateInput describes purchase order creation.
type CreateInput struct {
	UserID    int64
	ProductID int64
	VendorID  int64
	Quantity  int64
}

// EditInput describes a purchase order edit. Status is optional and only
// honored once the order has been approved.
type EditInput struct {
	ProductID int64
	VendorID  int64
	Quantity  int64
	Status    Status
	ActorID   int64
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	ID        int64
	ProductID int64
	VendorID  int64
	Status    Status
	Limit     int
	Offset    int
}

// StatusSummary aggregates quantities per workflow state.
type StatusSummary map[Status]int64

var (
	// ErrNotFound indicates a missing purchase order.
	ErrNotFound = errors.New("purchasing: purchase order not found")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("purchasing: quantity must be positive")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("purchasing: invalid status")
	// ErrNotApproved indicates a status edit before approval.
	ErrNotApproved = errors.New("purchasing: status can only change after approval")
)
