package orders

import (
	"errors"
	"time"

	"github.com/wareflow/wareflow/internal/inventory"
)

// Status enumerates order workflow states.
type Status string

const (
	StatusRaised    Status = "ORDER_RAISED"
	StatusApproved  Status = "ORDER_APPROVED"
	StatusRejected  Status = "ORDER_REJECTED"
	StatusShipped   Status = "ORDER_SHIPPED"
	StatusDelivered Status = "ORDER_DELIVERED"
	StatusReturned  Status = "ORDER_RETURNED"
)

// Order models a customer order. Stock is debited at creation time, so a
// non-cancelled order always "holds" its quantity against the lot store.
type Order struct {
	ID             int64
	UserID         int64
	ProductID      int64
	VendorID       int64
	Quantity       int64
	OrderDate      time.Time
	Status         Status
	ApprovalStatus inventory.ApprovalStatus
	LastUpdated    time.Time
}

// statusesAfterApproval is the allow-list of statuses an approved order may
// still be edited into. Raised and rejected are only reachable through the
// approval gateway.
var statusesAfterApproval = map[Status]struct{}{
	StatusApproved:  {},
	StatusShipped:   {},
	StatusDelivered: {},
	StatusReturned:  {},
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusRaised, StatusApproved, StatusRejected, StatusShipped, StatusDelivered, StatusReturned:
		return true
	}
	return false
}

// CreateInput describes order creation.
type CreateInput struct {
	UserID         int64
	ProductID      int64
	VendorID       int64
	Quantity       int64
	IdempotencyKey string
}

// EditInput describes an order edit. Status is optional.
type EditInput struct {
	ProductID int64
	VendorID  int64
	Quantity  int64
	Status    Status
	ActorID   int64
}

// ListFilter narrows order listings.
type ListFilter struct {
	ID        int64
	ProductID int64
	VendorID  int64
	Quantity  int64
	Status    Status
	Cancelled *bool
	Limit     int
	Offset    int
}

// Totals aggregates a listing, mirroring the order list summary row.
type Totals struct {
	TotalQuantity     int64
	ActiveQuantity    int64
	CancelledQuantity int64
}

var (
	// ErrNotFound indicates a missing order.
	ErrNotFound = errors.New("orders: order not found")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("orders: quantity must be positive")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("orders: invalid status")
)
