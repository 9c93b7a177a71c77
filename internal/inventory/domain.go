package inventory

import (
	"errors"
	"fmt"
	"time"
)

// Status enumerates the inward-movement workflow states of a lot.
type Status string

const (
	// StatusInwardRequested marks a freshly requested inward shipment.
	StatusInwardRequested Status = "INWARD_REQUESTED"
	// StatusInwardApproved marks an inward approved by a manager.
	StatusInwardApproved Status = "INWARD_APPROVED"
	// StatusInwardRejected marks a rejected inward.
	StatusInwardRejected Status = "INWARD_REJECTED"
	// StatusInwardCompleted marks goods physically received and shelved.
	StatusInwardCompleted Status = "INWARD_COMPLETED"
)

// ApprovalStatus is the coarse workflow gate shared by approvable entities,
// distinct from the detailed domain status.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "PENDING"
	ApprovalApproved  ApprovalStatus = "APPROVED"
	ApprovalCancelled ApprovalStatus = "CANCELLED"
)

// Lot is one inward batch of stock for a (product, vendor) pair. Each inward
// shipment becomes its own row so consumption and restoration can walk lots
// in insertion order (FIFO). VendorID zero means the vendor reference was
// nulled by a vendor deletion.
type Lot struct {
	ID             int64
	ProductID      int64
	VendorID       int64
	StockQty       int64
	InwardQty      int64
	Status         Status
	ApprovalStatus ApprovalStatus
	InwardDate     time.Time
	LastUpdated    time.Time
}

// VendorStock summarises available stock of one vendor for a product.
type VendorStock struct {
	VendorID int64
	Stock    int64
}

// InwardInput describes a request to book stock into inventory.
type InwardInput struct {
	ProductID int64
	VendorID  int64
	Quantity  int64
	Status    Status
	ActorID   int64
}

// EditInput describes an inward edit. Zero-valued fields keep current values,
// matching the partial edit surface.
type EditInput struct {
	ProductID int64
	VendorID  int64
	StockQty  *int64
	Status    Status
	ActorID   int64
}

// LotFilter narrows lot listings.
type LotFilter struct {
	ProductID int64
	VendorID  int64
	Status    Status
	Limit     int
	Offset    int
}

// InsufficientStockError reports a debit request exceeding the summed lot
// stock for the pair. The store is left untouched.
type InsufficientStockError struct {
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %d, requested %d", e.Available, e.Requested)
}

var (
	// ErrNotFound indicates a missing lot.
	ErrNotFound = errors.New("inventory: lot not found")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidStatus indicates an unknown inward status value.
	ErrInvalidStatus = errors.New("inventory: invalid inward status")
	// ErrConcurrencyConflict indicates a lot delta was rejected by the
	// non-negative guard; the surrounding transaction must be retried.
	ErrConcurrencyConflict = errors.New("inventory: concurrent stock mutation detected")
)

// ValidStatus reports whether s is a known inward status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusInwardRequested, StatusInwardApproved, StatusInwardRejected, StatusInwardCompleted:
		return true
	}
	return false
}
