package approval

import "errors"

// Kind identifies an approvable entity type.
type Kind string

const (
	KindPurchaseOrder Kind = "po"
	KindInventory     Kind = "inventory"
	KindOrder         Kind = "order"
)

// Action is an approval decision.
type Action string

const (
	ActionPending   Action = "PENDING"
	ActionApproved  Action = "APPROVED"
	ActionCancelled Action = "CANCELLED"
)

// Rule maps approval actions onto an entity table. The gateway writes both
// the approval gate and the derived workflow status in one statement, so the
// two fields cannot drift apart.
type Rule struct {
	Table           string
	UpdatedAtColumn string
	StatusFor       map[Action]string
}

// Ruleset is the full gateway table. Supporting a new approvable entity
// means adding one Rule here.
type Ruleset map[Kind]Rule

// DefaultRules returns the gateway table for the built-in entities.
func DefaultRules() Ruleset {
	return Ruleset{
		KindPurchaseOrder: {
			Table:           "purchase_orders",
			UpdatedAtColumn: "updated_at",
			StatusFor: map[Action]string{
				ActionPending:   "PO_RAISED",
				ActionApproved:  "PO_APPROVED",
				ActionCancelled: "PO_REJECTED",
			},
		},
		KindInventory: {
			Table:           "inventory_lots",
			UpdatedAtColumn: "last_updated",
			StatusFor: map[Action]string{
				ActionPending:   "INWARD_REQUESTED",
				ActionApproved:  "INWARD_APPROVED",
				ActionCancelled: "INWARD_REJECTED",
			},
		},
		KindOrder: {
			Table:           "orders",
			UpdatedAtColumn: "last_updated",
			StatusFor: map[Action]string{
				ActionPending:   "ORDER_RAISED",
				ActionApproved:  "ORDER_APPROVED",
				ActionCancelled: "ORDER_REJECTED",
			},
		},
	}
}

// PendingCount reports queued approvals for one kind.
type PendingCount struct {
	Kind  Kind
	Count int64
}

var (
	// ErrUnknownKind indicates a kind outside the ruleset.
	ErrUnknownKind = errors.New("approval: unknown entity kind")
	// ErrUnknownAction indicates an action the rule does not map.
	ErrUnknownAction = errors.New("approval: unknown action")
	// ErrNotFound indicates the target entity does not exist.
	ErrNotFound = errors.New("approval: entity not found")
)
