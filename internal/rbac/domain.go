package rbac

import "errors"

// Role names mirror the user_profiles.role column.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleViewer = "viewer"
)

// ErrNotFound indicates that the requested profile does not exist.
var ErrNotFound = errors.New("rbac: not found")

// rolePermissions are the baseline grants per role. Per-user overrides from
// the permissions JSON column are merged on top.
var rolePermissions = map[string][]string{
	RoleAdmin: {
		"masterdata.view", "masterdata.edit",
		"inventory.view", "inventory.edit",
		"orders.view", "orders.edit",
		"purchasing.view", "purchasing.edit",
		"approvals.view", "approvals.decide",
	},
	RoleStaff: {
		"masterdata.view",
		"inventory.view", "inventory.edit",
		"orders.view", "orders.edit",
		"purchasing.view", "purchasing.edit",
		"approvals.view",
	},
	RoleViewer: {
		"masterdata.view", "inventory.view", "orders.view", "purchasing.view", "approvals.view",
	},
}
