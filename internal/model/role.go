package model

// Role is an admin role. Roles form a total order so permission checks are
// rank comparisons rather than pairwise string matching; inserting an
// intermediate role later only requires a new constant and rank entry.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Rank returns the numeric position of the role in the hierarchy. Unknown
// roles rank zero, below every real role, so they fail every check.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 1
	case RoleSuperAdmin:
		return 2
	default:
		return 0
	}
}

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// Action names an operation subject to the authorization policy. The set is
// closed: any action not explicitly allowed for a role is denied.
type Action string

const (
	ActionCreateAdmin     Action = "admin.create"
	ActionUpdateAdmin     Action = "admin.update"
	ActionDeactivateAdmin Action = "admin.deactivate"
	ActionChangeRole      Action = "admin.change_role"
	ActionManageUsers     Action = "users.manage"
	ActionManageVouchers  Action = "vouchers.manage"
	ActionViewReports     Action = "reports.view"
)
