package auth

import "github.com/wifigate/wifigate/internal/model"

// HasPermission reports whether an admin holding current meets or exceeds
// the required role. Unknown roles rank below every known role, so a
// malformed or missing role never grants access.
func HasPermission(current, required model.Role) bool {
	return current.Rank() >= required.Rank()
}

// CanPerformAction decides whether role may perform action on the target
// admin account. Every admin may act on their own account regardless of
// role; beyond that, admin-management actions require super_admin while
// day-to-day operations are open to any valid admin role.
func CanPerformAction(role model.Role, action model.Action, targetID, actorID int64) bool {
	if targetID != 0 && targetID == actorID {
		return true
	}

	switch action {
	case model.ActionCreateAdmin, model.ActionUpdateAdmin, model.ActionDeactivateAdmin, model.ActionChangeRole:
		return role == model.RoleSuperAdmin
	case model.ActionManageUsers, model.ActionManageVouchers, model.ActionViewReports:
		return role.Valid()
	default:
		return false
	}
}
