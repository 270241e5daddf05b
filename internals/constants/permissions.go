package constants

// Action tokens for the static RBAC table. These guard routes; they are a
// separate mechanism from the per-admin stored permission list on
// admin_permissions (see UserModel.HasPermission) and the two are
// intentionally not reconciled.
const (
	ActionCreateSchoolAdmin = "create:schoolAdmin"
	ActionReadSchoolAdmin   = "read:schoolAdmin"
	ActionUpdateSchoolAdmin = "update:schoolAdmin"
	ActionDeleteSchoolAdmin = "delete:schoolAdmin"
	ActionReadUsers         = "read:users"
	ActionUpdateUserRole    = "update:userRole"
	ActionLockUser          = "lock:user"
	ActionReadAdminStats    = "read:analytics:schoolAdmin"

	ActionCreateParent   = "create:parent"
	ActionCreateStudent  = "create:student"
	ActionReadStudents   = "read:students"
	ActionUpdateStudent  = "update:student"
	ActionDeleteStudent  = "delete:student"
	ActionReadTracking   = "read:tracking"
	ActionUpdateTracking = "update:tracking"
	ActionTrackingStats  = "analytics:tracking"
	ActionExportStudents = "export:students"

	ActionReadOwnChildren = "read:own:children"
	ActionReadOwnTracking = "read:tracking:own"
)

// Permissions maps each role to its allowed action tokens.
// Students map to the empty set: they are tracked, they do not operate.
var Permissions = map[string][]string{
	RoleSystemAdmin: {
		ActionCreateSchoolAdmin,
		ActionReadSchoolAdmin,
		ActionUpdateSchoolAdmin,
		ActionDeleteSchoolAdmin,
		ActionReadUsers,
		ActionUpdateUserRole,
		ActionLockUser,
		ActionReadAdminStats,
	},
	RoleSchoolAdmin: {
		ActionCreateParent,
		ActionCreateStudent,
		ActionReadStudents,
		ActionUpdateStudent,
		ActionDeleteStudent,
		ActionReadTracking,
		ActionUpdateTracking,
		ActionTrackingStats,
		ActionExportStudents,
	},
	RoleParent: {
		ActionReadOwnChildren,
		ActionReadOwnTracking,
	},
	RoleStudent: {},
}

// CanPerform reports whether the role's action set contains the action.
// Unknown roles resolve to the empty set.
func CanPerform(role, action string) bool {
	for _, a := range Permissions[role] {
		if a == action {
			return true
		}
	}
	return false
}

// CanPerformAny reports whether any of the actions passes CanPerform.
func CanPerformAny(role string, actions ...string) bool {
	for _, action := range actions {
		if CanPerform(role, action) {
			return true
		}
	}
	return false
}
