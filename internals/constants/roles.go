package constants

import "fmt"

// Role values stored on the users.role column. Exactly one per account.
const (
	RoleSystemAdmin = "systemAdmin"
	RoleSchoolAdmin = "schoolAdmin"
	RoleStudent     = "student"
	RoleParent      = "parent"
)

// Error message templates for role guards
const (
	ErrOnlyAdminsCanAccess  = "Only system or school admins may access %s."
	ErrOnlyParentsCanAccess = "Only parents may access %s."
	ErrOnlySystemAdmin      = "Only the system admin may access %s."
)

func RoleErrorAdmin(feature string) string {
	return fmt.Sprintf(ErrOnlyAdminsCanAccess, feature)
}

func RoleErrorParent(feature string) string {
	return fmt.Sprintf(ErrOnlyParentsCanAccess, feature)
}

func RoleErrorSystemAdmin(feature string) string {
	return fmt.Sprintf(ErrOnlySystemAdmin, feature)
}

// ==========================
// Grouped role slices
// ==========================
var (
	AllRoles = []string{
		RoleSystemAdmin,
		RoleSchoolAdmin,
		RoleStudent,
		RoleParent,
	}

	AdminRoles = []string{
		RoleSystemAdmin,
		RoleSchoolAdmin,
	}

	SystemAdminOnly = []string{
		RoleSystemAdmin,
	}

	ParentOnly = []string{
		RoleParent,
	}
)

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func IsAdminRole(role string) bool {
	return role == RoleSystemAdmin || role == RoleSchoolAdmin
}
