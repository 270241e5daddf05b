package constants

import "testing"

func TestCanPerform(t *testing.T) {
	cases := []struct {
		role   string
		action string
		want   bool
	}{
		{RoleSystemAdmin, ActionCreateSchoolAdmin, true},
		{RoleSystemAdmin, ActionUpdateUserRole, true},
		{RoleSystemAdmin, ActionCreateStudent, false},
		{RoleSchoolAdmin, ActionCreateStudent, true},
		{RoleSchoolAdmin, ActionExportStudents, true},
		{RoleSchoolAdmin, ActionCreateSchoolAdmin, false},
		{RoleSchoolAdmin, ActionLockUser, false},
		{RoleParent, ActionReadOwnChildren, true},
		{RoleParent, ActionReadStudents, false},
		{RoleStudent, ActionReadOwnChildren, false},
		{"ghost", ActionReadStudents, false},
	}
	for _, c := range cases {
		if got := CanPerform(c.role, c.action); got != c.want {
			t.Errorf("CanPerform(%q, %q) = %v, want %v", c.role, c.action, got, c.want)
		}
	}
}

func TestStudentsHaveNoActions(t *testing.T) {
	if len(Permissions[RoleStudent]) != 0 {
		t.Fatalf("students must have an empty action set, got %v", Permissions[RoleStudent])
	}
}

func TestCanPerformAny(t *testing.T) {
	if !CanPerformAny(RoleParent, ActionReadStudents, ActionReadOwnChildren) {
		t.Fatal("expected parent to pass via read:own:children")
	}
	if CanPerformAny(RoleStudent, ActionReadStudents, ActionReadOwnChildren) {
		t.Fatal("expected student to fail every action")
	}
}

func TestRoleHelpers(t *testing.T) {
	for _, r := range AllRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false", r)
		}
	}
	if IsValidRole("teacher") {
		t.Error("unexpected valid role")
	}
	if !IsAdminRole(RoleSystemAdmin) || !IsAdminRole(RoleSchoolAdmin) {
		t.Error("admin roles misclassified")
	}
	if IsAdminRole(RoleParent) {
		t.Error("parent is not an admin role")
	}
}
