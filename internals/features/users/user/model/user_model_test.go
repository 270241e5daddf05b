package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"bustrack_backend/internals/constants"
)

func TestIsLocked(t *testing.T) {
	u := UserModel{}
	if u.IsLocked() {
		t.Fatal("no lock_until means unlocked")
	}

	future := time.Now().Add(time.Hour)
	u.LockUntil = &future
	if !u.IsLocked() {
		t.Fatal("future lock_until means locked")
	}

	past := time.Now().Add(-time.Hour)
	u.LockUntil = &past
	if u.IsLocked() {
		t.Fatal("expired lock_until means unlocked, without any sweep")
	}
}

func TestHasPermission(t *testing.T) {
	sys := UserModel{Role: constants.RoleSystemAdmin}
	if !sys.HasPermission("anything:at:all") {
		t.Fatal("system admin passes every stored-list check")
	}

	admin := UserModel{Role: constants.RoleSchoolAdmin}
	admin.AdminInfo.Permissions = datatypes.NewJSONSlice([]string{"manage_students"})
	if !admin.HasPermission("manage_students") {
		t.Fatal("stored permission should pass")
	}
	if admin.HasPermission("manage_buses") {
		t.Fatal("missing permission should fail")
	}

	parent := UserModel{Role: constants.RoleParent}
	if parent.HasPermission("manage_students") {
		t.Fatal("non-admin roles never pass")
	}
}

func TestCanAccessSchool(t *testing.T) {
	sys := UserModel{Role: constants.RoleSystemAdmin}
	if !sys.CanAccessSchool("any") {
		t.Fatal("system admin is unscoped")
	}

	school := "sch-1"
	admin := UserModel{Role: constants.RoleSchoolAdmin}
	admin.AdminInfo.SchoolID = &school
	if !admin.CanAccessSchool("sch-1") {
		t.Fatal("own school should pass")
	}
	if admin.CanAccessSchool("sch-2") {
		t.Fatal("other school should fail")
	}

	unbound := UserModel{Role: constants.RoleSchoolAdmin}
	if unbound.CanAccessSchool("sch-1") {
		t.Fatal("admin without a school accesses nothing")
	}

	parent := UserModel{Role: constants.RoleParent}
	if parent.CanAccessSchool("sch-1") {
		t.Fatal("parents have no tenant access")
	}
}

func TestDisplayName(t *testing.T) {
	u := UserModel{FirstName: "Sam", LastName: "Doe", Role: constants.RoleStudent}
	if got := u.DisplayName(); got != "Sam Doe (Student)" {
		t.Fatalf("unexpected display name %q", got)
	}

	u.Role = constants.RoleSchoolAdmin
	if got := u.DisplayName(); got != "Sam Doe (School Admin - Unknown School)" {
		t.Fatalf("unexpected display name %q", got)
	}

	name := "Hill Valley High"
	u.AdminInfo.SchoolName = &name
	if got := u.DisplayName(); got != "Sam Doe (School Admin - Hill Valley High)" {
		t.Fatalf("unexpected display name %q", got)
	}
}

func TestParentChildSync(t *testing.T) {
	p := ParentInfo{}
	a, b := uuid.New(), uuid.New()

	p.AddChild(a)
	p.AddChild(a) // idempotent
	p.AddChild(b)
	if len(p.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(p.Children))
	}
	if !p.HasChild(a) || !p.HasChild(b) {
		t.Fatal("children not recorded")
	}

	p.RemoveChild(a)
	if p.HasChild(a) || len(p.Children) != 1 {
		t.Fatalf("remove failed: %v", p.Children)
	}
	p.RemoveChild(a) // removing twice is a no-op
	if len(p.Children) != 1 {
		t.Fatal("double remove changed the list")
	}
}

func TestIsValidTrackingStatus(t *testing.T) {
	for _, s := range TrackingStatuses {
		if !IsValidTrackingStatus(s) {
			t.Errorf("IsValidTrackingStatus(%q) = false", s)
		}
	}
	if IsValidTrackingStatus("parked") {
		t.Error("unexpected valid status")
	}
}
