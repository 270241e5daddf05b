package service

import (
	"bytes"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	adminDTO "bustrack_backend/internals/features/admin/dto"
	studentDTO "bustrack_backend/internals/features/students/dto"
	trackingModel "bustrack_backend/internals/features/tracking/model"
	authDTO "bustrack_backend/internals/features/users/auth/dto"
	authService "bustrack_backend/internals/features/users/auth/service"
	userModel "bustrack_backend/internals/features/users/user/model"
	helper "bustrack_backend/internals/helpers"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&userModel.UserModel{}, &trackingModel.TrackingEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedSchoolAdmin(t *testing.T, db *gorm.DB, username, schoolID string) *userModel.UserModel {
	t.Helper()
	name := "School " + schoolID
	admin, err := CreateAdmin(db, &authDTO.SignupRequest{
		UserName:  username,
		Email:     username + "@example.com",
		Password:  "secret123",
		FirstName: "Alex",
		LastName:  "Admin",
		AdminInfo: &authDTO.AdminInfoInput{SchoolID: &schoolID, SchoolName: &name},
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return admin
}

func seedStudent(t *testing.T, db *gorm.DB, username, schoolID string, grade int) *userModel.UserModel {
	t.Helper()
	rel := "father"
	parent, err := authService.CreateUser(db, &authDTO.SignupRequest{
		UserName:   username + "_parent",
		Email:      username + "_parent@example.com",
		Password:   "secret123",
		FirstName:  "Pat",
		LastName:   "Doe",
		Role:       constants.RoleParent,
		ParentInfo: &authDTO.ParentInfoInput{Relationship: &rel},
	})
	if err != nil {
		t.Fatalf("seed parent: %v", err)
	}

	name := "School " + schoolID
	sid := username + "-ext"
	student, err := authService.CreateUser(db, &authDTO.SignupRequest{
		UserName:    username,
		Email:       username + "@example.com",
		Password:    "secret123",
		FirstName:   "Sam",
		LastName:    username,
		Role:        constants.RoleStudent,
		StudentInfo: &authDTO.StudentInfoInput{Grade: &grade, ParentID: &parent.ID, ExternalID: &sid},
		AdminInfo:   &authDTO.AdminInfoInput{SchoolID: &schoolID, SchoolName: &name},
	})
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return student
}

func defaultPaging() helper.Paging {
	return helper.Paging{Page: 1, PerPage: 50, Offset: 0}
}

func TestCreateAdminForcesRole(t *testing.T) {
	db := setupTestDB(t, "admin_create")
	admin := seedSchoolAdmin(t, db, "admina", "sch-a")
	if admin.Role != constants.RoleSchoolAdmin {
		t.Fatalf("expected schoolAdmin role, got %q", admin.Role)
	}
	if admin.AdminInfo.AccessLevel != "full" {
		t.Fatalf("expected default access level full, got %q", admin.AdminInfo.AccessLevel)
	}
}

func TestListAdminsScope(t *testing.T) {
	db := setupTestDB(t, "admin_list")
	seedSchoolAdmin(t, db, "admina", "sch-a")
	seedSchoolAdmin(t, db, "adminb", "sch-b")

	all, err := ListAdmins(db, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 admins, got %d", len(all))
	}

	scoped, err := ListAdmins(db, "sch-a", "")
	if err != nil {
		t.Fatalf("scoped list: %v", err)
	}
	if len(scoped) != 1 || scoped[0].UserName != "admina" {
		t.Fatalf("scope leak: %d rows", len(scoped))
	}
}

func TestDeleteAdminSelfBlocked(t *testing.T) {
	db := setupTestDB(t, "admin_delete")
	a := seedSchoolAdmin(t, db, "admina", "sch-a")
	b := seedSchoolAdmin(t, db, "adminb", "sch-b")

	err := DeleteAdmin(db, a.ID, a)
	if err == nil {
		t.Fatal("expected self-delete rejection")
	}
	if fe, ok := err.(*fiber.Error); !ok || fe.Code != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}

	if err := DeleteAdmin(db, b.ID, a); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var reloaded userModel.UserModel
	if err := db.First(&reloaded, "id = ?", b.ID).Error; err != nil {
		t.Fatalf("row should survive: %v", err)
	}
	if reloaded.IsActive {
		t.Fatal("expected soft delete")
	}
}

func TestUpdateAdmin(t *testing.T) {
	db := setupTestDB(t, "admin_update")
	admin := seedSchoolAdmin(t, db, "admina", "sch-a")

	level := "readonly"
	dept := "transport"
	updated, err := UpdateAdmin(db, admin.ID, &adminDTO.UpdateAdminRequest{
		AccessLevel: &level,
		Department:  &dept,
		Permissions: []string{"manage_students"},
	}, "sch-a")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.AdminInfo.AccessLevel != "readonly" {
		t.Fatal("access level not applied")
	}
	if !updated.HasPermission("manage_students") {
		t.Fatal("stored permission not applied")
	}

	// Cross-school scope cannot touch the row.
	if _, err := UpdateAdmin(db, admin.ID, &adminDTO.UpdateAdminRequest{Department: &dept}, "sch-b"); err == nil {
		t.Fatal("expected cross-tenant update to fail")
	}
}

func TestToggleUserStatus(t *testing.T) {
	db := setupTestDB(t, "admin_toggle")
	adminA := seedSchoolAdmin(t, db, "admina", "sch-a")
	adminB := seedSchoolAdmin(t, db, "adminb", "sch-b")

	// Self-deactivation is blocked.
	if _, err := ToggleUserStatus(db, adminA.ID, false, adminA); err == nil {
		t.Fatal("expected self-deactivation rejection")
	}

	// A school admin cannot reach another school.
	if _, err := ToggleUserStatus(db, adminB.ID, false, adminA); err == nil {
		t.Fatal("expected cross-tenant denial")
	}

	sys := &userModel.UserModel{ID: uuid.New(), Role: constants.RoleSystemAdmin}
	user, err := ToggleUserStatus(db, adminB.ID, false, sys)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if user.IsActive {
		t.Fatal("expected deactivated")
	}
}

func TestDashboardAndOverview(t *testing.T) {
	db := setupTestDB(t, "admin_dashboard")
	seedSchoolAdmin(t, db, "admina", "sch-a")
	seedStudent(t, db, "alice", "sch-a", 3)
	seedStudent(t, db, "bob", "sch-a", 5)
	seedStudent(t, db, "carol", "sch-b", 5)

	stats, err := GetDashboardStats(db, "sch-a")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.Students.Total != 2 {
		t.Fatalf("expected 2 students in scope, got %d", stats.Students.Total)
	}

	overview, err := GetSystemOverview(db)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.ByRole[constants.RoleStudent] != 3 {
		t.Fatalf("expected 3 students system-wide, got %d", overview.ByRole[constants.RoleStudent])
	}
	if overview.Schools != 1 {
		t.Fatalf("expected 1 admin-backed school, got %d", overview.Schools)
	}
}

func TestListAllUsersFilters(t *testing.T) {
	db := setupTestDB(t, "admin_users")
	seedSchoolAdmin(t, db, "admina", "sch-a")
	seedStudent(t, db, "alice", "sch-a", 3)

	users, total, err := ListAllUsers(db, adminDTO.ListUsersQuery{Role: constants.RoleStudent}, defaultPaging())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || users[0].Role != constants.RoleStudent {
		t.Fatalf("role filter failed: total=%d", total)
	}

	if _, _, err := ListAllUsers(db, adminDTO.ListUsersQuery{Role: "teacher"}, defaultPaging()); err == nil {
		t.Fatal("expected invalid role rejection")
	}

	_, total, err = ListAllUsers(db, adminDTO.ListUsersQuery{Search: "ALICE"}, defaultPaging())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 {
		t.Fatalf("case-insensitive search failed: %d", total)
	}
}

func TestBulkUpdateStudents(t *testing.T) {
	db := setupTestDB(t, "admin_bulk")
	s1 := seedStudent(t, db, "alice", "sch-a", 3)
	s2 := seedStudent(t, db, "bob", "sch-a", 3)
	ghost := uuid.New()

	bus := "B-7"
	result, err := BulkUpdateStudents(db, &adminDTO.BulkUpdateStudentsRequest{
		StudentIDs: []uuid.UUID{s1.ID, s2.ID, ghost},
		Update:     studentDTO.UpdateStudentRequest{BusNumber: &bus},
	}, "sch-a")
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if result.Updated != 2 || len(result.Failed) != 1 {
		t.Fatalf("expected 2 ok / 1 failed, got %d/%d", result.Updated, len(result.Failed))
	}

	var reloaded userModel.UserModel
	if err := db.First(&reloaded, "id = ?", s1.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.BusInfo.Number == nil || *reloaded.BusInfo.Number != "B-7" {
		t.Fatal("bus not applied")
	}
}

func TestExportStudents(t *testing.T) {
	db := setupTestDB(t, "admin_export")
	seedStudent(t, db, "alice", "sch-a", 3)
	seedStudent(t, db, "bob", "sch-a", 5)
	seedStudent(t, db, "carol", "sch-b", 5)

	f, err := ExportStudents(db, "sch-a")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	rows, err := f.GetRows("Students")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	// Header plus the two sch-a students.
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Student ID" {
		t.Fatalf("unexpected header %q", rows[0][0])
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty workbook")
	}
}

func TestGetUserStatsByRole(t *testing.T) {
	db := setupTestDB(t, "admin_role_stats")
	a := seedSchoolAdmin(t, db, "admina", "sch-a")
	seedSchoolAdmin(t, db, "adminb", "sch-b")

	sys := &userModel.UserModel{ID: uuid.New(), Role: constants.RoleSystemAdmin}
	if _, err := ToggleUserStatus(db, a.ID, false, sys); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	stats, err := GetUserStatsByRole(db)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[constants.RoleSchoolAdmin]["active"] != 1 || stats[constants.RoleSchoolAdmin]["inactive"] != 1 {
		t.Fatalf("unexpected buckets: %v", stats)
	}
}
