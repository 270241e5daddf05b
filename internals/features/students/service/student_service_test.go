package service

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	studentDTO "bustrack_backend/internals/features/students/dto"
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
	if err := db.AutoMigrate(&userModel.UserModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedParent(t *testing.T, db *gorm.DB, username string) *userModel.UserModel {
	t.Helper()
	rel := "mother"
	parent, err := authService.CreateUser(db, &authDTO.SignupRequest{
		UserName:   username,
		Email:      username + "@example.com",
		Password:   "secret123",
		FirstName:  "Pat",
		LastName:   "Doe",
		Role:       constants.RoleParent,
		ParentInfo: &authDTO.ParentInfoInput{Relationship: &rel},
	})
	if err != nil {
		t.Fatalf("seed parent: %v", err)
	}
	return parent
}

func seedSchoolAdmin(t *testing.T, db *gorm.DB, username, schoolID string) *userModel.UserModel {
	t.Helper()
	name := "School " + schoolID
	admin, err := authService.CreateUser(db, &authDTO.SignupRequest{
		UserName:  username,
		Email:     username + "@example.com",
		Password:  "secret123",
		FirstName: "Alex",
		LastName:  "Admin",
		Role:      constants.RoleSchoolAdmin,
		AdminInfo: &authDTO.AdminInfoInput{SchoolID: &schoolID, SchoolName: &name},
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return admin
}

func seedStudent(t *testing.T, db *gorm.DB, username string, parent *userModel.UserModel, actor *userModel.UserModel, grade int, bus string) *userModel.UserModel {
	t.Helper()
	req := &authDTO.SignupRequest{
		UserName:    username,
		Email:       username + "@example.com",
		Password:    "secret123",
		FirstName:   "Sam",
		LastName:    username,
		Role:        constants.RoleStudent,
		StudentInfo: &authDTO.StudentInfoInput{Grade: &grade, ParentID: &parent.ID},
	}
	if bus != "" {
		req.BusInfo = &authDTO.BusInfoInput{Number: &bus}
	}
	student, err := CreateStudent(db, req, actor)
	if err != nil {
		t.Fatalf("seed student %s: %v", username, err)
	}
	return student
}

func defaultPaging() helper.Paging {
	return helper.Paging{Page: 1, PerPage: 50, Offset: 0}
}

func TestCreateStudentStampsAdminSchool(t *testing.T) {
	db := setupTestDB(t, "students_create")
	admin := seedSchoolAdmin(t, db, "admina", "sch-a")
	parent := seedParent(t, db, "pat")

	student := seedStudent(t, db, "sam", parent, admin, 4, "B-12")
	if student.SchoolID() != "sch-a" {
		t.Fatalf("expected school stamp sch-a, got %q", student.SchoolID())
	}

	// The parent's children list was synced in the same call.
	var reloaded userModel.UserModel
	if err := db.First(&reloaded, "id = ?", parent.ID).Error; err != nil {
		t.Fatalf("reload parent: %v", err)
	}
	if !reloaded.ParentInfo.HasChild(student.ID) {
		t.Fatal("parent children list not updated")
	}
}

func TestListStudentsFiltersAndScope(t *testing.T) {
	db := setupTestDB(t, "students_list")
	adminA := seedSchoolAdmin(t, db, "admina", "sch-a")
	adminB := seedSchoolAdmin(t, db, "adminb", "sch-b")
	parent := seedParent(t, db, "pat")

	seedStudent(t, db, "alice", parent, adminA, 3, "B-1")
	seedStudent(t, db, "bob", parent, adminA, 4, "B-2")
	seedStudent(t, db, "carol", parent, adminB, 3, "B-1")

	// Tenant scope: sch-a sees two rows.
	rows, total, err := ListStudents(db, studentDTO.ListStudentsQuery{SchoolID: "sch-a"}, defaultPaging())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("expected 2 for sch-a, got total=%d rows=%d", total, len(rows))
	}

	// Unscoped (system admin view) sees all three.
	_, total, err = ListStudents(db, studentDTO.ListStudentsQuery{}, defaultPaging())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 unscoped, got %d", total)
	}

	grade := 3
	_, total, err = ListStudents(db, studentDTO.ListStudentsQuery{Grade: &grade}, defaultPaging())
	if err != nil {
		t.Fatalf("grade filter: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 third graders, got %d", total)
	}

	_, total, err = ListStudents(db, studentDTO.ListStudentsQuery{Bus: "B-1"}, defaultPaging())
	if err != nil {
		t.Fatalf("bus filter: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 on B-1, got %d", total)
	}

	_, total, err = ListStudents(db, studentDTO.ListStudentsQuery{Search: "ALICE"}, defaultPaging())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 {
		t.Fatalf("case-insensitive search expected 1, got %d", total)
	}

	if _, _, err := ListStudents(db, studentDTO.ListStudentsQuery{Status: "parked"}, defaultPaging()); err == nil {
		t.Fatal("expected invalid status to be rejected")
	}
}

func TestGetStudentByIDRespectsScope(t *testing.T) {
	db := setupTestDB(t, "students_get")
	adminA := seedSchoolAdmin(t, db, "admina", "sch-a")
	parent := seedParent(t, db, "pat")
	student := seedStudent(t, db, "sam", parent, adminA, 4, "")

	if _, err := GetStudentByID(db, student.ID, "sch-a"); err != nil {
		t.Fatalf("own-school lookup: %v", err)
	}

	// Another school's scope cannot see the row at all.
	_, err := GetStudentByID(db, student.ID, "sch-b")
	if err == nil {
		t.Fatal("expected not found across tenants")
	}
	if fe, ok := err.(*fiber.Error); !ok || fe.Code != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestAssignAndRemoveParent(t *testing.T) {
	db := setupTestDB(t, "students_parent_link")
	admin := seedSchoolAdmin(t, db, "admina", "sch-a")
	p1 := seedParent(t, db, "pat")
	p2 := seedParent(t, db, "paula")
	student := seedStudent(t, db, "sam", p1, admin, 4, "")

	// Re-assigning moves both sides.
	if _, err := AssignStudentToParent(db, student.ID, p2.ID, "sch-a"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	var reloadedP1, reloadedP2, reloadedStudent userModel.UserModel
	if err := db.First(&reloadedP1, "id = ?", p1.ID).Error; err != nil {
		t.Fatalf("reload p1: %v", err)
	}
	if err := db.First(&reloadedP2, "id = ?", p2.ID).Error; err != nil {
		t.Fatalf("reload p2: %v", err)
	}
	if err := db.First(&reloadedStudent, "id = ?", student.ID).Error; err != nil {
		t.Fatalf("reload student: %v", err)
	}
	if reloadedP1.ParentInfo.HasChild(student.ID) {
		t.Fatal("old parent still lists the child")
	}
	if !reloadedP2.ParentInfo.HasChild(student.ID) {
		t.Fatal("new parent missing the child")
	}
	if reloadedStudent.StudentInfo.ParentID == nil || *reloadedStudent.StudentInfo.ParentID != p2.ID {
		t.Fatal("student parent_id not moved")
	}

	// Removing clears both sides.
	if _, err := RemoveStudentFromParent(db, student.ID, "sch-a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := db.First(&reloadedP2, "id = ?", p2.ID).Error; err != nil {
		t.Fatalf("reload p2: %v", err)
	}
	if err := db.First(&reloadedStudent, "id = ?", student.ID).Error; err != nil {
		t.Fatalf("reload student: %v", err)
	}
	if reloadedP2.ParentInfo.HasChild(student.ID) {
		t.Fatal("parent still lists removed child")
	}
	if reloadedStudent.StudentInfo.ParentID != nil {
		t.Fatal("student parent_id not cleared")
	}

	// Removing again is a 400.
	if _, err := RemoveStudentFromParent(db, student.ID, "sch-a"); err == nil {
		t.Fatal("expected error when no parent assigned")
	}
}

func TestDeleteStudentSoftAndUnlink(t *testing.T) {
	db := setupTestDB(t, "students_delete")
	admin := seedSchoolAdmin(t, db, "admina", "sch-a")
	parent := seedParent(t, db, "pat")
	student := seedStudent(t, db, "sam", parent, admin, 4, "")

	if err := DeleteStudent(db, student.ID, "sch-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The row survives but is inactive and invisible to the list.
	var reloaded userModel.UserModel
	if err := db.First(&reloaded, "id = ?", student.ID).Error; err != nil {
		t.Fatalf("row should survive soft delete: %v", err)
	}
	if reloaded.IsActive {
		t.Fatal("expected is_active false")
	}
	if _, err := GetStudentByID(db, student.ID, "sch-a"); err == nil {
		t.Fatal("deleted student should not be found")
	}

	var reloadedParent userModel.UserModel
	if err := db.First(&reloadedParent, "id = ?", parent.ID).Error; err != nil {
		t.Fatalf("reload parent: %v", err)
	}
	if reloadedParent.ParentInfo.HasChild(student.ID) {
		t.Fatal("parent still lists deleted child")
	}
}

func TestGetStudentsByParentAndAccess(t *testing.T) {
	db := setupTestDB(t, "students_by_parent")
	admin := seedSchoolAdmin(t, db, "admina", "sch-a")
	p1 := seedParent(t, db, "pat")
	p2 := seedParent(t, db, "paula")
	s1 := seedStudent(t, db, "sam", p1, admin, 4, "")
	seedStudent(t, db, "sue", p1, admin, 5, "")

	children, err := GetStudentsByParent(db, p1.ID)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}

	ok, err := CheckParentAccess(db, p1.ID, s1.ID)
	if err != nil || !ok {
		t.Fatalf("expected linked parent access, got ok=%v err=%v", ok, err)
	}
	ok, err = CheckParentAccess(db, p2.ID, s1.ID)
	if err != nil || ok {
		t.Fatalf("expected unlinked parent denial, got ok=%v err=%v", ok, err)
	}
}

func TestGetStudentStats(t *testing.T) {
	db := setupTestDB(t, "students_stats")
	admin := seedSchoolAdmin(t, db, "admina", "sch-a")
	parent := seedParent(t, db, "pat")
	seedStudent(t, db, "alice", parent, admin, 3, "B-1")
	seedStudent(t, db, "bob", parent, admin, 3, "B-1")
	seedStudent(t, db, "carol", parent, admin, 5, "")

	stats, err := GetStudentStats(db, "sch-a")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("expected 3 total, got %d", stats.Total)
	}
	if stats.ByGrade["3"] != 2 || stats.ByGrade["5"] != 1 {
		t.Fatalf("grade buckets wrong: %v", stats.ByGrade)
	}
	if stats.ByBus["B-1"] != 2 {
		t.Fatalf("bus buckets wrong: %v", stats.ByBus)
	}
	if stats.ByStatus[userModel.TrackingStatusActive] != 3 {
		t.Fatalf("status buckets wrong: %v", stats.ByStatus)
	}
	if stats.Unassigned != 0 {
		t.Fatalf("expected 0 unassigned, got %d", stats.Unassigned)
	}
}

func TestUpdateStudent(t *testing.T) {
	db := setupTestDB(t, "students_update")
	admin := seedSchoolAdmin(t, db, "admina", "sch-a")
	parent := seedParent(t, db, "pat")
	student := seedStudent(t, db, "sam", parent, admin, 4, "")

	grade := 5
	bus := "B-9"
	updated, err := UpdateStudent(db, student.ID, &studentDTO.UpdateStudentRequest{
		Grade:     &grade,
		BusNumber: &bus,
	}, "sch-a")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.StudentInfo.Grade == nil || *updated.StudentInfo.Grade != 5 {
		t.Fatal("grade not applied")
	}
	if updated.BusInfo.Number == nil || *updated.BusInfo.Number != "B-9" {
		t.Fatal("bus not applied")
	}

	// Unknown id inside the scope is a 404.
	if _, err := UpdateStudent(db, uuid.New(), &studentDTO.UpdateStudentRequest{Grade: &grade}, "sch-a"); err == nil {
		t.Fatal("expected not found")
	}
}
