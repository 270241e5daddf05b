package service

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	studentDTO "bustrack_backend/internals/features/students/dto"
	authDTO "bustrack_backend/internals/features/users/auth/dto"
	authService "bustrack_backend/internals/features/users/auth/service"
	userModel "bustrack_backend/internals/features/users/user/model"
	helper "bustrack_backend/internals/helpers"
)

// studentScope narrows a query to active students, optionally to one school.
func studentScope(db *gorm.DB, schoolID string) *gorm.DB {
	q := db.Model(&userModel.UserModel{}).
		Where("role = ? AND is_active = ?", constants.RoleStudent, true)
	if schoolID != "" {
		q = q.Where("admin_school_id = ?", schoolID)
	}
	return q
}

// ListStudents returns a filtered page of active students. schoolID comes
// from the caller's tenant scope, never from the request.
func ListStudents(db *gorm.DB, q studentDTO.ListStudentsQuery, paging helper.Paging) ([]userModel.UserModel, int64, error) {
	query := studentScope(db, q.SchoolID)

	if q.Search != "" {
		pattern := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(user_name) LIKE ? OR LOWER(student_external_id) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if q.Grade != nil {
		query = query.Where("student_grade = ?", *q.Grade)
	}
	if q.Section != "" {
		query = query.Where("student_section = ?", q.Section)
	}
	if q.Bus != "" {
		query = query.Where("bus_number = ?", q.Bus)
	}
	if q.Status != "" {
		if !userModel.IsValidTrackingStatus(q.Status) {
			return nil, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid tracking status")
		}
		query = query.Where("tracking_status = ?", q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusInternalServerError, "failed to count students")
	}

	var students []userModel.UserModel
	if err := query.
		Order("last_name ASC, first_name ASC").
		Limit(paging.PerPage).
		Offset(paging.Offset).
		Find(&students).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusInternalServerError, "failed to list students")
	}
	return students, total, nil
}

// GetStudentByID loads one active student, enforcing the school scope.
func GetStudentByID(db *gorm.DB, id uuid.UUID, schoolID string) (*userModel.UserModel, error) {
	var student userModel.UserModel
	err := studentScope(db, schoolID).Where("id = ?", id).First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Student not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load student")
	}
	return &student, nil
}

// CreateStudent creates a student account on behalf of an admin. A school
// admin's own school is stamped onto the row regardless of the request.
func CreateStudent(db *gorm.DB, req *authDTO.SignupRequest, actor *userModel.UserModel) (*userModel.UserModel, error) {
	req.Role = constants.RoleStudent
	if actor.Role == constants.RoleSchoolAdmin {
		if req.AdminInfo == nil {
			req.AdminInfo = &authDTO.AdminInfoInput{}
		}
		req.AdminInfo.SchoolID = actor.AdminInfo.SchoolID
		req.AdminInfo.SchoolName = actor.AdminInfo.SchoolName
	}

	student, err := authService.CreateUser(db, req)
	if err != nil {
		return nil, err
	}

	// Keep the parent's children list in sync with the new row.
	if student.StudentInfo.ParentID != nil {
		if err := linkParent(db, student, *student.StudentInfo.ParentID); err != nil {
			return nil, err
		}
	}
	return student, nil
}

// UpdateStudent applies a partial update inside the caller's school scope.
func UpdateStudent(db *gorm.DB, id uuid.UUID, req *studentDTO.UpdateStudentRequest, schoolID string) (*userModel.UserModel, error) {
	student, err := GetStudentByID(db, id, schoolID)
	if err != nil {
		return nil, err
	}

	req.Apply(student)
	if err := db.Save(student).Error; err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "duplicate") || strings.Contains(low, "unique") {
			return nil, fiber.NewError(fiber.StatusConflict, "Student ID already in use")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to update student")
	}
	return student, nil
}

// DeleteStudent deactivates a student. The row stays for history; the parent
// link is removed so the child no longer shows up for the parent.
func DeleteStudent(db *gorm.DB, id uuid.UUID, schoolID string) error {
	student, err := GetStudentByID(db, id, schoolID)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if student.StudentInfo.ParentID != nil {
			if err := unlinkParent(tx, student, *student.StudentInfo.ParentID); err != nil {
				return err
			}
		}
		if err := tx.Model(&userModel.UserModel{}).
			Where("id = ?", student.ID).
			Update("is_active", false).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to delete student")
		}
		return nil
	})
}

// GetStudentsByParent returns the active children of a parent.
func GetStudentsByParent(db *gorm.DB, parentID uuid.UUID) ([]userModel.UserModel, error) {
	var students []userModel.UserModel
	if err := studentScope(db, "").
		Where("student_parent_id = ?", parentID).
		Order("first_name ASC").
		Find(&students).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load children")
	}
	return students, nil
}

// CheckParentAccess reports whether the student is linked to the parent.
func CheckParentAccess(db *gorm.DB, parentID, studentID uuid.UUID) (bool, error) {
	var count int64
	if err := studentScope(db, "").
		Where("id = ? AND student_parent_id = ?", studentID, parentID).
		Count(&count).Error; err != nil {
		return false, fiber.NewError(fiber.StatusInternalServerError, "failed to check parent access")
	}
	return count > 0, nil
}

// GetStudentsByBus returns the active students riding one bus.
func GetStudentsByBus(db *gorm.DB, busNumber, schoolID string) ([]userModel.UserModel, error) {
	var students []userModel.UserModel
	if err := studentScope(db, schoolID).
		Where("bus_number = ?", busNumber).
		Order("last_name ASC, first_name ASC").
		Find(&students).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load bus roster")
	}
	return students, nil
}

// GetStudentsByGrade returns the active students in a grade, optionally one
// section.
func GetStudentsByGrade(db *gorm.DB, grade int, section, schoolID string) ([]userModel.UserModel, error) {
	query := studentScope(db, schoolID).Where("student_grade = ?", grade)
	if section != "" {
		query = query.Where("student_section = ?", section)
	}

	var students []userModel.UserModel
	if err := query.
		Order("last_name ASC, first_name ASC").
		Find(&students).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load grade roster")
	}
	return students, nil
}

// AssignStudentToParent links both sides in one transaction: the student's
// parent_id and the parent's children list.
func AssignStudentToParent(db *gorm.DB, studentID, parentID uuid.UUID, schoolID string) (*userModel.UserModel, error) {
	student, err := GetStudentByID(db, studentID, schoolID)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		// Move away from a previous parent first.
		if student.StudentInfo.ParentID != nil && *student.StudentInfo.ParentID != parentID {
			if err := unlinkParent(tx, student, *student.StudentInfo.ParentID); err != nil {
				return err
			}
		}
		if err := linkParent(tx, student, parentID); err != nil {
			return err
		}
		student.StudentInfo.ParentID = &parentID
		if err := tx.Model(&userModel.UserModel{}).
			Where("id = ?", student.ID).
			Update("student_parent_id", parentID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to assign parent")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// RemoveStudentFromParent clears both sides of the link.
func RemoveStudentFromParent(db *gorm.DB, studentID uuid.UUID, schoolID string) (*userModel.UserModel, error) {
	student, err := GetStudentByID(db, studentID, schoolID)
	if err != nil {
		return nil, err
	}
	if student.StudentInfo.ParentID == nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Student has no parent assigned")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := unlinkParent(tx, student, *student.StudentInfo.ParentID); err != nil {
			return err
		}
		student.StudentInfo.ParentID = nil
		if err := tx.Model(&userModel.UserModel{}).
			Where("id = ?", student.ID).
			Update("student_parent_id", nil).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to remove parent")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

func linkParent(db *gorm.DB, student *userModel.UserModel, parentID uuid.UUID) error {
	var parent userModel.UserModel
	err := db.Where("id = ? AND role = ? AND is_active = ?", parentID, constants.RoleParent, true).
		First(&parent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Parent not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load parent")
	}

	parent.ParentInfo.AddChild(student.ID)
	if err := db.Model(&userModel.UserModel{}).
		Where("id = ?", parent.ID).
		Update("parent_children", parent.ParentInfo.Children).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to update parent")
	}
	return nil
}

func unlinkParent(db *gorm.DB, student *userModel.UserModel, parentID uuid.UUID) error {
	var parent userModel.UserModel
	err := db.Where("id = ? AND role = ?", parentID, constants.RoleParent).
		First(&parent).Error
	if err != nil {
		// A dangling parent id is not fatal for unlinking.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load parent")
	}

	parent.ParentInfo.RemoveChild(student.ID)
	if err := db.Model(&userModel.UserModel{}).
		Where("id = ?", parent.ID).
		Update("parent_children", parent.ParentInfo.Children).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to update parent")
	}
	return nil
}

// GetStudentStats aggregates the active-student counts for the dashboard.
func GetStudentStats(db *gorm.DB, schoolID string) (*studentDTO.StudentStats, error) {
	stats := &studentDTO.StudentStats{
		ByGrade:  map[string]int64{},
		ByStatus: map[string]int64{},
		ByBus:    map[string]int64{},
	}

	if err := studentScope(db, schoolID).Count(&stats.Total).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count students")
	}

	type bucket struct {
		Key   *string
		Count int64
	}

	var grades []bucket
	if err := studentScope(db, schoolID).
		Select("CAST(student_grade AS TEXT) AS key, COUNT(*) AS count").
		Group("student_grade").
		Scan(&grades).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate grades")
	}
	for _, b := range grades {
		if b.Key != nil {
			stats.ByGrade[*b.Key] = b.Count
		}
	}

	var statuses []bucket
	if err := studentScope(db, schoolID).
		Select("tracking_status AS key, COUNT(*) AS count").
		Group("tracking_status").
		Scan(&statuses).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate statuses")
	}
	for _, b := range statuses {
		if b.Key != nil && *b.Key != "" {
			stats.ByStatus[*b.Key] = b.Count
		}
	}

	var buses []bucket
	if err := studentScope(db, schoolID).
		Select("bus_number AS key, COUNT(*) AS count").
		Where("bus_number IS NOT NULL").
		Group("bus_number").
		Scan(&buses).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate buses")
	}
	for _, b := range buses {
		if b.Key != nil {
			stats.ByBus[*b.Key] = b.Count
		}
	}

	if err := studentScope(db, schoolID).
		Where("student_parent_id IS NULL").
		Count(&stats.Unassigned).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count unassigned students")
	}
	return stats, nil
}
