package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	adminDTO "bustrack_backend/internals/features/admin/dto"
	studentService "bustrack_backend/internals/features/students/service"
	trackingModel "bustrack_backend/internals/features/tracking/model"
	authDTO "bustrack_backend/internals/features/users/auth/dto"
	authService "bustrack_backend/internals/features/users/auth/service"
	userModel "bustrack_backend/internals/features/users/user/model"
	helper "bustrack_backend/internals/helpers"
)

func adminScope(db *gorm.DB, schoolID string) *gorm.DB {
	q := db.Model(&userModel.UserModel{}).
		Where("role = ? AND is_active = ?", constants.RoleSchoolAdmin, true)
	if schoolID != "" {
		q = q.Where("admin_school_id = ?", schoolID)
	}
	return q
}

// ListAdmins returns the active school admins, scoped when the caller is one.
func ListAdmins(db *gorm.DB, schoolID, search string) ([]userModel.UserModel, error) {
	query := adminScope(db, schoolID)
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(admin_school_name) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	var admins []userModel.UserModel
	if err := query.Order("last_name ASC, first_name ASC").Find(&admins).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to list admins")
	}
	return admins, nil
}

// GetAdminByID loads one active school admin.
func GetAdminByID(db *gorm.DB, id uuid.UUID, schoolID string) (*userModel.UserModel, error) {
	var admin userModel.UserModel
	err := adminScope(db, schoolID).Where("id = ?", id).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Admin not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load admin")
	}
	return &admin, nil
}

// CreateAdmin creates a school admin account. Only systemAdmin reaches this.
func CreateAdmin(db *gorm.DB, req *authDTO.SignupRequest) (*userModel.UserModel, error) {
	req.Role = constants.RoleSchoolAdmin
	return authService.CreateUser(db, req)
}

// UpdateAdmin applies a partial update to a school admin row.
func UpdateAdmin(db *gorm.DB, id uuid.UUID, req *adminDTO.UpdateAdminRequest, schoolID string) (*userModel.UserModel, error) {
	admin, err := GetAdminByID(db, id, schoolID)
	if err != nil {
		return nil, err
	}

	req.Apply(admin)
	if err := db.Save(admin).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to update admin")
	}
	return admin, nil
}

// DeleteAdmin deactivates a school admin. Self-deletion is rejected.
func DeleteAdmin(db *gorm.DB, id uuid.UUID, actor *userModel.UserModel) error {
	if actor.ID == id {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot delete your own account")
	}

	admin, err := GetAdminByID(db, id, "")
	if err != nil {
		return err
	}
	if err := db.Model(&userModel.UserModel{}).
		Where("id = ?", admin.ID).
		Update("is_active", false).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to delete admin")
	}
	return nil
}

// GetSchoolAdminsBySchool lists the active admins of one school.
func GetSchoolAdminsBySchool(db *gorm.DB, schoolID string) ([]userModel.UserModel, error) {
	if schoolID == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "School ID required")
	}
	return ListAdmins(db, schoolID, "")
}

// GetDashboardStats builds the school-scoped landing page numbers.
func GetDashboardStats(db *gorm.DB, schoolID string) (*adminDTO.DashboardStats, error) {
	stats := &adminDTO.DashboardStats{}

	students, err := studentService.GetStudentStats(db, schoolID)
	if err != nil {
		return nil, err
	}
	stats.Students = students
	stats.Emergencies = students.ByStatus[userModel.TrackingStatusEmergency]

	// Parents are not school-scoped; only count them for the global view.
	if schoolID == "" {
		if err := db.Model(&userModel.UserModel{}).
			Where("role = ? AND is_active = ?", constants.RoleParent, true).
			Count(&stats.Parents).Error; err != nil {
			return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count parents")
		}
	}

	now := time.Now()
	if err := db.Model(&userModel.UserModel{}).
		Where("lock_until IS NOT NULL AND lock_until > ?", now).
		Count(&stats.LockedUsers).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count locked users")
	}
	if err := db.Model(&userModel.UserModel{}).
		Where("is_active = ?", false).
		Count(&stats.InactiveUsers).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count inactive users")
	}
	return stats, nil
}

// GetSystemOverview builds the cross-tenant numbers for systemAdmin.
func GetSystemOverview(db *gorm.DB) (*adminDTO.SystemOverview, error) {
	overview := &adminDTO.SystemOverview{ByRole: map[string]int64{}}

	if err := db.Model(&userModel.UserModel{}).Count(&overview.TotalUsers).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count users")
	}

	type bucket struct {
		Key   string
		Count int64
	}
	var roles []bucket
	if err := db.Model(&userModel.UserModel{}).
		Select("role AS key, COUNT(*) AS count").
		Group("role").
		Scan(&roles).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate roles")
	}
	for _, b := range roles {
		overview.ByRole[b.Key] = b.Count
	}

	if err := db.Model(&userModel.UserModel{}).
		Where("role = ? AND admin_school_id IS NOT NULL", constants.RoleSchoolAdmin).
		Distinct("admin_school_id").
		Count(&overview.Schools).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count schools")
	}
	if err := db.Model(&userModel.UserModel{}).
		Where("is_active = ?", true).
		Count(&overview.ActiveUsers).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count active users")
	}
	if err := db.Model(&userModel.UserModel{}).
		Where("is_verified = ?", true).
		Count(&overview.VerifiedUsers).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count verified users")
	}
	return overview, nil
}

// ListAllUsers pages every account with optional filters. systemAdmin sees
// everything; schoolAdmin only its own school's rows.
func ListAllUsers(db *gorm.DB, q adminDTO.ListUsersQuery, paging helper.Paging) ([]userModel.UserModel, int64, error) {
	query := db.Model(&userModel.UserModel{})

	if q.Role != "" {
		if !constants.IsValidRole(q.Role) {
			return nil, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid role filter")
		}
		query = query.Where("role = ?", q.Role)
	}
	if q.SchoolID != "" {
		query = query.Where("admin_school_id = ?", q.SchoolID)
	}
	if q.IsActive != nil {
		query = query.Where("is_active = ?", *q.IsActive)
	}
	if q.Search != "" {
		pattern := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(user_name) LIKE ? OR LOWER(email) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusInternalServerError, "failed to count users")
	}

	var users []userModel.UserModel
	if err := query.
		Order("created_at DESC").
		Limit(paging.PerPage).
		Offset(paging.Offset).
		Find(&users).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusInternalServerError, "failed to list users")
	}
	return users, total, nil
}

// ToggleUserStatus flips is_active on any account except the actor's own.
func ToggleUserStatus(db *gorm.DB, id uuid.UUID, isActive bool, actor *userModel.UserModel) (*userModel.UserModel, error) {
	if actor.ID == id && !isActive {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Cannot deactivate your own account")
	}

	var user userModel.UserModel
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}

	// School admins may only touch accounts in their own school.
	if actor.Role == constants.RoleSchoolAdmin && !actor.CanAccessSchool(user.SchoolID()) {
		return nil, fiber.NewError(fiber.StatusForbidden, "Access denied to this school")
	}

	if err := db.Model(&userModel.UserModel{}).
		Where("id = ?", user.ID).
		Update("is_active", isActive).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to update user status")
	}
	user.IsActive = isActive
	return &user, nil
}

// GetUserStatsByRole counts active and inactive accounts per role.
func GetUserStatsByRole(db *gorm.DB) (map[string]map[string]int64, error) {
	type bucket struct {
		Role   string
		Active bool
		Count  int64
	}
	var rows []bucket
	if err := db.Model(&userModel.UserModel{}).
		Select("role, is_active AS active, COUNT(*) AS count").
		Group("role, is_active").
		Scan(&rows).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate users")
	}

	stats := map[string]map[string]int64{}
	for _, r := range rows {
		s, ok := stats[r.Role]
		if !ok {
			s = map[string]int64{}
			stats[r.Role] = s
		}
		if r.Active {
			s["active"] = r.Count
		} else {
			s["inactive"] = r.Count
		}
	}
	return stats, nil
}

// BulkUpdateStudents applies one partial update to many students, best
// effort, inside the caller's school scope.
func BulkUpdateStudents(db *gorm.DB, req *adminDTO.BulkUpdateStudentsRequest, schoolID string) (*adminDTO.BulkUpdateResult, error) {
	result := &adminDTO.BulkUpdateResult{}
	for _, id := range req.StudentIDs {
		if _, err := studentService.UpdateStudent(db, id, &req.Update, schoolID); err != nil {
			reason := "update failed"
			var fe *fiber.Error
			if errors.As(err, &fe) {
				reason = fe.Message
			}
			result.Failed = append(result.Failed, adminDTO.BulkUpdateError{
				StudentID: id,
				Reason:    reason,
			})
			continue
		}
		result.Updated++
	}
	return result, nil
}

// GetRecentActivity pages the newest tracking events for the school, the
// closest thing to an audit trail the system keeps.
func GetRecentActivity(db *gorm.DB, schoolID string, paging helper.Paging) ([]trackingModel.TrackingEvent, int64, error) {
	query := db.Model(&trackingModel.TrackingEvent{})
	if schoolID != "" {
		query = query.Where(
			"student_id IN (?)",
			db.Model(&userModel.UserModel{}).
				Select("id").
				Where("role = ? AND admin_school_id = ?", constants.RoleStudent, schoolID),
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusInternalServerError, "failed to count activity")
	}

	var events []trackingModel.TrackingEvent
	if err := query.
		Order("created_at DESC").
		Limit(paging.PerPage).
		Offset(paging.Offset).
		Find(&events).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusInternalServerError, "failed to load activity")
	}
	return events, total, nil
}

var exportHeaders = []string{
	"Student ID", "First Name", "Last Name", "Username", "Email",
	"Grade", "Section", "Bus Number", "Parent ID", "Tracking Status", "Last Updated",
}

// ExportStudents renders the school's roster as an xlsx workbook.
func ExportStudents(db *gorm.DB, schoolID string) (*excelize.File, error) {
	var students []userModel.UserModel
	query := db.Model(&userModel.UserModel{}).
		Where("role = ? AND is_active = ?", constants.RoleStudent, true)
	if schoolID != "" {
		query = query.Where("admin_school_id = ?", schoolID)
	}
	if err := query.Order("last_name ASC, first_name ASC").Find(&students).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load students")
	}

	f := excelize.NewFile()
	const sheet = "Students"
	f.SetSheetName("Sheet1", sheet)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, s := range students {
		values := []any{
			deref(s.StudentInfo.ExternalID),
			s.FirstName,
			s.LastName,
			s.UserName,
			s.Email,
			derefInt(s.StudentInfo.Grade),
			deref(s.StudentInfo.Section),
			deref(s.BusInfo.Number),
			derefUUID(s.StudentInfo.ParentID),
			s.TrackingInfo.Status,
			derefTime(s.TrackingInfo.LastUpdated),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	return f, nil
}

// ExportFileName builds the attachment name for a roster export.
func ExportFileName(schoolID string) string {
	stamp := time.Now().Format("2006-01-02")
	if schoolID == "" {
		return fmt.Sprintf("students_%s.xlsx", stamp)
	}
	return fmt.Sprintf("students_%s_%s.xlsx", schoolID, stamp)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) any {
	if i == nil {
		return ""
	}
	return *i
}

func derefUUID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func derefTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
