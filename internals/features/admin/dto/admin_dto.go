package dto

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"

	studentDTO "bustrack_backend/internals/features/students/dto"
	userModel "bustrack_backend/internals/features/users/user/model"
)

/* ==========================
   Requests
========================== */

type UpdateAdminRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,min=1"`
	Phone     *string `json:"phone,omitempty"`

	Permissions []string `json:"permissions,omitempty"`
	Department  *string  `json:"department,omitempty"`
	EmployeeID  *string  `json:"employee_id,omitempty"`
	AccessLevel *string  `json:"access_level,omitempty" validate:"omitempty,oneof=full limited readonly"`
}

type ListUsersQuery struct {
	Role     string
	Search   string
	IsActive *bool
	SchoolID string
}

// BulkUpdateStudentsRequest applies one partial update to many students.
type BulkUpdateStudentsRequest struct {
	StudentIDs []uuid.UUID                     `json:"student_ids" validate:"required,min=1"`
	Update     studentDTO.UpdateStudentRequest `json:"update" validate:"required"`
}

type ToggleStatusRequest struct {
	IsActive bool `json:"is_active"`
}

/* ==========================
   Responses
========================== */

type BulkUpdateResult struct {
	Updated int64             `json:"updated"`
	Failed  []BulkUpdateError `json:"failed,omitempty"`
}

type BulkUpdateError struct {
	StudentID uuid.UUID `json:"student_id"`
	Reason    string    `json:"reason"`
}

// DashboardStats is the school-scoped admin landing page payload.
type DashboardStats struct {
	Students      *studentDTO.StudentStats `json:"students"`
	Parents       int64                    `json:"parents"`
	Emergencies   int64                    `json:"active_emergencies"`
	LockedUsers   int64                    `json:"locked_users"`
	InactiveUsers int64                    `json:"inactive_users"`
}

// SystemOverview is the cross-tenant payload for systemAdmin.
type SystemOverview struct {
	TotalUsers    int64            `json:"total_users"`
	ByRole        map[string]int64 `json:"by_role"`
	Schools       int64            `json:"schools"`
	ActiveUsers   int64            `json:"active_users"`
	VerifiedUsers int64            `json:"verified_users"`
}

// Apply copies the present fields onto an admin row.
func (r *UpdateAdminRequest) Apply(u *userModel.UserModel) {
	if r.FirstName != nil {
		u.FirstName = *r.FirstName
	}
	if r.LastName != nil {
		u.LastName = *r.LastName
	}
	if r.Phone != nil {
		u.Phone = r.Phone
	}
	if r.Permissions != nil {
		u.AdminInfo.Permissions = datatypes.NewJSONSlice(r.Permissions)
	}
	if r.Department != nil {
		u.AdminInfo.Department = r.Department
	}
	if r.EmployeeID != nil {
		u.AdminInfo.EmployeeID = r.EmployeeID
	}
	if r.AccessLevel != nil {
		u.AdminInfo.AccessLevel = *r.AccessLevel
	}
}
