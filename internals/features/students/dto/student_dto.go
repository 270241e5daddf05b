package dto

import (
	"time"

	"github.com/google/uuid"

	userModel "bustrack_backend/internals/features/users/user/model"
)

/* ==========================
   Requests
========================== */

// ListStudentsQuery carries the supported list filters. All optional.
type ListStudentsQuery struct {
	Search   string
	Grade    *int
	Section  string
	Bus      string
	Status   string
	SchoolID string
}

type UpdateStudentRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,min=1"`
	Phone     *string `json:"phone,omitempty"`

	ExternalID  *string    `json:"student_id,omitempty" validate:"omitempty,max=50"`
	Grade       *int       `json:"grade,omitempty" validate:"omitempty,min=1,max=12"`
	Section     *string    `json:"section,omitempty" validate:"omitempty,max=10"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      *string    `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`

	BusNumber      *string `json:"bus_number,omitempty" validate:"omitempty,max=20"`
	PickupLocation *string `json:"pickup_location,omitempty"`
	DropLocation   *string `json:"drop_location,omitempty"`
	PickupTime     *string `json:"pickup_time,omitempty"`
	DropTime       *string `json:"drop_time,omitempty"`
}

type AssignParentRequest struct {
	ParentID uuid.UUID `json:"parent_id" validate:"required"`
}

/* ==========================
   Responses
========================== */

// StudentStats is the per-school aggregate used by the dashboard.
type StudentStats struct {
	Total      int64            `json:"total"`
	ByGrade    map[string]int64 `json:"by_grade"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByBus      map[string]int64 `json:"by_bus"`
	Unassigned int64            `json:"unassigned"`
}

// Apply copies the present fields onto the student row.
func (r *UpdateStudentRequest) Apply(u *userModel.UserModel) {
	if r.FirstName != nil {
		u.FirstName = *r.FirstName
	}
	if r.LastName != nil {
		u.LastName = *r.LastName
	}
	if r.Phone != nil {
		u.Phone = r.Phone
	}
	if r.ExternalID != nil {
		u.StudentInfo.ExternalID = r.ExternalID
	}
	if r.Grade != nil {
		u.StudentInfo.Grade = r.Grade
	}
	if r.Section != nil {
		u.StudentInfo.Section = r.Section
	}
	if r.DateOfBirth != nil {
		u.StudentInfo.DateOfBirth = r.DateOfBirth
	}
	if r.Gender != nil {
		u.StudentInfo.Gender = r.Gender
	}
	if r.BusNumber != nil {
		u.BusInfo.Number = r.BusNumber
	}
	if r.PickupLocation != nil {
		u.BusInfo.PickupLocation = r.PickupLocation
	}
	if r.DropLocation != nil {
		u.BusInfo.DropLocation = r.DropLocation
	}
	if r.PickupTime != nil {
		u.BusInfo.PickupTime = r.PickupTime
	}
	if r.DropTime != nil {
		u.BusInfo.DropTime = r.DropTime
	}
}
