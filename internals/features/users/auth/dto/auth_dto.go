package dto

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	userModel "bustrack_backend/internals/features/users/user/model"
)

/* ==========================
   Requests
========================== */

type SignupRequest struct {
	UserName  string  `json:"user_name" validate:"required,min=3,max=50"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=6"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Phone     *string `json:"phone,omitempty"`
	Role      string  `json:"role" validate:"required,oneof=systemAdmin schoolAdmin student parent"`

	StudentInfo *StudentInfoInput `json:"student_info,omitempty"`
	ParentInfo  *ParentInfoInput  `json:"parent_info,omitempty"`
	AdminInfo   *AdminInfoInput   `json:"admin_info,omitempty"`
	BusInfo     *BusInfoInput     `json:"bus_info,omitempty"`
}

type StudentInfoInput struct {
	ExternalID  *string    `json:"student_id,omitempty" validate:"omitempty,max=50"`
	Grade       *int       `json:"grade,omitempty" validate:"omitempty,min=1,max=12"`
	Section     *string    `json:"section,omitempty" validate:"omitempty,max=10"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      *string    `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
}

type ParentInfoInput struct {
	Relationship      *string                      `json:"relationship,omitempty" validate:"omitempty,oneof=father mother guardian other"`
	Address           *userModel.Address           `json:"address,omitempty"`
	EmergencyContacts []userModel.EmergencyContact `json:"emergency_contacts,omitempty"`
}

type AdminInfoInput struct {
	Permissions []string `json:"permissions,omitempty"`
	SchoolID    *string  `json:"school_id,omitempty" validate:"omitempty,max=50"`
	SchoolName  *string  `json:"school_name,omitempty" validate:"omitempty,max=255"`
	Department  *string  `json:"department,omitempty"`
	EmployeeID  *string  `json:"employee_id,omitempty"`
	AccessLevel string   `json:"access_level,omitempty" validate:"omitempty,oneof=full limited readonly"`
}

type BusInfoInput struct {
	Number         *string `json:"bus_number,omitempty" validate:"omitempty,max=20"`
	PickupLocation *string `json:"pickup_location,omitempty"`
	DropLocation   *string `json:"drop_location,omitempty"`
	PickupTime     *string `json:"pickup_time,omitempty"`
	DropTime       *string `json:"drop_time,omitempty"`
}

type SigninRequest struct {
	// Username accepts either the username or the account email.
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ConfirmResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=systemAdmin schoolAdmin student parent"`
}

type ToggleLockRequest struct {
	Lock bool `json:"lock"`
}

/* ==========================
   Mapping
========================== */

// ToModel builds the user row for signup / admin creation. Password stays
// plaintext here; the service hashes before persisting.
func (r *SignupRequest) ToModel() *userModel.UserModel {
	u := &userModel.UserModel{
		UserName:  r.UserName,
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Role:      r.Role,
		IsActive:  true,
	}

	if r.StudentInfo != nil {
		u.StudentInfo = userModel.StudentInfo{
			ExternalID:  r.StudentInfo.ExternalID,
			Grade:       r.StudentInfo.Grade,
			Section:     r.StudentInfo.Section,
			DateOfBirth: r.StudentInfo.DateOfBirth,
			Gender:      r.StudentInfo.Gender,
			ParentID:    r.StudentInfo.ParentID,
		}
	}
	if r.ParentInfo != nil {
		u.ParentInfo = userModel.ParentInfo{
			Relationship: r.ParentInfo.Relationship,
		}
		if r.ParentInfo.Address != nil {
			u.ParentInfo.Address = datatypes.NewJSONType(*r.ParentInfo.Address)
		}
		if len(r.ParentInfo.EmergencyContacts) > 0 {
			u.ParentInfo.EmergencyContacts = datatypes.NewJSONSlice(r.ParentInfo.EmergencyContacts)
		}
	}
	if r.AdminInfo != nil {
		u.AdminInfo = userModel.AdminInfo{
			SchoolID:    r.AdminInfo.SchoolID,
			SchoolName:  r.AdminInfo.SchoolName,
			Department:  r.AdminInfo.Department,
			EmployeeID:  r.AdminInfo.EmployeeID,
			AccessLevel: r.AdminInfo.AccessLevel,
		}
		if len(r.AdminInfo.Permissions) > 0 {
			u.AdminInfo.Permissions = datatypes.NewJSONSlice(r.AdminInfo.Permissions)
		}
	}
	if r.BusInfo != nil {
		u.BusInfo = userModel.BusInfo{
			Number:         r.BusInfo.Number,
			PickupLocation: r.BusInfo.PickupLocation,
			DropLocation:   r.BusInfo.DropLocation,
			PickupTime:     r.BusInfo.PickupTime,
			DropTime:       r.BusInfo.DropTime,
		}
	}
	return u
}
