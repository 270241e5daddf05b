package dto

import (
	"time"

	"github.com/google/uuid"

	"bustrack_backend/internals/constants"
	userModel "bustrack_backend/internals/features/users/user/model"
)

// UserResponse is the public shape of a principal: a common identity record
// plus exactly one role payload, selected by Role. Password hashes, reset and
// verification tokens and lock metadata never appear here.
type UserResponse struct {
	ID         uuid.UUID `json:"id"`
	UserName   string    `json:"user_name"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	FullName   string    `json:"full_name"`
	Phone      *string   `json:"phone,omitempty"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`

	StudentInfo  *StudentPayload         `json:"student_info,omitempty"`
	BusInfo      *userModel.BusInfo      `json:"bus_info,omitempty"`
	TrackingInfo *userModel.TrackingInfo `json:"tracking_info,omitempty"`
	ParentInfo   *ParentPayload          `json:"parent_info,omitempty"`
	AdminInfo    *AdminPayload           `json:"admin_info,omitempty"`

	ProfilePicture *string    `json:"profile_picture,omitempty"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type StudentPayload struct {
	ExternalID  *string    `json:"student_id,omitempty"`
	Grade       *int       `json:"grade,omitempty"`
	Section     *string    `json:"section,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      *string    `json:"gender,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	SchoolID    *string    `json:"school_id,omitempty"`
}

type ParentPayload struct {
	Relationship      *string                      `json:"relationship,omitempty"`
	Children          []uuid.UUID                  `json:"children"`
	Address           *userModel.Address           `json:"address,omitempty"`
	EmergencyContacts []userModel.EmergencyContact `json:"emergency_contacts,omitempty"`
}

type AdminPayload struct {
	Permissions []string `json:"permissions"`
	SchoolID    *string  `json:"school_id,omitempty"`
	SchoolName  *string  `json:"school_name,omitempty"`
	Department  *string  `json:"department,omitempty"`
	EmployeeID  *string  `json:"employee_id,omitempty"`
	AccessLevel string   `json:"access_level,omitempty"`
}

// ToUserResponse projects a user row into its public shape.
func ToUserResponse(u *userModel.UserModel) UserResponse {
	resp := UserResponse{
		ID:             u.ID,
		UserName:       u.UserName,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		FullName:       u.FullName(),
		Phone:          u.Phone,
		Role:           u.Role,
		IsActive:       u.IsActive,
		IsVerified:     u.IsVerified,
		ProfilePicture: u.ProfilePicture,
		LastLogin:      u.LastLogin,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}

	switch u.Role {
	case constants.RoleStudent:
		si := u.StudentInfo
		resp.StudentInfo = &StudentPayload{
			ExternalID:  si.ExternalID,
			Grade:       si.Grade,
			Section:     si.Section,
			DateOfBirth: si.DateOfBirth,
			Gender:      si.Gender,
			ParentID:    si.ParentID,
			SchoolID:    u.AdminInfo.SchoolID,
		}
		bi := u.BusInfo
		resp.BusInfo = &bi
		ti := u.TrackingInfo
		resp.TrackingInfo = &ti
	case constants.RoleParent:
		pi := u.ParentInfo
		payload := &ParentPayload{
			Relationship: pi.Relationship,
			Children:     append([]uuid.UUID{}, pi.Children...),
		}
		addr := pi.Address.Data()
		if addr != (userModel.Address{}) {
			payload.Address = &addr
		}
		if len(pi.EmergencyContacts) > 0 {
			payload.EmergencyContacts = append([]userModel.EmergencyContact{}, pi.EmergencyContacts...)
		}
		resp.ParentInfo = payload
	case constants.RoleSchoolAdmin, constants.RoleSystemAdmin:
		ai := u.AdminInfo
		resp.AdminInfo = &AdminPayload{
			Permissions: append([]string{}, ai.Permissions...),
			SchoolID:    ai.SchoolID,
			SchoolName:  ai.SchoolName,
			Department:  ai.Department,
			EmployeeID:  ai.EmployeeID,
			AccessLevel: ai.AccessLevel,
		}
	}

	return resp
}

// ToUserResponses maps a result set.
func ToUserResponses(users []userModel.UserModel) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, ToUserResponse(&users[i]))
	}
	return out
}
