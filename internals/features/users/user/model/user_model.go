package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
)

/* ==========================
   Tracking enums
========================== */

const (
	TrackingStatusActive    = "active"
	TrackingStatusInactive  = "inactive"
	TrackingStatusTracking  = "tracking"
	TrackingStatusEmergency = "emergency"
)

const (
	AlertTypeMedical   = "medical"
	AlertTypeSafety    = "safety"
	AlertTypeTransport = "transport"
	AlertTypeOther     = "other"
)

var TrackingStatuses = []string{
	TrackingStatusActive,
	TrackingStatusInactive,
	TrackingStatusTracking,
	TrackingStatusEmergency,
}

func IsValidTrackingStatus(s string) bool {
	for _, v := range TrackingStatuses {
		if v == s {
			return true
		}
	}
	return false
}

/* ==========================
   Embedded payloads
========================== */

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
}

// StudentInfo is only meaningful when role = student.
type StudentInfo struct {
	ExternalID  *string    `gorm:"size:50;uniqueIndex" json:"student_id,omitempty"`
	Grade       *int       `json:"grade,omitempty"`
	Section     *string    `gorm:"size:10" json:"section,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      *string    `gorm:"size:10" json:"gender,omitempty"`
	ParentID    *uuid.UUID `gorm:"index" json:"parent_id,omitempty"`
}

// ParentInfo is only meaningful when role = parent.
type ParentInfo struct {
	Relationship      *string                               `gorm:"size:20" json:"relationship,omitempty"`
	Children          datatypes.JSONSlice[uuid.UUID]        `json:"children,omitempty"`
	Address           datatypes.JSONType[Address]           `json:"address,omitempty"`
	EmergencyContacts datatypes.JSONSlice[EmergencyContact] `json:"emergency_contacts,omitempty"`
}

// AdminInfo is carried by systemAdmin and schoolAdmin. School id/name are
// mandatory for schoolAdmin only; students created by a school admin also
// carry the school id for tenant scoping.
type AdminInfo struct {
	Permissions datatypes.JSONSlice[string] `json:"permissions,omitempty"`
	SchoolID    *string                     `gorm:"size:50;index" json:"school_id,omitempty"`
	SchoolName  *string                     `gorm:"size:255" json:"school_name,omitempty"`
	Department  *string                     `gorm:"size:100" json:"department,omitempty"`
	EmployeeID  *string                     `gorm:"size:50" json:"employee_id,omitempty"`
	AccessLevel string                      `gorm:"size:20" json:"access_level,omitempty"`
}

type BusInfo struct {
	Number         *string `gorm:"size:20;index" json:"bus_number,omitempty"`
	PickupLocation *string `gorm:"size:255" json:"pickup_location,omitempty"`
	DropLocation   *string `gorm:"size:255" json:"drop_location,omitempty"`
	PickupTime     *string `gorm:"size:10" json:"pickup_time,omitempty"`
	DropTime       *string `gorm:"size:10" json:"drop_time,omitempty"`
}

type GeoLocation struct {
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Speed     *float64   `json:"speed,omitempty"`
	Heading   *float64   `json:"heading,omitempty"`
}

type EmergencyAlert struct {
	Type      *string    `gorm:"size:20" json:"type,omitempty"`
	Message   *string    `json:"message,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// TrackingInfo is the live tracking sub-document of a student. Only the
// tracking service writes it; sendEmergencyAlert is the only writer of Alert.
type TrackingInfo struct {
	Status      string         `gorm:"size:20;index" json:"status,omitempty"`
	Location    GeoLocation    `gorm:"embedded;embeddedPrefix:loc_" json:"location,omitempty"`
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
	Notes       *string        `json:"notes,omitempty"`
	Alert       EmergencyAlert `gorm:"embedded;embeddedPrefix:alert_" json:"emergency_alert,omitempty"`
}

/* ==========================
   UserModel
========================== */

// UserModel is the single polymorphic principal row: the role column decides
// which embedded payload is semantically live. The schema allows every field
// on every row; invariants are enforced by the services.
type UserModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserName string    `gorm:"size:50;uniqueIndex;not null" json:"user_name"`
	Email    string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password string    `gorm:"not null" json:"-"`

	FirstName string  `gorm:"size:100;not null" json:"first_name"`
	LastName  string  `gorm:"size:100;not null" json:"last_name"`
	Phone     *string `gorm:"size:30" json:"phone,omitempty"`

	Role string `gorm:"size:20;not null;index:idx_users_role_active" json:"role"`

	IsActive   bool `gorm:"not null;default:true;index:idx_users_role_active" json:"is_active"`
	IsVerified bool `gorm:"not null;default:false" json:"is_verified"`

	StudentInfo  StudentInfo  `gorm:"embedded;embeddedPrefix:student_" json:"student_info,omitempty"`
	ParentInfo   ParentInfo   `gorm:"embedded;embeddedPrefix:parent_" json:"parent_info,omitempty"`
	AdminInfo    AdminInfo    `gorm:"embedded;embeddedPrefix:admin_" json:"admin_info,omitempty"`
	BusInfo      BusInfo      `gorm:"embedded;embeddedPrefix:bus_" json:"bus_info,omitempty"`
	TrackingInfo TrackingInfo `gorm:"embedded;embeddedPrefix:tracking_" json:"tracking_info,omitempty"`

	ProfilePicture *string    `gorm:"size:512" json:"profile_picture,omitempty"`
	LastLogin      *time.Time `json:"last_login,omitempty"`

	// Lock sub-state: Unlocked -> (5th consecutive failure) -> Locked(2h),
	// re-evaluated lazily by IsLocked, never swept.
	LoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LockUntil     *time.Time `json:"-"`

	ResetPasswordToken       *string    `gorm:"size:128;index" json:"-"`
	ResetPasswordExpires     *time.Time `json:"-"`
	EmailVerificationToken   *string    `gorm:"size:128;index" json:"-"`
	EmailVerificationExpires *time.Time `json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserModel) TableName() string {
	return "users"
}

// BeforeCreate assigns the id and role-dependent defaults. Doing this in the
// hook instead of column defaults keeps the model portable across dialects.
func (u *UserModel) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == constants.RoleStudent && u.TrackingInfo.Status == "" {
		u.TrackingInfo.Status = TrackingStatusActive
	}
	if constants.IsAdminRole(u.Role) && u.AdminInfo.AccessLevel == "" {
		u.AdminInfo.AccessLevel = "full"
	}
	return nil
}

func (u *UserModel) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *UserModel) DisplayName() string {
	switch u.Role {
	case constants.RoleStudent:
		return u.FullName() + " (Student)"
	case constants.RoleParent:
		return u.FullName() + " (Parent)"
	case constants.RoleSchoolAdmin:
		school := "Unknown School"
		if u.AdminInfo.SchoolName != nil && *u.AdminInfo.SchoolName != "" {
			school = *u.AdminInfo.SchoolName
		}
		return u.FullName() + " (School Admin - " + school + ")"
	default:
		return u.FullName() + " (System Admin)"
	}
}

// IsLocked reports whether the lock window is still open. An expired
// lockUntil means unlocked; nothing clears the column until the next
// successful signin or an explicit unlock.
func (u *UserModel) IsLocked() bool {
	return u.LockUntil != nil && u.LockUntil.After(time.Now())
}

// HasPermission is the stored-list permission mechanism: systemAdmin always
// passes, schoolAdmin passes iff the permission is in its stored list,
// everyone else fails. Independent from the action-token table in constants.
func (u *UserModel) HasPermission(permission string) bool {
	if u.Role == constants.RoleSystemAdmin {
		return true
	}
	if u.Role == constants.RoleSchoolAdmin {
		for _, p := range u.AdminInfo.Permissions {
			if p == permission {
				return true
			}
		}
	}
	return false
}

// CanAccessSchool implements cross-tenant access: systemAdmin everywhere,
// schoolAdmin only its own school, others nowhere.
func (u *UserModel) CanAccessSchool(schoolID string) bool {
	if u.Role == constants.RoleSystemAdmin {
		return true
	}
	if u.Role == constants.RoleSchoolAdmin {
		return u.AdminInfo.SchoolID != nil && *u.AdminInfo.SchoolID == schoolID
	}
	return false
}

// SchoolID returns the admin school id, or "" when unscoped.
func (u *UserModel) SchoolID() string {
	if u.AdminInfo.SchoolID != nil {
		return *u.AdminInfo.SchoolID
	}
	return ""
}

/* ==========================
   Parent/child sync helpers
========================== */

func (p *ParentInfo) HasChild(id uuid.UUID) bool {
	for _, c := range p.Children {
		if c == id {
			return true
		}
	}
	return false
}

func (p *ParentInfo) AddChild(id uuid.UUID) {
	if !p.HasChild(id) {
		p.Children = append(p.Children, id)
	}
}

func (p *ParentInfo) RemoveChild(id uuid.UUID) {
	out := p.Children[:0]
	for _, c := range p.Children {
		if c != id {
			out = append(out, c)
		}
	}
	p.Children = out
}
