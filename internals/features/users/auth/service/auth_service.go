package service

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	authDTO "bustrack_backend/internals/features/users/auth/dto"
	authHelper "bustrack_backend/internals/features/users/auth/helper"
	userModel "bustrack_backend/internals/features/users/user/model"
)

const (
	maxLoginAttempts = 5
	failureLockFor   = 2 * time.Hour
	adminLockFor     = 24 * time.Hour
	resetTokenTTL    = time.Hour
	verifyTokenTTL   = 24 * time.Hour
)

/* ==========================
   SIGNUP
========================== */

// Signup creates an account of any role and returns the row with a fresh
// session token.
func Signup(db *gorm.DB, req *authDTO.SignupRequest) (*userModel.UserModel, string, error) {
	user, err := CreateUser(db, req)
	if err != nil {
		return nil, "", err
	}
	token, err := GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// CreateUser persists an account of any role, enforcing unique
// username/email, role-specific required fields and the
// single-active-systemAdmin invariant. Shared by signup and the
// admin-side create endpoints.
func CreateUser(db *gorm.DB, req *authDTO.SignupRequest) (*userModel.UserModel, error) {
	var count int64
	if err := db.Model(&userModel.UserModel{}).
		Where("user_name = ? OR email = ?", req.UserName, strings.ToLower(req.Email)).
		Count(&count).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to check existing accounts")
	}
	if count > 0 {
		return nil, fiber.NewError(fiber.StatusConflict, "User with this email or username already exists")
	}

	switch req.Role {
	case constants.RoleStudent:
		if req.StudentInfo == nil || req.StudentInfo.ParentID == nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Student must have parent information")
		}
		var parentCount int64
		if err := db.Model(&userModel.UserModel{}).
			Where("id = ? AND role = ? AND is_active = ?", *req.StudentInfo.ParentID, constants.RoleParent, true).
			Count(&parentCount).Error; err != nil {
			return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to check parent")
		}
		if parentCount == 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Parent not found")
		}
	case constants.RoleParent:
		if req.ParentInfo == nil || req.ParentInfo.Relationship == nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Parent must have relationship information")
		}
	case constants.RoleSchoolAdmin:
		if req.AdminInfo == nil || req.AdminInfo.SchoolID == nil || req.AdminInfo.SchoolName == nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "School admin must have school information")
		}
	case constants.RoleSystemAdmin:
		var adminCount int64
		if err := db.Model(&userModel.UserModel{}).
			Where("role = ? AND is_active = ?", constants.RoleSystemAdmin, true).
			Count(&adminCount).Error; err != nil {
			return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to check system admin")
		}
		if adminCount > 0 {
			return nil, fiber.NewError(fiber.StatusConflict, "System admin already exists")
		}
	}

	user := req.ToModel()
	user.Email = strings.ToLower(user.Email)

	hash, err := authHelper.HashPassword(user.Password)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Password hashing failed")
	}
	user.Password = hash

	// Verification token issued at signup; the confirm flow flips isVerified.
	if verifyToken, terr := authHelper.GenerateSecureToken(32); terr == nil {
		expires := time.Now().Add(verifyTokenTTL)
		user.EmailVerificationToken = &verifyToken
		user.EmailVerificationExpires = &expires
	}

	if err := db.Create(user).Error; err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "duplicate") || strings.Contains(low, "unique") {
			return nil, fiber.NewError(fiber.StatusConflict, "User with this email or username already exists")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to create user")
	}

	return user, nil
}

/* ==========================
   SIGNIN & LOCKOUT
========================== */

// Signin authenticates by username or email. Five consecutive failures lock
// the account for two hours; the lock is re-evaluated lazily, never swept.
func Signin(db *gorm.DB, req *authDTO.SigninRequest) (*userModel.UserModel, string, error) {
	var user userModel.UserModel
	err := db.Where("(user_name = ? OR email = ?) AND is_active = ?",
		req.Username, strings.ToLower(req.Username), true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials or account inactive")
		}
		return nil, "", fiber.NewError(fiber.StatusInternalServerError, "failed to load account")
	}

	if user.IsLocked() {
		return nil, "", fiber.NewError(fiber.StatusUnauthorized, "Account is temporarily locked due to multiple failed login attempts")
	}

	if !authHelper.CheckPassword(user.Password, req.Password) {
		if err := incLoginAttempts(db, &user); err != nil {
			return nil, "", err
		}
		return nil, "", fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}

	now := time.Now()
	if err := db.Model(&user).Updates(map[string]any{
		"login_attempts": 0,
		"lock_until":     nil,
		"last_login":     now,
	}).Error; err != nil {
		return nil, "", fiber.NewError(fiber.StatusInternalServerError, "failed to record login")
	}
	user.LoginAttempts = 0
	user.LockUntil = nil
	user.LastLogin = &now

	token, err := GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// incLoginAttempts advances the lock state machine after a failed password
// check: an expired lock restarts the counter at 1, the 5th consecutive
// failure opens a 2-hour window. The counter advances via a SQL expression
// in a single UPDATE so concurrent failures never lose an increment.
func incLoginAttempts(db *gorm.DB, user *userModel.UserModel) error {
	updates := map[string]any{}

	if user.LockUntil != nil && user.LockUntil.Before(time.Now()) {
		updates["login_attempts"] = 1
		updates["lock_until"] = nil
	} else {
		updates["login_attempts"] = gorm.Expr("login_attempts + 1")
		if user.LoginAttempts+1 >= maxLoginAttempts && !user.IsLocked() {
			updates["lock_until"] = time.Now().Add(failureLockFor)
		}
	}

	if err := db.Model(user).Updates(updates).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to record login attempt")
	}
	return nil
}

/* ==========================
   PASSWORD LIFECYCLE
========================== */

func ChangePassword(db *gorm.DB, user *userModel.UserModel, currentPassword, newPassword string) error {
	if !authHelper.CheckPassword(user.Password, currentPassword) {
		return fiber.NewError(fiber.StatusBadRequest, "Current password is incorrect")
	}

	hash, err := authHelper.HashPassword(newPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Password hashing failed")
	}
	if err := db.Model(user).Update("password", hash).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update password")
	}
	return nil
}

// RequestPasswordReset issues a one-hour token for an active account.
func RequestPasswordReset(db *gorm.DB, email string) (string, error) {
	var user userModel.UserModel
	err := db.Where("email = ? AND is_active = ?", strings.ToLower(email), true).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		return "", fiber.NewError(fiber.StatusInternalServerError, "failed to load account")
	}

	token, err := authHelper.GenerateSecureToken(32)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "failed to generate reset token")
	}
	expires := time.Now().Add(resetTokenTTL)

	if err := db.Model(&user).Updates(map[string]any{
		"reset_password_token":   token,
		"reset_password_expires": expires,
	}).Error; err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "failed to store reset token")
	}
	return token, nil
}

func ConfirmPasswordReset(db *gorm.DB, token, newPassword string) error {
	var user userModel.UserModel
	err := db.Where("reset_password_token = ? AND reset_password_expires > ?", token, time.Now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid or expired reset token")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load account")
	}

	hash, err := authHelper.HashPassword(newPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Password hashing failed")
	}
	if err := db.Model(&user).Updates(map[string]any{
		"password":               hash,
		"reset_password_token":   nil,
		"reset_password_expires": nil,
	}).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update password")
	}
	return nil
}

func VerifyEmail(db *gorm.DB, token string) error {
	var user userModel.UserModel
	err := db.Where("email_verification_token = ? AND email_verification_expires > ?", token, time.Now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid or expired verification token")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load account")
	}

	if err := db.Model(&user).Updates(map[string]any{
		"is_verified":                true,
		"email_verification_token":   nil,
		"email_verification_expires": nil,
	}).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to verify email")
	}
	return nil
}

/* ==========================
   ADMINISTRATIVE
========================== */

// ToggleUserLock sets a 24h administrative lock, or clears lock state and
// the attempt counter when unlocking.
func ToggleUserLock(db *gorm.DB, userID uuid.UUID, lock bool) (*userModel.UserModel, error) {
	var user userModel.UserModel
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load account")
	}

	updates := map[string]any{}
	if lock {
		until := time.Now().Add(adminLockFor)
		updates["lock_until"] = until
		user.LockUntil = &until
	} else {
		updates["lock_until"] = nil
		updates["login_attempts"] = 0
		user.LockUntil = nil
		user.LoginAttempts = 0
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to update lock state")
	}
	return &user, nil
}

// UpdateUserRole changes a role under the boundary rules: school admins stay
// within their school and can never mint a systemAdmin; nobody downgrades
// the systemAdmin.
func UpdateUserRole(db *gorm.DB, userID uuid.UUID, newRole string, actor *userModel.UserModel) (*userModel.UserModel, error) {
	var user userModel.UserModel
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load account")
	}

	if actor.Role == constants.RoleSchoolAdmin {
		if newRole == constants.RoleSystemAdmin {
			return nil, fiber.NewError(fiber.StatusForbidden, "School admins cannot create system admins")
		}
		if user.SchoolID() != actor.SchoolID() {
			return nil, fiber.NewError(fiber.StatusForbidden, "School admins can only manage users within their school")
		}
	}

	if user.Role == constants.RoleSystemAdmin && newRole != constants.RoleSystemAdmin {
		return nil, fiber.NewError(fiber.StatusForbidden, "Cannot downgrade system admin role")
	}

	if newRole == constants.RoleSchoolAdmin {
		if user.AdminInfo.SchoolID == nil || user.AdminInfo.SchoolName == nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "School admin must have school information")
		}
	}

	if err := db.Model(&user).Update("role", newRole).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to update role")
	}
	user.Role = newRole
	return &user, nil
}

/* ==========================
   QUERIES
========================== */

func GetProfile(db *gorm.DB, userID uuid.UUID) (*userModel.UserModel, error) {
	var user userModel.UserModel
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load account")
	}
	return &user, nil
}

// ListUsersByRole lists active users of a role with optional free-text
// search over names/email/username and optional school scoping.
func ListUsersByRole(db *gorm.DB, role, search, schoolID string) ([]userModel.UserModel, error) {
	q := db.Model(&userModel.UserModel{}).Where("is_active = ?", true)

	if role != "" {
		q = q.Where("role = ?", role)
	}
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		q = q.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(user_name) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if schoolID != "" {
		q = q.Where("admin_school_id = ?", schoolID)
	}

	var users []userModel.UserModel
	if err := q.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to list users")
	}
	return users, nil
}

// CheckUserPermission probes the stored-list permission mechanism.
func CheckUserPermission(db *gorm.DB, userID uuid.UUID, permission string) (bool, error) {
	user, err := GetProfile(db, userID)
	if err != nil {
		return false, err
	}
	return user.HasPermission(permission), nil
}

// CheckSchoolAccess probes cross-tenant access for a stored principal.
func CheckSchoolAccess(db *gorm.DB, userID uuid.UUID, schoolID string) (bool, error) {
	user, err := GetProfile(db, userID)
	if err != nil {
		return false, err
	}
	return user.CanAccessSchool(schoolID), nil
}
