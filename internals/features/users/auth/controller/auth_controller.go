package controller

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	authDTO "bustrack_backend/internals/features/users/auth/dto"
	authService "bustrack_backend/internals/features/users/auth/service"
	userDTO "bustrack_backend/internals/features/users/user/dto"
	helper "bustrack_backend/internals/helpers"
	authmw "bustrack_backend/internals/middlewares/auth"
)

type AuthController struct {
	DB       *gorm.DB
	Validate *validator.Validate
}

func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{DB: db, Validate: validator.New()}
}

// POST /auth/signup
func (ac *AuthController) Signup(c *fiber.Ctx) error {
	var req authDTO.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	user, token, err := authService.Signup(ac.DB, &req)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	log.Printf("[INFO] account created: %s (%s)", user.UserName, user.Role)
	return helper.JsonCreated(c, "User registered successfully", fiber.Map{
		"user":  userDTO.ToUserResponse(user),
		"token": token,
	})
}

// POST /auth/signin
func (ac *AuthController) Signin(c *fiber.Ctx) error {
	var req authDTO.SigninRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	user, token, err := authService.Signin(ac.DB, &req)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	return helper.JsonOK(c, "Signed in successfully", fiber.Map{
		"user":  userDTO.ToUserResponse(user),
		"token": token,
	})
}

// POST /auth/users/parent (admin-side parent creation, no session issued)
func (ac *AuthController) CreateParent(c *fiber.Ctx) error {
	var req authDTO.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Role = constants.RoleParent
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	user, err := authService.CreateUser(ac.DB, &req)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	log.Printf("[INFO] parent created: %s", user.UserName)
	return helper.JsonCreated(c, "Parent created successfully", userDTO.ToUserResponse(user))
}

// GET /auth/profile
func (ac *AuthController) GetProfile(c *fiber.Ctx) error {
	userID, err := authmw.CurrentUserID(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	user, err := authService.GetProfile(ac.DB, userID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Profile fetched successfully", userDTO.ToUserResponse(user))
}

// POST /auth/change-password
func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	var req authDTO.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	user, err := authmw.CurrentUser(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	if err := authService.ChangePassword(ac.DB, user, req.CurrentPassword, req.NewPassword); err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Password changed successfully", nil)
}

// POST /auth/reset-password
func (ac *AuthController) RequestPasswordReset(c *fiber.Ctx) error {
	var req authDTO.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	token, err := authService.RequestPasswordReset(ac.DB, req.Email)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	// Returned in the body until a mailer is wired in.
	return helper.JsonOK(c, "Password reset token issued", fiber.Map{
		"reset_token": token,
	})
}

// POST /auth/reset-password/confirm
func (ac *AuthController) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req authDTO.ConfirmResetRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	if err := authService.ConfirmPasswordReset(ac.DB, req.Token, req.NewPassword); err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Password reset successfully", nil)
}

// GET /auth/verify-email/:token
func (ac *AuthController) VerifyEmail(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return helper.JsonError(c, fiber.StatusBadRequest, "Verification token required")
	}
	if err := authService.VerifyEmail(ac.DB, token); err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Email verified successfully", nil)
}

// PUT /auth/users/:id/role
func (ac *AuthController) UpdateUserRole(c *fiber.Ctx) error {
	targetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	var req authDTO.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	actor, err := authmw.CurrentUser(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	user, err := authService.UpdateUserRole(ac.DB, targetID, req.Role, actor)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	log.Printf("[INFO] role updated: %s -> %s by %s", user.UserName, user.Role, actor.UserName)
	return helper.JsonUpdated(c, "User role updated successfully", userDTO.ToUserResponse(user))
}

// PUT /auth/users/:id/lock
func (ac *AuthController) ToggleUserLock(c *fiber.Ctx) error {
	targetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	var req authDTO.ToggleLockRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := authService.ToggleUserLock(ac.DB, targetID, req.Lock)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	msg := "User unlocked successfully"
	if req.Lock {
		msg = "User locked successfully"
	}
	return helper.JsonUpdated(c, msg, userDTO.ToUserResponse(user))
}

// GET /auth/users?role=&search=
func (ac *AuthController) ListUsersByRole(c *fiber.Ctx) error {
	role := c.Query("role")
	if role != "" && !constants.IsValidRole(role) {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid role filter")
	}

	actor, err := authmw.CurrentUser(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	// School admins only ever see their own school.
	schoolID := ""
	if actor.Role == constants.RoleSchoolAdmin {
		schoolID = actor.SchoolID()
	}

	users, err := authService.ListUsersByRole(ac.DB, role, c.Query("search"), schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Users fetched successfully", fiber.Map{
		"total": len(users),
		"users": userDTO.ToUserResponses(users),
	})
}

// GET /auth/permissions/:permission
func (ac *AuthController) CheckPermission(c *fiber.Ctx) error {
	userID, err := authmw.CurrentUserID(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	allowed, err := authService.CheckUserPermission(ac.DB, userID, c.Params("permission"))
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Permission checked", fiber.Map{
		"permission": c.Params("permission"),
		"allowed":    allowed,
	})
}

// GET /auth/school-access/:schoolId
func (ac *AuthController) CheckSchoolAccess(c *fiber.Ctx) error {
	userID, err := authmw.CurrentUserID(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	allowed, err := authService.CheckSchoolAccess(ac.DB, userID, c.Params("schoolId"))
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "School access checked", fiber.Map{
		"school_id": c.Params("schoolId"),
		"allowed":   allowed,
	})
}
