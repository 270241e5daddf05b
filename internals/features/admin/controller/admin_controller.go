package controller

import (
	"bytes"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	adminDTO "bustrack_backend/internals/features/admin/dto"
	adminService "bustrack_backend/internals/features/admin/service"
	authDTO "bustrack_backend/internals/features/users/auth/dto"
	userDTO "bustrack_backend/internals/features/users/user/dto"
	helper "bustrack_backend/internals/helpers"
	authmw "bustrack_backend/internals/middlewares/auth"
)

type AdminController struct {
	DB       *gorm.DB
	Validate *validator.Validate
}

func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{DB: db, Validate: validator.New()}
}

func schoolScope(c *fiber.Ctx) (string, error) {
	actor, err := authmw.CurrentUser(c)
	if err != nil {
		return "", err
	}
	if actor.Role == constants.RoleSystemAdmin {
		return "", nil
	}
	return actor.SchoolID(), nil
}

// GET /admin/admins?search=
func (ac *AdminController) ListAdmins(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	admins, err := adminService.ListAdmins(ac.DB, schoolID, c.Query("search"))
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Admins fetched successfully", fiber.Map{
		"total":  len(admins),
		"admins": userDTO.ToUserResponses(admins),
	})
}

// GET /admin/admins/:id
func (ac *AdminController) GetAdmin(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid admin ID")
	}
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	admin, err := adminService.GetAdminByID(ac.DB, id, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Admin fetched successfully", userDTO.ToUserResponse(admin))
}

// POST /admin/admins (systemAdmin only)
func (ac *AdminController) CreateAdmin(c *fiber.Ctx) error {
	var req authDTO.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Role = constants.RoleSchoolAdmin
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	admin, err := adminService.CreateAdmin(ac.DB, &req)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	log.Printf("[INFO] school admin created: %s (%s)", admin.UserName, admin.SchoolID())
	return helper.JsonCreated(c, "School admin created successfully", userDTO.ToUserResponse(admin))
}

// PUT /admin/admins/:id
func (ac *AdminController) UpdateAdmin(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid admin ID")
	}

	var req adminDTO.UpdateAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	admin, err := adminService.UpdateAdmin(ac.DB, id, &req, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonUpdated(c, "Admin updated successfully", userDTO.ToUserResponse(admin))
}

// DELETE /admin/admins/:id (systemAdmin only)
func (ac *AdminController) DeleteAdmin(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid admin ID")
	}

	actor, err := authmw.CurrentUser(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	if err := adminService.DeleteAdmin(ac.DB, id, actor); err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonDeleted(c, "Admin deleted successfully", nil)
}

// GET /admin/schools/:schoolId/admins
func (ac *AdminController) GetSchoolAdminsBySchool(c *fiber.Ctx) error {
	admins, err := adminService.GetSchoolAdminsBySchool(ac.DB, c.Params("schoolId"))
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "School admins fetched successfully", fiber.Map{
		"school_id": c.Params("schoolId"),
		"total":     len(admins),
		"admins":    userDTO.ToUserResponses(admins),
	})
}

// GET /admin/dashboard
func (ac *AdminController) GetDashboardStats(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	stats, err := adminService.GetDashboardStats(ac.DB, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Dashboard stats fetched successfully", stats)
}

// GET /admin/overview (systemAdmin only)
func (ac *AdminController) GetSystemOverview(c *fiber.Ctx) error {
	overview, err := adminService.GetSystemOverview(ac.DB)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "System overview fetched successfully", overview)
}

// GET /admin/users?role=&search=&is_active=&page=&per_page=
func (ac *AdminController) ListAllUsers(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	q := adminDTO.ListUsersQuery{
		Role:     c.Query("role"),
		Search:   c.Query("search"),
		SchoolID: schoolID,
	}
	if raw := c.Query("is_active"); raw != "" {
		active := raw == "true"
		q.IsActive = &active
	}

	paging := helper.ResolvePaging(c, 20, 100)
	users, total, err := adminService.ListAllUsers(ac.DB, q, paging)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonList(c, "Users fetched successfully",
		userDTO.ToUserResponses(users),
		helper.BuildPaginationFromPage(total, paging.Page, paging.PerPage))
}

// PUT /admin/users/:id/status
func (ac *AdminController) ToggleUserStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	var req adminDTO.ToggleStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	actor, err := authmw.CurrentUser(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	user, err := adminService.ToggleUserStatus(ac.DB, id, req.IsActive, actor)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	msg := "User deactivated successfully"
	if req.IsActive {
		msg = "User activated successfully"
	}
	return helper.JsonUpdated(c, msg, userDTO.ToUserResponse(user))
}

// GET /admin/users/stats (systemAdmin only)
func (ac *AdminController) GetUserStatsByRole(c *fiber.Ctx) error {
	stats, err := adminService.GetUserStatsByRole(ac.DB)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "User stats fetched successfully", stats)
}

// PUT /admin/students/bulk
func (ac *AdminController) BulkUpdateStudents(c *fiber.Ctx) error {
	var req adminDTO.BulkUpdateStudentsRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	result, err := adminService.BulkUpdateStudents(ac.DB, &req, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Bulk update finished", result)
}

// GET /admin/students/export
func (ac *AdminController) ExportStudents(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	f, err := adminService.ExportStudents(ac.DB, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		log.Println("[ERROR] failed to render export:", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to render export")
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+adminService.ExportFileName(schoolID)+`"`)
	return c.Send(buf.Bytes())
}

// GET /admin/activity?page=&per_page=
func (ac *AdminController) GetRecentActivity(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	paging := helper.ResolvePaging(c, 50, 200)
	events, total, err := adminService.GetRecentActivity(ac.DB, schoolID, paging)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonList(c, "Recent activity fetched successfully", events,
		helper.BuildPaginationFromPage(total, paging.Page, paging.PerPage))
}
