package details

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	adminController "bustrack_backend/internals/features/admin/controller"
	authmw "bustrack_backend/internals/middlewares/auth"
)

func AdminRoutes(app *fiber.App, db *gorm.DB) {
	ctrl := adminController.NewAdminController(db)

	admin := app.Group("/admin",
		authmw.AuthMiddleware(db),
		authmw.OnlyRoles(constants.RoleErrorAdmin("admin area"), constants.AdminRoles...))

	admin.Get("/dashboard", ctrl.GetDashboardStats)
	admin.Get("/activity", ctrl.GetRecentActivity)

	admin.Get("/overview",
		authmw.OnlyRoles(constants.RoleErrorSystemAdmin("system overview"), constants.RoleSystemAdmin),
		ctrl.GetSystemOverview)
	admin.Get("/users/stats",
		authmw.OnlyRoles(constants.RoleErrorSystemAdmin("user stats"), constants.RoleSystemAdmin),
		ctrl.GetUserStatsByRole)

	admin.Get("/users", ctrl.ListAllUsers)
	admin.Put("/users/:id/status",
		authmw.CanPerformAny(constants.ActionLockUser, constants.ActionUpdateStudent),
		ctrl.ToggleUserStatus)

	admin.Get("/admins",
		authmw.CanPerform(constants.ActionReadSchoolAdmin),
		ctrl.ListAdmins)
	admin.Post("/admins",
		authmw.CanPerform(constants.ActionCreateSchoolAdmin),
		ctrl.CreateAdmin)
	admin.Get("/admins/:id",
		authmw.CanPerform(constants.ActionReadSchoolAdmin),
		ctrl.GetAdmin)
	admin.Put("/admins/:id",
		authmw.CanPerform(constants.ActionUpdateSchoolAdmin),
		ctrl.UpdateAdmin)
	admin.Delete("/admins/:id",
		authmw.CanPerform(constants.ActionDeleteSchoolAdmin),
		ctrl.DeleteAdmin)
	admin.Get("/schools/:schoolId/admins",
		authmw.CanPerform(constants.ActionReadSchoolAdmin),
		ctrl.GetSchoolAdminsBySchool)

	admin.Put("/students/bulk",
		authmw.CanPerform(constants.ActionUpdateStudent),
		ctrl.BulkUpdateStudents)
	admin.Get("/students/export",
		authmw.CanPerform(constants.ActionExportStudents),
		ctrl.ExportStudents)
}
