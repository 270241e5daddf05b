package details

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	authController "bustrack_backend/internals/features/users/auth/controller"
	authmw "bustrack_backend/internals/middlewares/auth"
)

func AuthRoutes(app *fiber.App, db *gorm.DB) {
	ctrl := authController.NewAuthController(db)

	public := app.Group("/auth")
	public.Post("/signup", ctrl.Signup)
	public.Post("/signin", ctrl.Signin)
	public.Post("/reset-password", ctrl.RequestPasswordReset)
	public.Post("/reset-password/confirm", ctrl.ConfirmPasswordReset)
	public.Get("/verify-email/:token", ctrl.VerifyEmail)

	private := app.Group("/auth", authmw.AuthMiddleware(db))
	private.Get("/profile", ctrl.GetProfile)
	private.Post("/change-password", ctrl.ChangePassword)
	private.Get("/permissions/:permission", ctrl.CheckPermission)
	private.Get("/school-access/:schoolId", ctrl.CheckSchoolAccess)

	private.Post("/users/parent",
		authmw.CanPerform(constants.ActionCreateParent),
		ctrl.CreateParent)
	private.Get("/users",
		authmw.CanPerform(constants.ActionReadUsers),
		ctrl.ListUsersByRole)
	private.Put("/users/:id/role",
		authmw.CanPerform(constants.ActionUpdateUserRole),
		ctrl.UpdateUserRole)
	private.Put("/users/:id/lock",
		authmw.CanPerform(constants.ActionLockUser),
		ctrl.ToggleUserLock)
}
