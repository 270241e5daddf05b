package details

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	studentController "bustrack_backend/internals/features/students/controller"
	authmw "bustrack_backend/internals/middlewares/auth"
)

func StudentRoutes(app *fiber.App, db *gorm.DB) {
	ctrl := studentController.NewStudentController(db)

	students := app.Group("/students", authmw.AuthMiddleware(db))

	// Parent-facing route first so it is not shadowed by /:id.
	students.Get("/my-children",
		authmw.CanPerform(constants.ActionReadOwnChildren),
		ctrl.GetMyChildren)

	students.Get("/stats",
		authmw.CanPerformAny(constants.ActionReadStudents, constants.ActionReadUsers),
		ctrl.GetStudentStats)
	students.Get("/",
		authmw.CanPerformAny(constants.ActionReadStudents, constants.ActionReadUsers),
		ctrl.ListStudents)
	students.Post("/",
		authmw.CanPerform(constants.ActionCreateStudent),
		ctrl.CreateStudent)

	students.Get("/bus/:busNumber",
		authmw.CanPerform(constants.ActionReadStudents),
		ctrl.GetStudentsByBus)
	students.Get("/grade/:grade",
		authmw.CanPerform(constants.ActionReadStudents),
		ctrl.GetStudentsByGrade)
	students.Get("/parent/:parentId",
		authmw.CanPerformAny(constants.ActionReadStudents, constants.ActionReadUsers),
		ctrl.GetStudentsByParent)

	students.Get("/:id",
		authmw.CanPerformAny(constants.ActionReadStudents, constants.ActionReadUsers),
		ctrl.GetStudent)
	students.Put("/:id",
		authmw.CanPerform(constants.ActionUpdateStudent),
		ctrl.UpdateStudent)
	students.Delete("/:id",
		authmw.CanPerform(constants.ActionDeleteStudent),
		ctrl.DeleteStudent)

	students.Put("/:id/parent",
		authmw.CanPerform(constants.ActionUpdateStudent),
		ctrl.AssignParent)
	students.Delete("/:id/parent",
		authmw.CanPerform(constants.ActionUpdateStudent),
		ctrl.RemoveParent)
}
