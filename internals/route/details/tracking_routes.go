package details

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	trackingController "bustrack_backend/internals/features/tracking/controller"
	authmw "bustrack_backend/internals/middlewares/auth"
)

func TrackingRoutes(app *fiber.App, db *gorm.DB) {
	ctrl := trackingController.NewTrackingController(db)

	tracking := app.Group("/tracking", authmw.AuthMiddleware(db))

	tracking.Get("/realtime",
		authmw.CanPerform(constants.ActionReadTracking),
		ctrl.GetRealTimeTrackingData)
	tracking.Get("/stale",
		authmw.CanPerform(constants.ActionReadTracking),
		ctrl.GetStudentsWithNoRecentTracking)

	tracking.Get("/analytics",
		authmw.CanPerform(constants.ActionTrackingStats),
		ctrl.GetTrackingAnalytics)
	tracking.Get("/analytics/buses",
		authmw.CanPerform(constants.ActionTrackingStats),
		ctrl.GetBusTrackingSummary)
	tracking.Get("/analytics/grades",
		authmw.CanPerform(constants.ActionTrackingStats),
		ctrl.GetTrackingStatsByGrade)

	tracking.Put("/students/bulk-status",
		authmw.CanPerform(constants.ActionUpdateTracking),
		ctrl.BulkUpdateStatus)
	tracking.Get("/students/status/:status",
		authmw.CanPerform(constants.ActionReadTracking),
		ctrl.GetStudentsByStatus)
	tracking.Post("/students/nearby",
		authmw.CanPerform(constants.ActionReadTracking),
		ctrl.GetStudentsByLocation)

	tracking.Put("/students/:id/location",
		authmw.CanPerform(constants.ActionUpdateTracking),
		ctrl.UpdateLocation)
	tracking.Put("/students/:id/status",
		authmw.CanPerform(constants.ActionUpdateTracking),
		ctrl.UpdateStatus)

	// Parents may raise alerts and read tracking for their own children;
	// the controller checks the parent-child link.
	tracking.Post("/students/:id/emergency",
		authmw.CanPerformAny(constants.ActionUpdateTracking, constants.ActionReadOwnTracking),
		ctrl.SendEmergencyAlert)
	tracking.Delete("/students/:id/emergency",
		authmw.CanPerform(constants.ActionUpdateTracking),
		ctrl.ClearEmergencyAlert)

	tracking.Get("/students/:id/history",
		authmw.CanPerformAny(constants.ActionReadTracking, constants.ActionReadOwnTracking),
		ctrl.GetTrackingHistory)
	tracking.Get("/students/:id",
		authmw.CanPerformAny(constants.ActionReadTracking, constants.ActionReadOwnTracking),
		ctrl.GetStudentTracking)
}
