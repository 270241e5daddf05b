package controller

import (
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	studentService "bustrack_backend/internals/features/students/service"
	trackingDTO "bustrack_backend/internals/features/tracking/dto"
	trackingService "bustrack_backend/internals/features/tracking/service"
	userDTO "bustrack_backend/internals/features/users/user/dto"
	helper "bustrack_backend/internals/helpers"
	authmw "bustrack_backend/internals/middlewares/auth"
)

type TrackingController struct {
	DB       *gorm.DB
	Validate *validator.Validate
}

func NewTrackingController(db *gorm.DB) *TrackingController {
	return &TrackingController{DB: db, Validate: validator.New()}
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

// requireParentOfStudent rejects parents asking about other people's
// children. Admin roles pass through.
func (tc *TrackingController) requireParentOfStudent(c *fiber.Ctx, studentID uuid.UUID) error {
	actor, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	if actor.Role != constants.RoleParent {
		return nil
	}
	ok, err := studentService.CheckParentAccess(tc.DB, actor.ID, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(fiber.StatusForbidden, "Access denied to this student")
	}
	return nil
}

// PUT /tracking/students/:id/location
func (tc *TrackingController) UpdateLocation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}

	var req trackingDTO.UpdateLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := tc.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	student, err := trackingService.UpdateStudentLocation(tc.DB, id, &req, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonUpdated(c, "Location updated successfully", userDTO.ToUserResponse(student))
}

// PUT /tracking/students/:id/status
func (tc *TrackingController) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}

	var req trackingDTO.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := tc.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	student, err := trackingService.UpdateStudentStatus(tc.DB, id, &req, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonUpdated(c, "Status updated successfully", userDTO.ToUserResponse(student))
}

// POST /tracking/students/:id/emergency
func (tc *TrackingController) SendEmergencyAlert(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}

	var req trackingDTO.EmergencyAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := tc.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	// Parents may raise an alert for their own child only.
	if err := tc.requireParentOfStudent(c, id); err != nil {
		return helper.FromFiberError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	student, err := trackingService.SendEmergencyAlert(tc.DB, id, &req, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	log.Printf("[INFO] emergency alert (%s) raised for student %s", req.Type, student.ID)
	return helper.JsonOK(c, "Emergency alert sent", userDTO.ToUserResponse(student))
}

// DELETE /tracking/students/:id/emergency
func (tc *TrackingController) ClearEmergencyAlert(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	student, err := trackingService.ClearEmergencyAlert(tc.DB, id, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonUpdated(c, "Emergency alert cleared", userDTO.ToUserResponse(student))
}

// PUT /tracking/students/bulk-status
func (tc *TrackingController) BulkUpdateStatus(c *fiber.Ctx) error {
	var req trackingDTO.BulkStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := tc.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	result, err := trackingService.BulkUpdateStatus(tc.DB, &req, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Bulk status update finished", result)
}

// GET /tracking/students/status/:status
func (tc *TrackingController) GetStudentsByStatus(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	snapshots, err := trackingService.GetStudentsByStatus(tc.DB, c.Params("status"), schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Students fetched successfully", fiber.Map{
		"status":   c.Params("status"),
		"total":    len(snapshots),
		"students": snapshots,
	})
}

// POST /tracking/students/nearby
func (tc *TrackingController) GetStudentsByLocation(c *fiber.Ctx) error {
	var req trackingDTO.NearbyQuery
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := tc.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	students, err := trackingService.GetStudentsByLocation(tc.DB, *req.Latitude, *req.Longitude, req.RadiusKm, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Nearby students fetched successfully", fiber.Map{
		"total":    len(students),
		"students": students,
	})
}

// GET /tracking/students/:id/history?page=&per_page=
func (tc *TrackingController) GetTrackingHistory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}

	if err := tc.requireParentOfStudent(c, id); err != nil {
		return helper.FromFiberError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	paging := helper.ResolvePaging(c, 50, 200)
	events, total, err := trackingService.GetTrackingHistory(tc.DB, id, schoolID, paging)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonList(c, "Tracking history fetched successfully", events,
		helper.BuildPaginationFromPage(total, paging.Page, paging.PerPage))
}

// GET /tracking/students/:id (single student snapshot for parents/admins)
func (tc *TrackingController) GetStudentTracking(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}

	if err := tc.requireParentOfStudent(c, id); err != nil {
		return helper.FromFiberError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	student, err := studentService.GetStudentByID(tc.DB, id, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Tracking data fetched successfully", fiber.Map{
		"student_id":    student.ID,
		"name":          student.FullName(),
		"tracking_info": student.TrackingInfo,
	})
}

// GET /tracking/realtime
func (tc *TrackingController) GetRealTimeTrackingData(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	snapshots, err := trackingService.GetRealTimeTrackingData(tc.DB, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Real-time tracking data fetched successfully", fiber.Map{
		"total":    len(snapshots),
		"students": snapshots,
	})
}

// GET /tracking/analytics
func (tc *TrackingController) GetTrackingAnalytics(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	analytics, err := trackingService.GetTrackingAnalytics(tc.DB, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Tracking analytics fetched successfully", analytics)
}

// GET /tracking/analytics/buses
func (tc *TrackingController) GetBusTrackingSummary(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	summary, err := trackingService.GetBusTrackingSummary(tc.DB, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Bus tracking summary fetched successfully", fiber.Map{
		"total": len(summary),
		"buses": summary,
	})
}

// GET /tracking/analytics/grades
func (tc *TrackingController) GetTrackingStatsByGrade(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	stats, err := trackingService.GetTrackingStatsByGrade(tc.DB, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Grade tracking stats fetched successfully", fiber.Map{
		"total":  len(stats),
		"grades": stats,
	})
}

// GET /tracking/stale?hours=
func (tc *TrackingController) GetStudentsWithNoRecentTracking(c *fiber.Ctx) error {
	within := time.Duration(0)
	if raw := c.Query("hours"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours <= 0 {
			return helper.JsonError(c, fiber.StatusBadRequest, "Invalid hours parameter")
		}
		within = time.Duration(hours * float64(time.Hour))
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	students, err := trackingService.GetStudentsWithNoRecentTracking(tc.DB, within, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Stale tracking list fetched successfully", fiber.Map{
		"total":    len(students),
		"students": userDTO.ToUserResponses(students),
	})
}
