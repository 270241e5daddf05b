package service

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	trackingDTO "bustrack_backend/internals/features/tracking/dto"
	trackingModel "bustrack_backend/internals/features/tracking/model"
	userModel "bustrack_backend/internals/features/users/user/model"
	helper "bustrack_backend/internals/helpers"
)

const staleAfterDefault = 24 * time.Hour

func activeStudents(db *gorm.DB, schoolID string) *gorm.DB {
	q := db.Model(&userModel.UserModel{}).
		Where("role = ? AND is_active = ?", constants.RoleStudent, true)
	if schoolID != "" {
		q = q.Where("admin_school_id = ?", schoolID)
	}
	return q
}

func loadStudent(db *gorm.DB, studentID uuid.UUID, schoolID string) (*userModel.UserModel, error) {
	var student userModel.UserModel
	err := activeStudents(db, schoolID).Where("id = ?", studentID).First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Student not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load student")
	}
	return &student, nil
}

// UpdateStudentLocation records a new position. The status moves to
// "tracking" unless the request names one explicitly; every write also
// appends a history event.
func UpdateStudentLocation(db *gorm.DB, studentID uuid.UUID, req *trackingDTO.UpdateLocationRequest, schoolID string) (*userModel.UserModel, error) {
	student, err := loadStudent(db, studentID, schoolID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	status := req.Status
	if status == "" {
		status = userModel.TrackingStatusTracking
	}

	student.TrackingInfo.Status = status
	student.TrackingInfo.Location = userModel.GeoLocation{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Timestamp: &now,
		Accuracy:  req.Accuracy,
		Speed:     req.Speed,
		Heading:   req.Heading,
	}
	student.TrackingInfo.LastUpdated = &now
	if req.Notes != nil {
		student.TrackingInfo.Notes = req.Notes
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"tracking_status":        status,
			"tracking_loc_latitude":  req.Latitude,
			"tracking_loc_longitude": req.Longitude,
			"tracking_loc_timestamp": now,
			"tracking_loc_accuracy":  req.Accuracy,
			"tracking_loc_speed":     req.Speed,
			"tracking_loc_heading":   req.Heading,
			"tracking_last_updated":  now,
		}
		if req.Notes != nil {
			updates["tracking_notes"] = req.Notes
		}
		if err := tx.Model(&userModel.UserModel{}).
			Where("id = ?", student.ID).
			Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update location")
		}

		event := trackingModel.TrackingEvent{
			StudentID: student.ID,
			EventType: trackingModel.EventTypeLocation,
			Status:    status,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Notes:     req.Notes,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to record tracking event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// UpdateStudentStatus sets the tracking status without touching the position.
func UpdateStudentStatus(db *gorm.DB, studentID uuid.UUID, req *trackingDTO.UpdateStatusRequest, schoolID string) (*userModel.UserModel, error) {
	student, err := loadStudent(db, studentID, schoolID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	student.TrackingInfo.Status = req.Status
	student.TrackingInfo.LastUpdated = &now
	if req.Notes != nil {
		student.TrackingInfo.Notes = req.Notes
	}
	hasLocation := req.Latitude != nil && req.Longitude != nil
	if hasLocation {
		// A status change may carry a position. It replaces the location
		// sub-document wholesale, same as a location update.
		student.TrackingInfo.Location = userModel.GeoLocation{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Timestamp: &now,
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"tracking_status":       req.Status,
			"tracking_last_updated": now,
		}
		if req.Notes != nil {
			updates["tracking_notes"] = req.Notes
		}
		if hasLocation {
			updates["tracking_loc_latitude"] = req.Latitude
			updates["tracking_loc_longitude"] = req.Longitude
			updates["tracking_loc_timestamp"] = now
			updates["tracking_loc_accuracy"] = nil
			updates["tracking_loc_speed"] = nil
			updates["tracking_loc_heading"] = nil
		}
		if err := tx.Model(&userModel.UserModel{}).
			Where("id = ?", student.ID).
			Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update status")
		}

		event := trackingModel.TrackingEvent{
			StudentID: student.ID,
			EventType: trackingModel.EventTypeStatus,
			Status:    req.Status,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Notes:     req.Notes,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to record tracking event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// SendEmergencyAlert raises an emergency: status is forced to "emergency"
// and the alert sub-document is written. This is the only writer of the
// alert fields.
func SendEmergencyAlert(db *gorm.DB, studentID uuid.UUID, req *trackingDTO.EmergencyAlertRequest, schoolID string) (*userModel.UserModel, error) {
	student, err := loadStudent(db, studentID, schoolID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	student.TrackingInfo.Status = userModel.TrackingStatusEmergency
	student.TrackingInfo.LastUpdated = &now
	student.TrackingInfo.Alert = userModel.EmergencyAlert{
		Type:      &req.Type,
		Message:   &req.Message,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Timestamp: &now,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&userModel.UserModel{}).
			Where("id = ?", student.ID).
			Updates(map[string]any{
				"tracking_status":          userModel.TrackingStatusEmergency,
				"tracking_last_updated":    now,
				"tracking_alert_type":      req.Type,
				"tracking_alert_message":   req.Message,
				"tracking_alert_latitude":  req.Latitude,
				"tracking_alert_longitude": req.Longitude,
				"tracking_alert_timestamp": now,
			}).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to send emergency alert")
		}

		event := trackingModel.TrackingEvent{
			StudentID:    student.ID,
			EventType:    trackingModel.EventTypeEmergency,
			Status:       userModel.TrackingStatusEmergency,
			Latitude:     req.Latitude,
			Longitude:    req.Longitude,
			AlertType:    &req.Type,
			AlertMessage: &req.Message,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to record tracking event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// ClearEmergencyAlert resolves an emergency back to "active" and blanks the
// alert fields.
func ClearEmergencyAlert(db *gorm.DB, studentID uuid.UUID, schoolID string) (*userModel.UserModel, error) {
	student, err := loadStudent(db, studentID, schoolID)
	if err != nil {
		return nil, err
	}
	if student.TrackingInfo.Status != userModel.TrackingStatusEmergency {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Student has no active emergency")
	}

	now := time.Now()
	student.TrackingInfo.Status = userModel.TrackingStatusActive
	student.TrackingInfo.LastUpdated = &now
	student.TrackingInfo.Alert = userModel.EmergencyAlert{}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&userModel.UserModel{}).
			Where("id = ?", student.ID).
			Updates(map[string]any{
				"tracking_status":          userModel.TrackingStatusActive,
				"tracking_last_updated":    now,
				"tracking_alert_type":      nil,
				"tracking_alert_message":   nil,
				"tracking_alert_latitude":  nil,
				"tracking_alert_longitude": nil,
				"tracking_alert_timestamp": nil,
			}).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to clear emergency alert")
		}

		event := trackingModel.TrackingEvent{
			StudentID: student.ID,
			EventType: trackingModel.EventTypeStatus,
			Status:    userModel.TrackingStatusActive,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to record tracking event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// BulkUpdateStatus applies one status to many students, best effort. Items
// that fail are reported; the rest are committed.
func BulkUpdateStatus(db *gorm.DB, req *trackingDTO.BulkStatusRequest, schoolID string) (*trackingDTO.BulkStatusResult, error) {
	result := &trackingDTO.BulkStatusResult{}
	statusReq := &trackingDTO.UpdateStatusRequest{Status: req.Status, Notes: req.Notes}

	for _, id := range req.StudentIDs {
		if _, err := UpdateStudentStatus(db, id, statusReq, schoolID); err != nil {
			reason := "update failed"
			var fe *fiber.Error
			if errors.As(err, &fe) {
				reason = fe.Message
			}
			result.Failed = append(result.Failed, trackingDTO.BulkStatusError{
				StudentID: id,
				Reason:    reason,
			})
			continue
		}
		result.Updated++
	}
	return result, nil
}

// GetStudentsByStatus returns the live snapshots of students in one status.
func GetStudentsByStatus(db *gorm.DB, status, schoolID string) ([]trackingDTO.TrackingSnapshot, error) {
	if !userModel.IsValidTrackingStatus(status) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid tracking status")
	}

	var students []userModel.UserModel
	if err := activeStudents(db, schoolID).
		Where("tracking_status = ?", status).
		Order("tracking_last_updated DESC").
		Find(&students).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load students")
	}
	return toSnapshots(students), nil
}

// GetStudentsByLocation finds students inside the square bounding box
// around the point and annotates each with the great-circle distance. The
// box is the filter; the distance is informational only.
func GetStudentsByLocation(db *gorm.DB, lat, lng, radiusKm float64, schoolID string) ([]trackingDTO.StudentWithDistance, error) {
	if radiusKm <= 0 {
		radiusKm = 5
	}
	box := helper.BoundingBoxAround(lat, lng, radiusKm)

	var students []userModel.UserModel
	if err := activeStudents(db, schoolID).
		Where("tracking_loc_latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("tracking_loc_longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng).
		Find(&students).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to search by location")
	}

	out := make([]trackingDTO.StudentWithDistance, 0, len(students))
	for i := range students {
		loc := students[i].TrackingInfo.Location
		if loc.Latitude == nil || loc.Longitude == nil {
			continue
		}
		d := helper.HaversineKm(lat, lng, *loc.Latitude, *loc.Longitude)
		out = append(out, trackingDTO.StudentWithDistance{Student: students[i], DistanceKm: d})
	}
	return out, nil
}

// GetTrackingHistory pages a student's event log, newest first.
func GetTrackingHistory(db *gorm.DB, studentID uuid.UUID, schoolID string, paging helper.Paging) ([]trackingModel.TrackingEvent, int64, error) {
	if _, err := loadStudent(db, studentID, schoolID); err != nil {
		return nil, 0, err
	}

	query := db.Model(&trackingModel.TrackingEvent{}).Where("student_id = ?", studentID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusInternalServerError, "failed to count tracking events")
	}

	var events []trackingModel.TrackingEvent
	if err := query.
		Order("created_at DESC").
		Limit(paging.PerPage).
		Offset(paging.Offset).
		Find(&events).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusInternalServerError, "failed to load tracking history")
	}
	return events, total, nil
}

// GetRealTimeTrackingData returns the snapshots of everyone currently being
// tracked or in emergency.
func GetRealTimeTrackingData(db *gorm.DB, schoolID string) ([]trackingDTO.TrackingSnapshot, error) {
	var students []userModel.UserModel
	if err := activeStudents(db, schoolID).
		Where("tracking_status IN ?", []string{
			userModel.TrackingStatusTracking,
			userModel.TrackingStatusEmergency,
		}).
		Order("tracking_last_updated DESC").
		Find(&students).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load tracking data")
	}
	return toSnapshots(students), nil
}

// GetTrackingAnalytics aggregates statuses, open emergencies and stale rows.
func GetTrackingAnalytics(db *gorm.DB, schoolID string) (*trackingDTO.TrackingAnalytics, error) {
	analytics := &trackingDTO.TrackingAnalytics{
		ByStatus:         map[string]int64{},
		StaleThresholdHr: staleAfterDefault.Hours(),
	}

	if err := activeStudents(db, schoolID).Count(&analytics.Total).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count students")
	}

	type bucket struct {
		Key   string
		Count int64
	}
	var statuses []bucket
	if err := activeStudents(db, schoolID).
		Select("tracking_status AS key, COUNT(*) AS count").
		Group("tracking_status").
		Scan(&statuses).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate statuses")
	}
	for _, b := range statuses {
		if b.Key != "" {
			analytics.ByStatus[b.Key] = b.Count
		}
	}
	analytics.ActiveEmergencies = analytics.ByStatus[userModel.TrackingStatusEmergency]

	cutoff := time.Now().Add(-staleAfterDefault)
	if err := activeStudents(db, schoolID).
		Where("tracking_last_updated IS NULL OR tracking_last_updated < ?", cutoff).
		Count(&analytics.StaleCount).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to count stale rows")
	}
	return analytics, nil
}

// GetBusTrackingSummary breaks the fleet down per bus with status counts.
func GetBusTrackingSummary(db *gorm.DB, schoolID string) ([]trackingDTO.BusTrackingSummary, error) {
	type row struct {
		Bus    string
		Status string
		Count  int64
	}
	var rows []row
	if err := activeStudents(db, schoolID).
		Select("bus_number AS bus, tracking_status AS status, COUNT(*) AS count").
		Where("bus_number IS NOT NULL").
		Group("bus_number, tracking_status").
		Order("bus_number ASC").
		Scan(&rows).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate buses")
	}

	byBus := map[string]*trackingDTO.BusTrackingSummary{}
	order := []string{}
	for _, r := range rows {
		s, ok := byBus[r.Bus]
		if !ok {
			s = &trackingDTO.BusTrackingSummary{BusNumber: r.Bus, ByStatus: map[string]int64{}}
			byBus[r.Bus] = s
			order = append(order, r.Bus)
		}
		s.Total += r.Count
		if r.Status != "" {
			s.ByStatus[r.Status] = r.Count
		}
	}

	out := make([]trackingDTO.BusTrackingSummary, 0, len(order))
	for _, bus := range order {
		out = append(out, *byBus[bus])
	}
	return out, nil
}

// GetTrackingStatsByGrade breaks tracking statuses down per grade.
func GetTrackingStatsByGrade(db *gorm.DB, schoolID string) ([]trackingDTO.GradeTrackingStats, error) {
	type row struct {
		Grade  *int
		Status string
		Count  int64
	}
	var rows []row
	if err := activeStudents(db, schoolID).
		Select("student_grade AS grade, tracking_status AS status, COUNT(*) AS count").
		Where("student_grade IS NOT NULL").
		Group("student_grade, tracking_status").
		Order("student_grade ASC").
		Scan(&rows).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate grades")
	}

	byGrade := map[int]*trackingDTO.GradeTrackingStats{}
	order := []int{}
	for _, r := range rows {
		if r.Grade == nil {
			continue
		}
		s, ok := byGrade[*r.Grade]
		if !ok {
			s = &trackingDTO.GradeTrackingStats{Grade: *r.Grade, ByStatus: map[string]int64{}}
			byGrade[*r.Grade] = s
			order = append(order, *r.Grade)
		}
		s.Total += r.Count
		if r.Status != "" {
			s.ByStatus[r.Status] = r.Count
		}
	}

	out := make([]trackingDTO.GradeTrackingStats, 0, len(order))
	for _, g := range order {
		out = append(out, *byGrade[g])
	}
	return out, nil
}

// GetStudentsWithNoRecentTracking lists students whose last update is older
// than the window (default 24h), or who never reported at all.
func GetStudentsWithNoRecentTracking(db *gorm.DB, within time.Duration, schoolID string) ([]userModel.UserModel, error) {
	if within <= 0 {
		within = staleAfterDefault
	}
	cutoff := time.Now().Add(-within)

	var students []userModel.UserModel
	if err := activeStudents(db, schoolID).
		Where("tracking_last_updated IS NULL OR tracking_last_updated < ?", cutoff).
		Order("tracking_last_updated ASC").
		Find(&students).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load stale students")
	}
	return students, nil
}

func toSnapshots(students []userModel.UserModel) []trackingDTO.TrackingSnapshot {
	out := make([]trackingDTO.TrackingSnapshot, 0, len(students))
	for i := range students {
		s := &students[i]
		snap := trackingDTO.TrackingSnapshot{
			StudentID:   s.ID,
			Name:        s.FullName(),
			Grade:       s.StudentInfo.Grade,
			BusNumber:   s.BusInfo.Number,
			Status:      s.TrackingInfo.Status,
			Location:    s.TrackingInfo.Location,
			LastUpdated: s.TrackingInfo.LastUpdated,
		}
		if s.TrackingInfo.Status == userModel.TrackingStatusEmergency {
			alert := s.TrackingInfo.Alert
			snap.Alert = &alert
		}
		out = append(out, snap)
	}
	return out
}
