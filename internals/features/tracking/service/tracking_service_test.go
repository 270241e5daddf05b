package service

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	trackingDTO "bustrack_backend/internals/features/tracking/dto"
	trackingModel "bustrack_backend/internals/features/tracking/model"
	authDTO "bustrack_backend/internals/features/users/auth/dto"
	authService "bustrack_backend/internals/features/users/auth/service"
	userModel "bustrack_backend/internals/features/users/user/model"
	helper "bustrack_backend/internals/helpers"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&userModel.UserModel{}, &trackingModel.TrackingEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, username, schoolID, bus string, grade int) *userModel.UserModel {
	t.Helper()
	rel := "mother"
	parent, err := authService.CreateUser(db, &authDTO.SignupRequest{
		UserName:   username + "_parent",
		Email:      username + "_parent@example.com",
		Password:   "secret123",
		FirstName:  "Pat",
		LastName:   "Doe",
		Role:       constants.RoleParent,
		ParentInfo: &authDTO.ParentInfoInput{Relationship: &rel},
	})
	if err != nil {
		t.Fatalf("seed parent: %v", err)
	}

	req := &authDTO.SignupRequest{
		UserName:    username,
		Email:       username + "@example.com",
		Password:    "secret123",
		FirstName:   "Sam",
		LastName:    username,
		Role:        constants.RoleStudent,
		StudentInfo: &authDTO.StudentInfoInput{Grade: &grade, ParentID: &parent.ID},
	}
	if schoolID != "" {
		name := "School " + schoolID
		req.AdminInfo = &authDTO.AdminInfoInput{SchoolID: &schoolID, SchoolName: &name}
	}
	if bus != "" {
		req.BusInfo = &authDTO.BusInfoInput{Number: &bus}
	}
	student, err := authService.CreateUser(db, req)
	if err != nil {
		t.Fatalf("seed student %s: %v", username, err)
	}
	return student
}

func locationReq(lat, lng float64) *trackingDTO.UpdateLocationRequest {
	return &trackingDTO.UpdateLocationRequest{Latitude: &lat, Longitude: &lng}
}

func defaultPaging() helper.Paging {
	return helper.Paging{Page: 1, PerPage: 50, Offset: 0}
}

func TestUpdateStudentLocation(t *testing.T) {
	db := setupTestDB(t, "tracking_location")
	student := seedStudent(t, db, "sam", "sch-a", "B-1", 4)

	updated, err := UpdateStudentLocation(db, student.ID, locationReq(48.85, 2.35), "sch-a")
	if err != nil {
		t.Fatalf("update location: %v", err)
	}
	if updated.TrackingInfo.Status != userModel.TrackingStatusTracking {
		t.Fatalf("expected status tracking, got %q", updated.TrackingInfo.Status)
	}
	if updated.TrackingInfo.Location.Latitude == nil || *updated.TrackingInfo.Location.Latitude != 48.85 {
		t.Fatal("latitude not stored")
	}
	if updated.TrackingInfo.LastUpdated == nil {
		t.Fatal("last_updated not set")
	}

	// Explicit status wins over the default.
	req := locationReq(48.86, 2.36)
	req.Status = userModel.TrackingStatusActive
	updated, err = UpdateStudentLocation(db, student.ID, req, "sch-a")
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if updated.TrackingInfo.Status != userModel.TrackingStatusActive {
		t.Fatalf("expected explicit status, got %q", updated.TrackingInfo.Status)
	}

	// Every write appended a history event.
	var count int64
	if err := db.Model(&trackingModel.TrackingEvent{}).
		Where("student_id = ?", student.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 events, got %d", count)
	}
}

func TestUpdateLocationScope(t *testing.T) {
	db := setupTestDB(t, "tracking_scope")
	student := seedStudent(t, db, "sam", "sch-a", "", 4)

	_, err := UpdateStudentLocation(db, student.ID, locationReq(48.85, 2.35), "sch-b")
	if err == nil {
		t.Fatal("expected cross-tenant update to fail")
	}
	if fe, ok := err.(*fiber.Error); !ok || fe.Code != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestUpdateStudentStatusCarriesLocation(t *testing.T) {
	db := setupTestDB(t, "tracking_status_location")
	student := seedStudent(t, db, "sam", "sch-a", "", 4)

	if _, err := UpdateStudentLocation(db, student.ID, locationReq(10, 20), "sch-a"); err != nil {
		t.Fatalf("seed location: %v", err)
	}

	// A status-only update leaves the position alone.
	lat := 48.85
	lng := 2.35
	updated, err := UpdateStudentStatus(db, student.ID, &trackingDTO.UpdateStatusRequest{
		Status: userModel.TrackingStatusActive,
	}, "sch-a")
	if err != nil {
		t.Fatalf("status only: %v", err)
	}
	if *updated.TrackingInfo.Location.Latitude != 10 {
		t.Fatalf("status-only update moved the position to %v", *updated.TrackingInfo.Location.Latitude)
	}

	// A status update carrying a position replaces it.
	updated, err = UpdateStudentStatus(db, student.ID, &trackingDTO.UpdateStatusRequest{
		Status:    userModel.TrackingStatusInactive,
		Latitude:  &lat,
		Longitude: &lng,
	}, "sch-a")
	if err != nil {
		t.Fatalf("status with location: %v", err)
	}
	if *updated.TrackingInfo.Location.Latitude != 48.85 || *updated.TrackingInfo.Location.Longitude != 2.35 {
		t.Fatalf("position not updated: %+v", updated.TrackingInfo.Location)
	}

	var reloaded userModel.UserModel
	if err := db.First(&reloaded, "id = ?", student.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.TrackingInfo.Location.Latitude == nil || *reloaded.TrackingInfo.Location.Latitude != 48.85 {
		t.Fatal("stored position not updated")
	}

	// The history event records the carried position.
	var event trackingModel.TrackingEvent
	err = db.Where("student_id = ? AND event_type = ? AND latitude IS NOT NULL",
		student.ID, trackingModel.EventTypeStatus).First(&event).Error
	if err != nil {
		t.Fatalf("load event: %v", err)
	}
	if *event.Latitude != 48.85 || event.Status != userModel.TrackingStatusInactive {
		t.Fatalf("event does not match the carried position: %+v", event)
	}
}

func TestEmergencyAlertLifecycle(t *testing.T) {
	db := setupTestDB(t, "tracking_emergency")
	student := seedStudent(t, db, "sam", "sch-a", "", 4)

	lat, lng := 48.85, 2.35
	updated, err := SendEmergencyAlert(db, student.ID, &trackingDTO.EmergencyAlertRequest{
		Type:      userModel.AlertTypeMedical,
		Message:   "allergic reaction",
		Latitude:  &lat,
		Longitude: &lng,
	}, "sch-a")
	if err != nil {
		t.Fatalf("emergency: %v", err)
	}
	if updated.TrackingInfo.Status != userModel.TrackingStatusEmergency {
		t.Fatalf("expected forced emergency status, got %q", updated.TrackingInfo.Status)
	}
	if updated.TrackingInfo.Alert.Type == nil || *updated.TrackingInfo.Alert.Type != userModel.AlertTypeMedical {
		t.Fatal("alert type not stored")
	}
	if updated.TrackingInfo.Alert.Message == nil || *updated.TrackingInfo.Alert.Message != "allergic reaction" {
		t.Fatal("alert message not stored")
	}

	cleared, err := ClearEmergencyAlert(db, student.ID, "sch-a")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.TrackingInfo.Status != userModel.TrackingStatusActive {
		t.Fatalf("expected active after clear, got %q", cleared.TrackingInfo.Status)
	}

	var reloaded userModel.UserModel
	if err := db.First(&reloaded, "id = ?", student.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.TrackingInfo.Alert.Type != nil || reloaded.TrackingInfo.Alert.Message != nil {
		t.Fatal("alert fields not blanked")
	}

	// Clearing twice is a 400.
	if _, err := ClearEmergencyAlert(db, student.ID, "sch-a"); err == nil {
		t.Fatal("expected error without an active emergency")
	}
}

func TestBulkUpdateStatusBestEffort(t *testing.T) {
	db := setupTestDB(t, "tracking_bulk")
	s1 := seedStudent(t, db, "alice", "sch-a", "", 3)
	s2 := seedStudent(t, db, "bob", "sch-a", "", 3)
	ghost := uuid.New()

	result, err := BulkUpdateStatus(db, &trackingDTO.BulkStatusRequest{
		StudentIDs: []uuid.UUID{s1.ID, ghost, s2.ID},
		Status:     userModel.TrackingStatusInactive,
	}, "sch-a")
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if result.Updated != 2 {
		t.Fatalf("expected 2 updated, got %d", result.Updated)
	}
	if len(result.Failed) != 1 || result.Failed[0].StudentID != ghost {
		t.Fatalf("expected the ghost id to fail, got %+v", result.Failed)
	}

	var reloaded userModel.UserModel
	if err := db.First(&reloaded, "id = ?", s1.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.TrackingInfo.Status != userModel.TrackingStatusInactive {
		t.Fatalf("status not applied, got %q", reloaded.TrackingInfo.Status)
	}
}

func TestGetStudentsByLocation(t *testing.T) {
	db := setupTestDB(t, "tracking_nearby")
	near := seedStudent(t, db, "near", "sch-a", "", 4)
	far := seedStudent(t, db, "far", "sch-a", "", 4)
	seedStudent(t, db, "silent", "sch-a", "", 4)

	// ~1.1 km east of the query point.
	if _, err := UpdateStudentLocation(db, near.ID, locationReq(48.85, 2.365), "sch-a"); err != nil {
		t.Fatalf("near: %v", err)
	}
	// ~55 km away.
	if _, err := UpdateStudentLocation(db, far.ID, locationReq(48.35, 2.35), "sch-a"); err != nil {
		t.Fatalf("far: %v", err)
	}

	found, err := GetStudentsByLocation(db, 48.85, 2.35, 5, "sch-a")
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected only the near student, got %d", len(found))
	}
	if found[0].Student.ID != near.ID {
		t.Fatal("wrong student matched")
	}
	if found[0].DistanceKm <= 0 || found[0].DistanceKm > 2 {
		t.Fatalf("distance annotation out of range: %f", found[0].DistanceKm)
	}
}

func TestGetTrackingHistoryOrder(t *testing.T) {
	db := setupTestDB(t, "tracking_history")
	student := seedStudent(t, db, "sam", "sch-a", "", 4)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		event := trackingModel.TrackingEvent{
			StudentID: student.ID,
			EventType: trackingModel.EventTypeStatus,
			Status:    userModel.TrackingStatusActive,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&event).Error; err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	events, total, err := GetTrackingHistory(db, student.ID, "sch-a", defaultPaging())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 3 || len(events) != 3 {
		t.Fatalf("expected 3 events, got total=%d len=%d", total, len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].CreatedAt.After(events[i-1].CreatedAt) {
			t.Fatal("history not newest first")
		}
	}
}

func TestGetRealTimeTrackingData(t *testing.T) {
	db := setupTestDB(t, "tracking_realtime")
	tracked := seedStudent(t, db, "tracked", "sch-a", "", 4)
	seedStudent(t, db, "idle", "sch-a", "", 4)

	if _, err := UpdateStudentLocation(db, tracked.ID, locationReq(48.85, 2.35), "sch-a"); err != nil {
		t.Fatalf("update: %v", err)
	}

	snapshots, err := GetRealTimeTrackingData(db, "sch-a")
	if err != nil {
		t.Fatalf("realtime: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].StudentID != tracked.ID {
		t.Fatalf("expected only the tracked student, got %d", len(snapshots))
	}
	if snapshots[0].Alert != nil {
		t.Fatal("no alert expected outside emergency")
	}
}

func TestGetTrackingAnalytics(t *testing.T) {
	db := setupTestDB(t, "tracking_analytics")
	s1 := seedStudent(t, db, "alice", "sch-a", "", 3)
	seedStudent(t, db, "bob", "sch-a", "", 3)

	if _, err := SendEmergencyAlert(db, s1.ID, &trackingDTO.EmergencyAlertRequest{
		Type:    userModel.AlertTypeSafety,
		Message: "missed the stop",
	}, "sch-a"); err != nil {
		t.Fatalf("emergency: %v", err)
	}

	analytics, err := GetTrackingAnalytics(db, "sch-a")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if analytics.Total != 2 {
		t.Fatalf("expected 2 students, got %d", analytics.Total)
	}
	if analytics.ActiveEmergencies != 1 {
		t.Fatalf("expected 1 emergency, got %d", analytics.ActiveEmergencies)
	}
	// bob never reported a location.
	if analytics.StaleCount != 1 {
		t.Fatalf("expected 1 stale, got %d", analytics.StaleCount)
	}
}

func TestGetStudentsWithNoRecentTracking(t *testing.T) {
	db := setupTestDB(t, "tracking_stale")
	fresh := seedStudent(t, db, "fresh", "sch-a", "", 4)
	stale := seedStudent(t, db, "stale", "sch-a", "", 4)
	never := seedStudent(t, db, "never", "sch-a", "", 4)

	if _, err := UpdateStudentLocation(db, fresh.ID, locationReq(48.85, 2.35), "sch-a"); err != nil {
		t.Fatalf("fresh: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := db.Model(&userModel.UserModel{}).
		Where("id = ?", stale.ID).
		Update("tracking_last_updated", old).Error; err != nil {
		t.Fatalf("age stale row: %v", err)
	}

	rows, err := GetStudentsWithNoRecentTracking(db, 0, "sch-a")
	if err != nil {
		t.Fatalf("stale list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected stale+never, got %d", len(rows))
	}
	ids := map[uuid.UUID]bool{rows[0].ID: true, rows[1].ID: true}
	if !ids[stale.ID] || !ids[never.ID] {
		t.Fatal("wrong rows flagged stale")
	}
}

func TestBusAndGradeBreakdowns(t *testing.T) {
	db := setupTestDB(t, "tracking_breakdowns")
	seedStudent(t, db, "alice", "sch-a", "B-1", 3)
	seedStudent(t, db, "bob", "sch-a", "B-1", 3)
	seedStudent(t, db, "carol", "sch-a", "B-2", 5)

	buses, err := GetBusTrackingSummary(db, "sch-a")
	if err != nil {
		t.Fatalf("buses: %v", err)
	}
	if len(buses) != 2 {
		t.Fatalf("expected 2 buses, got %d", len(buses))
	}
	if buses[0].BusNumber != "B-1" || buses[0].Total != 2 {
		t.Fatalf("unexpected first bus: %+v", buses[0])
	}

	grades, err := GetTrackingStatsByGrade(db, "sch-a")
	if err != nil {
		t.Fatalf("grades: %v", err)
	}
	if len(grades) != 2 || grades[0].Grade != 3 || grades[0].Total != 2 {
		t.Fatalf("unexpected grade stats: %+v", grades)
	}
}
