package dto

import (
	"time"

	"github.com/google/uuid"

	userModel "bustrack_backend/internals/features/users/user/model"
)

/* ==========================
   Requests
========================== */

type UpdateLocationRequest struct {
	// Pointers so that 0 (equator, prime meridian) still satisfies required.
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
	Accuracy  *float64 `json:"accuracy,omitempty" validate:"omitempty,min=0"`
	Speed     *float64 `json:"speed,omitempty" validate:"omitempty,min=0"`
	Heading   *float64 `json:"heading,omitempty" validate:"omitempty,min=0,max=360"`
	Status    string   `json:"status,omitempty" validate:"omitempty,oneof=active inactive tracking emergency"`
	Notes     *string  `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive tracking emergency"`
	// Optional position carried with the status change.
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	Notes     *string  `json:"notes,omitempty"`
}

type EmergencyAlertRequest struct {
	Type      string   `json:"type" validate:"required,oneof=medical safety transport other"`
	Message   string   `json:"message" validate:"required,min=1"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
}

type BulkStatusRequest struct {
	StudentIDs []uuid.UUID `json:"student_ids" validate:"required,min=1"`
	Status     string      `json:"status" validate:"required,oneof=active inactive tracking emergency"`
	Notes      *string     `json:"notes,omitempty"`
}

type NearbyQuery struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
	RadiusKm  float64  `json:"radius_km" validate:"omitempty,min=0"`
}

/* ==========================
   Responses
========================== */

// BulkStatusResult reports a best-effort bulk update: items that failed are
// listed, the rest succeeded.
type BulkStatusResult struct {
	Updated int64             `json:"updated"`
	Failed  []BulkStatusError `json:"failed,omitempty"`
}

type BulkStatusError struct {
	StudentID uuid.UUID `json:"student_id"`
	Reason    string    `json:"reason"`
}

// StudentWithDistance annotates a student with the great-circle distance
// from the query point.
type StudentWithDistance struct {
	Student    userModel.UserModel `json:"student"`
	DistanceKm float64             `json:"distance_km"`
}

// TrackingSnapshot is one student's live tracking state.
type TrackingSnapshot struct {
	StudentID   uuid.UUID                 `json:"student_id"`
	Name        string                    `json:"name"`
	Grade       *int                      `json:"grade,omitempty"`
	BusNumber   *string                   `json:"bus_number,omitempty"`
	Status      string                    `json:"status"`
	Location    userModel.GeoLocation     `json:"location"`
	LastUpdated *time.Time                `json:"last_updated,omitempty"`
	Alert       *userModel.EmergencyAlert `json:"emergency_alert,omitempty"`
}

// TrackingAnalytics is the status breakdown plus emergency and staleness
// counters.
type TrackingAnalytics struct {
	Total             int64            `json:"total"`
	ByStatus          map[string]int64 `json:"by_status"`
	ActiveEmergencies int64            `json:"active_emergencies"`
	StaleCount        int64            `json:"stale_count"`
	StaleThresholdHr  float64          `json:"stale_threshold_hours"`
}

// BusTrackingSummary is one bus with its riders' status counts.
type BusTrackingSummary struct {
	BusNumber string           `json:"bus_number"`
	Total     int64            `json:"total"`
	ByStatus  map[string]int64 `json:"by_status"`
}

// GradeTrackingStats is the per-grade status breakdown.
type GradeTrackingStats struct {
	Grade    int              `json:"grade"`
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}
