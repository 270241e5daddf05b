package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EventTypeLocation  = "location"
	EventTypeStatus    = "status"
	EventTypeEmergency = "emergency"
)

// TrackingEvent is one row of the append-only tracking history. The live
// state lives on the student row; every write there also appends here.
type TrackingEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;index:idx_tracking_events_student_created" json:"student_id"`
	EventType string    `gorm:"size:20;not null;index" json:"event_type"`

	Status    string   `gorm:"size:20" json:"status,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Notes     *string  `json:"notes,omitempty"`

	AlertType    *string `gorm:"size:20" json:"alert_type,omitempty"`
	AlertMessage *string `json:"alert_message,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_tracking_events_student_created" json:"created_at"`
}

func (TrackingEvent) TableName() string {
	return "tracking_events"
}

func (e *TrackingEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
