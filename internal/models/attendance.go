package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attendance is a check-in; one per (event, attendee).
type Attendance struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EventID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_event_attendee" json:"event_id"`
	AttendeeID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_event_attendee;index" json:"attendee_id"`
	Event       Event     `gorm:"foreignKey:EventID" json:"-"`
	Attendee    User      `gorm:"foreignKey:AttendeeID" json:"-"`
	CheckedInAt time.Time `gorm:"not null;index" json:"checked_in_at"`
	SourceIP    string    `gorm:"size:64" json:"source_ip,omitempty"`
	UserAgent   string    `gorm:"size:512" json:"user_agent,omitempty"`
	Client      string    `gorm:"size:100" json:"client,omitempty"`
}

func (a *Attendance) BeforeCreate(_ *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
