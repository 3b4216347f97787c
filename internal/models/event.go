package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event is a single session. Recurrence fields are only meaningful on a
// series parent, which has a nil ParentID.
type Event struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name                string          `gorm:"size:255;not null" json:"name"`
	Location            string          `gorm:"size:255" json:"location"`
	StartTime           time.Time       `gorm:"not null;index" json:"start_time"`
	EndTime             time.Time       `gorm:"not null" json:"end_time"`
	Timezone            string          `gorm:"size:64" json:"timezone"`
	Notes               string          `gorm:"type:text" json:"notes"`
	CheckinOpenMinutes  int             `gorm:"not null;default:15" json:"checkin_open_minutes"`
	CheckinToken        string          `gorm:"size:64;not null;uniqueIndex" json:"checkin_token"`
	OrganizerID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"organizer_id"`
	Organizer           User            `gorm:"foreignKey:OrganizerID" json:"-"`
	Recurring           bool            `gorm:"not null;default:false" json:"recurring"`
	Weekdays            datatypes.JSON  `json:"weekdays"`
	EndDate             *datatypes.Date `json:"end_date"`
	ParentID            *uuid.UUID      `gorm:"type:uuid;index" json:"parent_id"`
	AttendanceThreshold *int            `json:"attendance_threshold"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (e *Event) BeforeCreate(_ *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// SeriesID is the parent's id for a child and the event's own id otherwise.
func (e *Event) SeriesID() uuid.UUID {
	if e.ParentID != nil {
		return *e.ParentID
	}
	return e.ID
}

// WeekdayNames decodes the stored weekday list; malformed JSON reads as empty.
func (e *Event) WeekdayNames() []string {
	if len(e.Weekdays) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(e.Weekdays, &names); err != nil {
		return nil
	}
	return names
}

// CheckinOpensAt is the start of the check-in window.
func (e *Event) CheckinOpensAt() time.Time {
	return e.StartTime.Add(-time.Duration(e.CheckinOpenMinutes) * time.Minute)
}

// CheckinOpen reports whether now falls in [start - open minutes, end].
func (e *Event) CheckinOpen(now time.Time) bool {
	return !now.Before(e.CheckinOpensAt()) && !now.After(e.EndTime)
}

// EventMember places a user on a session's expected roster.
type EventMember struct {
	EventID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"event_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
