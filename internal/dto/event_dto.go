package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/google/uuid"
)

// CreateEventRequest carries wall-clock times interpreted in Timezone.
type CreateEventRequest struct {
	Name                string      `json:"name"`
	Location            string      `json:"location"`
	StartTime           string      `json:"start_time"`
	EndTime             string      `json:"end_time"`
	Timezone            string      `json:"timezone"`
	Notes               string      `json:"notes"`
	CheckinOpenMinutes  *int        `json:"checkin_open_minutes"`
	Recurring           bool        `json:"recurring"`
	Weekdays            []string    `json:"weekdays"`
	EndDate             string      `json:"end_date"`
	AttendanceThreshold *int        `json:"attendance_threshold"`
	MemberIDs           []uuid.UUID `json:"member_ids"`
}

type CheckinRequest struct {
	Token string `json:"token"`
}

// CheckinSource is request metadata recorded with a check-in.
type CheckinSource struct {
	IP        string
	UserAgent string
}

type CreateEventResponse struct {
	models.Event
	ChildCount int `json:"child_count"`
}

type EventByTokenResponse struct {
	models.Event
	AttendanceCount int64 `json:"attendance_count"`
}

type AttendeeResponse struct {
	AttendanceID uuid.UUID `json:"attendance_id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	CheckedInAt  time.Time `json:"checked_in_at"`
	Client       string    `json:"client,omitempty"`
}

type MyCheckinResponse struct {
	EventID     uuid.UUID `json:"event_id"`
	EventName   string    `json:"event_name"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

type MemberSummary struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Attended  int       `json:"attended"`
	Missed    int       `json:"missed"`
	IsFlagged bool      `json:"is_flagged"`
}

type EventFamilyResponse struct {
	Parent            models.Event    `json:"parent"`
	UpcomingChildren  []models.Event  `json:"upcoming_children"`
	PastChildren      []models.Event  `json:"past_children"`
	TotalPastSessions int             `json:"total_past_sessions"`
	NextSession       *models.Event   `json:"next_session"`
	Members           []MemberSummary `json:"members"`
}

type RecurringGroup struct {
	Parent            models.Event   `json:"parent"`
	Children          []models.Event `json:"children"`
	NextSession       *models.Event  `json:"next_session"`
	PastSessions      int            `json:"past_sessions"`
	UpcomingSessions  int            `json:"upcoming_sessions"`
	TotalPastSessions int            `json:"total_past_sessions"`
}

const (
	DashboardSolo           = "solo"
	DashboardRecurringGroup = "recurring_group"
)

type DashboardItem struct {
	Type  string          `json:"type"`
	Event *models.Event   `json:"event,omitempty"`
	Group *RecurringGroup `json:"group,omitempty"`
}

type DashboardResponse struct {
	Upcoming []DashboardItem `json:"upcoming"`
	Past     []DashboardItem `json:"past"`
}

// MyEventSummary is one series from the attendee's point of view.
type MyEventSummary struct {
	Parent              models.Event  `json:"parent"`
	NextSession         *models.Event `json:"next_session"`
	TotalSessions       int           `json:"total_sessions"`
	TotalPastSessions   int           `json:"total_past_sessions"`
	Attended            int           `json:"attended"`
	Missed              int           `json:"missed"`
	IsFlagged           bool          `json:"is_flagged"`
	AttendanceThreshold *int          `json:"attendance_threshold"`
}
