package services

import (
	"sort"
	"time"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/google/uuid"
)

// MemberAttendance is one roster member's standing across a series.
type MemberAttendance struct {
	User     models.User
	Attended int
	Missed   int
	Flagged  bool
}

type SeriesSummary struct {
	// Sessions is the parent and children ordered by start.
	Sessions          []models.Event
	TotalPastSessions int
	NextSession       *models.Event
	Members           []MemberAttendance
}

// AggregateSeries rolls attendance up over a parent and its children.
//
// Missed is total past sessions minus attended, floored at zero. It does not
// check which sessions a member was actually expected at, so a member who
// joined mid-series is scored against every past session.
func AggregateSeries(parent models.Event, children []models.Event, members []models.User, records []models.Attendance, now time.Time) SeriesSummary {
	sessions := seriesSessions(parent, children)
	attended := countAttendance(sessions, records)
	total := pastSessionCount(sessions, now)

	summary := SeriesSummary{
		Sessions:          sessions,
		TotalPastSessions: total,
		NextSession:       nextSession(sessions, now),
		Members:           make([]MemberAttendance, 0, len(members)),
	}
	for _, m := range members {
		a := attended[m.ID]
		missed := missedCount(total, a)
		summary.Members = append(summary.Members, MemberAttendance{
			User:     m,
			Attended: a,
			Missed:   missed,
			Flagged:  isFlagged(parent.AttendanceThreshold, missed),
		})
	}
	return summary
}

// SummarizeMember applies the series formulas to a single account.
func SummarizeMember(parent models.Event, children []models.Event, userID uuid.UUID, records []models.Attendance, now time.Time) (attended, missed int, flagged bool) {
	sessions := seriesSessions(parent, children)
	attended = countAttendance(sessions, records)[userID]
	missed = missedCount(pastSessionCount(sessions, now), attended)
	return attended, missed, isFlagged(parent.AttendanceThreshold, missed)
}

func seriesSessions(parent models.Event, children []models.Event) []models.Event {
	sessions := make([]models.Event, 0, len(children)+1)
	sessions = append(sessions, parent)
	sessions = append(sessions, children...)
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
	return sessions
}

func countAttendance(sessions []models.Event, records []models.Attendance) map[uuid.UUID]int {
	inSeries := make(map[uuid.UUID]struct{}, len(sessions))
	for _, s := range sessions {
		inSeries[s.ID] = struct{}{}
	}
	counts := make(map[uuid.UUID]int)
	for _, r := range records {
		if _, ok := inSeries[r.EventID]; ok {
			counts[r.AttendeeID]++
		}
	}
	return counts
}

func pastSessionCount(sessions []models.Event, now time.Time) int {
	n := 0
	for _, s := range sessions {
		if s.StartTime.Before(now) {
			n++
		}
	}
	return n
}

func missedCount(totalPast, attended int) int {
	if attended >= totalPast {
		return 0
	}
	return totalPast - attended
}

func isFlagged(threshold *int, missed int) bool {
	return threshold != nil && missed > *threshold
}

// nextSession prefers a session in progress at now, then the earliest
// upcoming one. sessions must be sorted by start.
func nextSession(sessions []models.Event, now time.Time) *models.Event {
	for i := range sessions {
		s := &sessions[i]
		if !now.Before(s.StartTime) && !now.After(s.EndTime) {
			return s
		}
	}
	for i := range sessions {
		if !sessions[i].StartTime.Before(now) {
			return &sessions[i]
		}
	}
	return nil
}
