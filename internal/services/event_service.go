package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/recurrence"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mileusna/useragent"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var notesPolicy = bluemonday.StrictPolicy()

// accepted wall-clock layouts for event times, tried in order
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type EventService struct {
	db    *gorm.DB
	cfg   *config.Config
	audit *AuditService
	now   func() time.Time
}

func NewEventService(db *gorm.DB, cfg *config.Config, audit *AuditService) *EventService {
	return &EventService{db: db, cfg: cfg, audit: audit, now: time.Now}
}

// eventPlan is a validated create request.
type eventPlan struct {
	loc       *time.Location
	start     time.Time
	end       time.Time
	openMins  int
	weekdays  recurrence.WeekdaySet
	endDate   *recurrence.Date
	memberIDs []uuid.UUID
}

func (s *EventService) plan(req *dto.CreateEventRequest) (*eventPlan, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, newValidationError("name", "Name is required")
	}

	tz := req.Timezone
	if tz == "" {
		tz = s.cfg.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, newValidationError("timezone", fmt.Sprintf("Unknown timezone %q", tz))
	}

	start, err := parseWallClock(req.StartTime, loc)
	if err != nil {
		return nil, newValidationError("start_time", "Invalid start time")
	}
	end, err := parseWallClock(req.EndTime, loc)
	if err != nil {
		return nil, newValidationError("end_time", "Invalid end time")
	}
	if !start.Before(end) {
		return nil, newValidationError("start_time", "Start time must be before end time")
	}

	p := &eventPlan{loc: loc, start: start, end: end, openMins: s.cfg.DefaultCheckinOpenMinutes}
	if req.CheckinOpenMinutes != nil {
		if *req.CheckinOpenMinutes < 0 {
			return nil, newValidationError("checkin_open_minutes", "Check-in open minutes must not be negative")
		}
		p.openMins = *req.CheckinOpenMinutes
	}
	if req.AttendanceThreshold != nil && *req.AttendanceThreshold < 0 {
		return nil, newValidationError("attendance_threshold", "Attendance threshold must not be negative")
	}

	if req.Recurring && len(req.Weekdays) > 0 && req.EndDate != "" {
		p.weekdays, err = recurrence.ParseWeekdays(req.Weekdays)
		if err != nil {
			return nil, newValidationError("weekdays", err.Error())
		}
		d, err := recurrence.ParseDate(req.EndDate)
		if err != nil {
			return nil, newValidationError("end_date", "Invalid end date, expected YYYY-MM-DD")
		}
		p.endDate = &d
	}

	seen := make(map[uuid.UUID]struct{}, len(req.MemberIDs))
	for _, id := range req.MemberIDs {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			p.memberIDs = append(p.memberIDs, id)
		}
	}
	return p, nil
}

// parseWallClock reads a local date-time in loc. Offset-bearing input keeps
// its wall clock and has the offset replaced by loc.
func parseWallClock(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}

func newCheckinToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate check-in token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create stores the event and, for a weekly rule, every child session, all in
// one transaction together with roster rows and the audit entry.
func (s *EventService) Create(ctx context.Context, organizer *models.User, actor dto.Actor, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error) {
	p, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	parent := models.Event{
		Name:                strings.TrimSpace(req.Name),
		Location:            strings.TrimSpace(req.Location),
		StartTime:           p.start.UTC(),
		EndTime:             p.end.UTC(),
		Timezone:            p.loc.String(),
		Notes:               notesPolicy.Sanitize(req.Notes),
		CheckinOpenMinutes:  p.openMins,
		OrganizerID:         organizer.ID,
		AttendanceThreshold: req.AttendanceThreshold,
	}
	var sessions []recurrence.Session
	if p.endDate != nil {
		names, _ := json.Marshal(p.weekdays.Names())
		ed := datatypes.Date(p.endDate.Time())
		parent.Recurring = true
		parent.Weekdays = datatypes.JSON(names)
		parent.EndDate = &ed
		sessions = recurrence.Children(p.start, p.end, p.loc, *p.endDate, p.weekdays)
	}

	children := make([]models.Event, 0, len(sessions))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(p.memberIDs) > 0 {
			var n int64
			if err := tx.Model(&models.User{}).Where("id IN ?", p.memberIDs).Count(&n).Error; err != nil {
				return err
			}
			if int(n) != len(p.memberIDs) {
				return fmt.Errorf("%w: unknown member id", ErrUserNotFound)
			}
		}

		token, err := newCheckinToken()
		if err != nil {
			return err
		}
		parent.CheckinToken = token
		if err := tx.Create(&parent).Error; err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}

		for _, sess := range sessions {
			child := models.Event{
				Name:                parent.Name,
				Location:            parent.Location,
				StartTime:           sess.Start,
				EndTime:             sess.End,
				Timezone:            parent.Timezone,
				Notes:               parent.Notes,
				CheckinOpenMinutes:  parent.CheckinOpenMinutes,
				OrganizerID:         parent.OrganizerID,
				ParentID:            &parent.ID,
				AttendanceThreshold: parent.AttendanceThreshold,
			}
			if child.CheckinToken, err = newCheckinToken(); err != nil {
				return err
			}
			if err := tx.Create(&child).Error; err != nil {
				return fmt.Errorf("failed to create session %s: %w", sess.Date, err)
			}
			children = append(children, child)
		}

		if len(p.memberIDs) > 0 {
			rows := make([]models.EventMember, 0, len(p.memberIDs)*(len(children)+1))
			for _, uid := range p.memberIDs {
				rows = append(rows, models.EventMember{EventID: parent.ID, UserID: uid})
				for _, c := range children {
					rows = append(rows, models.EventMember{EventID: c.ID, UserID: uid})
				}
			}
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return fmt.Errorf("failed to add members: %w", err)
			}
		}

		details := fmt.Sprintf("Created event '%s'", parent.Name)
		if len(children) > 0 {
			details = fmt.Sprintf("Created recurring event '%s' with %d additional sessions", parent.Name, len(children))
		}
		return s.audit.Record(tx, actor, models.AuditEventCreate, "event", parent.ID.String(), details)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("event created", "event_id", parent.ID.String(), "children", len(children), "user_id", organizer.ID.String())
	return &dto.CreateEventResponse{Event: parent, ChildCount: len(children)}, nil
}

// CheckIn records attendance for the session identified by token.
func (s *EventService) CheckIn(ctx context.Context, user *models.User, token string, src dto.CheckinSource) (*models.Attendance, error) {
	event, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !event.CheckinOpen(now) {
		return nil, ErrCheckinNotOpen
	}

	record := models.Attendance{
		EventID:     event.ID,
		AttendeeID:  user.ID,
		CheckedInAt: now,
		SourceIP:    src.IP,
		UserAgent:   truncate(src.UserAgent, 512),
		Client:      clientLabel(src.UserAgent),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, fmt.Errorf("failed to record attendance: %w", err)
	}
	return &record, nil
}

// clientLabel summarizes a user agent as "Browser on OS", tagging bots.
func clientLabel(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.Parse(raw)
	label := ua.Name
	if ua.OS != "" {
		if label == "" {
			label = ua.OS
		} else {
			label += " on " + ua.OS
		}
	}
	if ua.Bot {
		label = strings.TrimSpace("bot " + label)
	}
	return truncate(label, 100)
}

func (s *EventService) byToken(ctx context.Context, token string) (*models.Event, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEventNotFound
	}
	var event models.Event
	err := s.db.WithContext(ctx).Where("checkin_token = ?", token).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return &event, nil
}

func (s *EventService) GetByToken(ctx context.Context, token string) (*dto.EventByTokenResponse, error) {
	event, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Attendance{}).Where("event_id = ?", event.ID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count attendance: %w", err)
	}
	return &dto.EventByTokenResponse{Event: *event, AttendanceCount: count}, nil
}

func (s *EventService) byID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return &event, nil
}

// Managed loads an event the user may administer.
func (s *EventService) Managed(ctx context.Context, user *models.User, id uuid.UUID) (*models.Event, error) {
	event, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManageEvent(user, event) {
		return nil, ErrForbidden
	}
	return event, nil
}

func (s *EventService) ListAll(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := s.db.WithContext(ctx).Order("start_time ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// ListMine returns the organizer's sessions that have not ended (upcoming)
// or have ended (past).
func (s *EventService) ListMine(ctx context.Context, user *models.User, upcoming bool) ([]models.Event, error) {
	now := s.now().UTC()
	q := s.db.WithContext(ctx).Where("organizer_id = ?", user.ID)
	if upcoming {
		q = q.Where("end_time >= ?", now).Order("start_time ASC")
	} else {
		q = q.Where("end_time < ?", now).Order("start_time DESC")
	}
	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (s *EventService) Attendees(ctx context.Context, user *models.User, id uuid.UUID) ([]dto.AttendeeResponse, error) {
	event, err := s.Managed(ctx, user, id)
	if err != nil {
		return nil, err
	}
	records, err := s.attendanceFor(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AttendeeResponse, 0, len(records))
	for _, r := range records {
		out = append(out, dto.AttendeeResponse{
			AttendanceID: r.ID,
			UserID:       r.AttendeeID,
			Name:         r.Attendee.Name,
			Email:        r.Attendee.Email,
			CheckedInAt:  r.CheckedInAt,
			Client:       r.Client,
		})
	}
	return out, nil
}

func (s *EventService) attendanceFor(ctx context.Context, eventID uuid.UUID) ([]models.Attendance, error) {
	var records []models.Attendance
	err := s.db.WithContext(ctx).Preload("Attendee").
		Where("event_id = ?", eventID).
		Order("checked_in_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	return records, nil
}

// series loads the parent and children ordered by start for any session.
func (s *EventService) series(ctx context.Context, event *models.Event) (models.Event, []models.Event, error) {
	parent := *event
	if event.ParentID != nil {
		p, err := s.byID(ctx, *event.ParentID)
		if err != nil {
			return models.Event{}, nil, err
		}
		parent = *p
	}
	var children []models.Event
	if err := s.db.WithContext(ctx).Where("parent_id = ?", parent.ID).Order("start_time ASC").Find(&children).Error; err != nil {
		return models.Event{}, nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	return parent, children, nil
}

func sessionIDs(parent models.Event, children []models.Event) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(children)+1)
	ids = append(ids, parent.ID)
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	return ids
}

// Family is the organizer view of a whole series with per-member standing.
func (s *EventService) Family(ctx context.Context, user *models.User, id uuid.UUID) (*dto.EventFamilyResponse, error) {
	event, err := s.Managed(ctx, user, id)
	if err != nil {
		return nil, err
	}
	parent, children, err := s.series(ctx, event)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var roster []models.EventMember
	if err := db.Preload("User").Where("event_id = ?", parent.ID).Find(&roster).Error; err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	members := make([]models.User, 0, len(roster))
	for _, m := range roster {
		members = append(members, m.User)
	}

	var records []models.Attendance
	if err := db.Where("event_id IN ?", sessionIDs(parent, children)).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}

	now := s.now().UTC()
	summary := AggregateSeries(parent, children, members, records, now)

	resp := &dto.EventFamilyResponse{
		Parent:            parent,
		UpcomingChildren:  []models.Event{},
		PastChildren:      []models.Event{},
		TotalPastSessions: summary.TotalPastSessions,
		NextSession:       summary.NextSession,
		Members:           make([]dto.MemberSummary, 0, len(summary.Members)),
	}
	for _, c := range children {
		if c.StartTime.Before(now) {
			resp.PastChildren = append(resp.PastChildren, c)
		} else {
			resp.UpcomingChildren = append(resp.UpcomingChildren, c)
		}
	}
	for _, m := range summary.Members {
		resp.Members = append(resp.Members, dto.MemberSummary{
			UserID:    m.User.ID,
			Name:      m.User.Name,
			Email:     m.User.Email,
			Attended:  m.Attended,
			Missed:    m.Missed,
			IsFlagged: m.Flagged,
		})
	}
	return resp, nil
}

// Dashboard groups the organizer's events into solo events and recurring
// groups, split by whether anything is left to attend.
func (s *EventService) Dashboard(ctx context.Context, user *models.User) (*dto.DashboardResponse, error) {
	var events []models.Event
	if err := s.db.WithContext(ctx).Where("organizer_id = ?", user.ID).Order("start_time ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	childrenOf := make(map[uuid.UUID][]models.Event)
	for _, e := range events {
		if e.ParentID != nil {
			childrenOf[*e.ParentID] = append(childrenOf[*e.ParentID], e)
		}
	}

	now := s.now().UTC()
	resp := &dto.DashboardResponse{Upcoming: []dto.DashboardItem{}, Past: []dto.DashboardItem{}}
	for i := range events {
		e := events[i]
		if e.ParentID != nil {
			continue
		}
		children, ok := childrenOf[e.ID]
		if !ok {
			item := dto.DashboardItem{Type: dto.DashboardSolo, Event: &e}
			if e.EndTime.Before(now) {
				resp.Past = append(resp.Past, item)
			} else {
				resp.Upcoming = append(resp.Upcoming, item)
			}
			continue
		}

		sessions := seriesSessions(e, children)
		past := pastSessionCount(sessions, now)
		group := &dto.RecurringGroup{
			Parent:            e,
			Children:          children,
			NextSession:       nextSession(sessions, now),
			PastSessions:      past,
			UpcomingSessions:  len(sessions) - past,
			TotalPastSessions: past,
		}
		item := dto.DashboardItem{Type: dto.DashboardRecurringGroup, Group: group}
		if group.NextSession == nil {
			resp.Past = append(resp.Past, item)
		} else {
			resp.Upcoming = append(resp.Upcoming, item)
		}
	}
	return resp, nil
}

// MyEvents lists every series the user is a member of, with their own counts.
func (s *EventService) MyEvents(ctx context.Context, user *models.User) ([]dto.MyEventSummary, error) {
	var memberships []models.EventMember
	if err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []dto.MyEventSummary{}, nil
	}

	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.EventID)
	}
	var events []models.Event
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	seen := make(map[uuid.UUID]struct{})
	out := make([]dto.MyEventSummary, 0)
	for i := range events {
		seriesID := events[i].SeriesID()
		if _, ok := seen[seriesID]; ok {
			continue
		}
		seen[seriesID] = struct{}{}

		summary, err := s.memberSummary(ctx, user, &events[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	sortSummaries(out)
	return out, nil
}

// MyEvent is one series for a member of it.
func (s *EventService) MyEvent(ctx context.Context, user *models.User, id uuid.UUID) (*dto.MyEventSummary, error) {
	event, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	var n int64
	err = s.db.WithContext(ctx).Model(&models.EventMember{}).
		Where("event_id = ? AND user_id = ?", event.SeriesID(), user.ID).
		Count(&n).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if n == 0 {
		return nil, ErrForbidden
	}
	return s.memberSummary(ctx, user, event)
}

func (s *EventService) memberSummary(ctx context.Context, user *models.User, event *models.Event) (*dto.MyEventSummary, error) {
	parent, children, err := s.series(ctx, event)
	if err != nil {
		return nil, err
	}
	var records []models.Attendance
	err = s.db.WithContext(ctx).
		Where("attendee_id = ? AND event_id IN ?", user.ID, sessionIDs(parent, children)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}

	now := s.now().UTC()
	sessions := seriesSessions(parent, children)
	attended, missed, flagged := SummarizeMember(parent, children, user.ID, records, now)
	return &dto.MyEventSummary{
		Parent:              parent,
		NextSession:         nextSession(sessions, now),
		TotalSessions:       len(sessions),
		TotalPastSessions:   pastSessionCount(sessions, now),
		Attended:            attended,
		Missed:              missed,
		IsFlagged:           flagged,
		AttendanceThreshold: parent.AttendanceThreshold,
	}, nil
}

// sortSummaries puts series with a next session first, soonest first.
func sortSummaries(items []dto.MyEventSummary) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if (a.NextSession != nil) != (b.NextSession != nil) {
			return a.NextSession != nil
		}
		if a.NextSession != nil {
			return a.NextSession.StartTime.Before(b.NextSession.StartTime)
		}
		return a.Parent.StartTime.After(b.Parent.StartTime)
	})
}

func (s *EventService) MyCheckins(ctx context.Context, user *models.User) ([]dto.MyCheckinResponse, error) {
	var records []models.Attendance
	err := s.db.WithContext(ctx).Preload("Event").
		Where("attendee_id = ?", user.ID).
		Order("checked_in_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load check-ins: %w", err)
	}
	out := make([]dto.MyCheckinResponse, 0, len(records))
	for _, r := range records {
		out = append(out, dto.MyCheckinResponse{
			EventID:     r.EventID,
			EventName:   r.Event.Name,
			Location:    r.Event.Location,
			StartTime:   r.Event.StartTime,
			EndTime:     r.Event.EndTime,
			CheckedInAt: r.CheckedInAt,
		})
	}
	return out, nil
}

// Delete removes an event; deleting a series parent removes its children too.
func (s *EventService) Delete(ctx context.Context, user *models.User, actor dto.Actor, id uuid.UUID) error {
	if s.cfg.EnforceComment && strings.TrimSpace(actor.Comment) == "" {
		return ErrCommentRequired
	}
	event, err := s.Managed(ctx, user, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := []uuid.UUID{event.ID}
		if event.ParentID == nil {
			var childIDs []uuid.UUID
			if err := tx.Model(&models.Event{}).Where("parent_id = ?", event.ID).Pluck("id", &childIDs).Error; err != nil {
				return err
			}
			ids = append(ids, childIDs...)
		}
		if err := deleteSessions(tx, ids); err != nil {
			return err
		}
		details := fmt.Sprintf("Deleted event '%s'", event.Name)
		if len(ids) > 1 {
			details = fmt.Sprintf("Deleted event '%s' and %d sessions", event.Name, len(ids)-1)
		}
		return s.audit.Record(tx, actor, models.AuditEventDelete, "event", event.ID.String(), details)
	})
}

// deleteSessions removes events and their dependent rows, children before parents.
func deleteSessions(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("event_id IN ?", ids).Delete(&models.Attendance{}).Error; err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}
	if err := tx.Where("event_id IN ?", ids).Delete(&models.EventMember{}).Error; err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}
	if err := tx.Where("id IN ? AND parent_id IS NOT NULL", ids).Delete(&models.Event{}).Error; err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.Event{}).Error; err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}
