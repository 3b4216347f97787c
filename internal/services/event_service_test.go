package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	_ "time/tzdata"
)

const wallClock = "2006-01-02T15:04:05"

type eventFixture struct {
	db     *gorm.DB
	cfg    *config.Config
	svc    *EventService
	clock  *testutil.Clock
	admin  *models.User
	owner  *models.User
	member *models.User
}

func newEventFixture(t *testing.T, now time.Time) *eventFixture {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		DefaultTimezone:           "America/New_York",
		DefaultCheckinOpenMinutes: 15,
	}
	clock := testutil.NewClock(now)
	svc := NewEventService(db, cfg, NewAuditService(db))
	svc.now = clock.Now

	return &eventFixture{
		db:     db,
		cfg:    cfg,
		svc:    svc,
		clock:  clock,
		admin:  testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin),
		owner:  testutil.CreateUser(t, db, "owner@example.com", models.RoleOrganizer),
		member: testutil.CreateUser(t, db, "member@example.com"),
	}
}

func (f *eventFixture) actor() dto.Actor {
	return dto.Actor{Email: f.owner.Email, IP: "127.0.0.1"}
}

func (f *eventFixture) children(t *testing.T, parentID uuid.UUID) []models.Event {
	t.Helper()
	var out []models.Event
	require.NoError(t, f.db.Where("parent_id = ?", parentID).Order("start_time ASC").Find(&out).Error)
	return out
}

// Mon/Wed weekly from Monday 2024-01-08 10:00 New York through 2024-01-21.
func (f *eventFixture) createSeries(t *testing.T, members ...uuid.UUID) *dto.CreateEventResponse {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), f.owner, f.actor(), &dto.CreateEventRequest{
		Name:                "Choir practice",
		Location:            "Spartanburg SC",
		StartTime:           "2024-01-08T10:00",
		EndTime:             "2024-01-08T11:00",
		Timezone:            "America/New_York",
		Recurring:           true,
		Weekdays:            []string{"Mon", "Wed"},
		EndDate:             "2024-01-21",
		AttendanceThreshold: intPtr(1),
		MemberIDs:           members,
	})
	require.NoError(t, err)
	return resp
}

func TestCheckIn_Window(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := newEventFixture(t, now)
	ctx := context.Background()

	start := now.Add(10 * time.Minute)
	created, err := f.svc.Create(ctx, f.owner, f.actor(), &dto.CreateEventRequest{
		Name:      "Standup",
		StartTime: start.Format(wallClock),
		EndTime:   start.Add(time.Hour).Format(wallClock),
		Timezone:  "UTC",
	})
	require.NoError(t, err)
	assert.Equal(t, 15, created.CheckinOpenMinutes)
	assert.False(t, created.Recurring)
	assert.Zero(t, created.ChildCount)

	// before start minus the open minutes
	f.clock.Current = start.Add(-16 * time.Minute)
	_, err = f.svc.CheckIn(ctx, f.member, created.CheckinToken, dto.CheckinSource{})
	assert.ErrorIs(t, err, ErrCheckinNotOpen)

	f.clock.Current = start
	record, err := f.svc.CheckIn(ctx, f.member, created.CheckinToken, dto.CheckinSource{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.True(t, start.Equal(record.CheckedInAt))
	assert.Equal(t, "10.0.0.1", record.SourceIP)

	_, err = f.svc.CheckIn(ctx, f.member, created.CheckinToken, dto.CheckinSource{})
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	// after end
	f.clock.Current = start.Add(time.Hour + time.Second)
	_, err = f.svc.CheckIn(ctx, f.owner, created.CheckinToken, dto.CheckinSource{})
	assert.ErrorIs(t, err, ErrCheckinNotOpen)

	_, err = f.svc.CheckIn(ctx, f.member, "unknown-token", dto.CheckinSource{})
	assert.ErrorIs(t, err, ErrEventNotFound)

	byToken, err := f.svc.GetByToken(ctx, created.CheckinToken)
	require.NoError(t, err)
	assert.EqualValues(t, 1, byToken.AttendanceCount)
}

func TestCheckIn_ConcurrentAttemptsRecordOnce(t *testing.T) {
	db := testutil.NewFileDB(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := &config.Config{DefaultTimezone: "UTC", DefaultCheckinOpenMinutes: 15}
	svc := NewEventService(db, cfg, NewAuditService(db))
	svc.now = testutil.NewClock(now).Now
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner@example.com", models.RoleOrganizer)
	member := testutil.CreateUser(t, db, "member@example.com")
	created, err := svc.Create(ctx, owner, dto.Actor{Email: owner.Email}, &dto.CreateEventRequest{
		Name:      "Doors",
		StartTime: now.Format(wallClock),
		EndTime:   now.Add(time.Hour).Format(wallClock),
		Timezone:  "UTC",
	})
	require.NoError(t, err)

	const attempts = 2
	start := make(chan struct{})
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.CheckIn(ctx, member, created.CheckinToken, dto.CheckinSource{})
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyCheckedIn):
			dup++
		default:
			t.Fatalf("unexpected check-in error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)

	var count int64
	require.NoError(t, db.Model(&models.Attendance{}).Where("event_id = ?", created.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCheckIn_WindowBoundsInclusive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := newEventFixture(t, now)
	ctx := context.Background()

	zero := 0
	created, err := f.svc.Create(ctx, f.owner, f.actor(), &dto.CreateEventRequest{
		Name:               "Exact",
		StartTime:          now.Add(time.Hour).Format(wallClock),
		EndTime:            now.Add(2 * time.Hour).Format(wallClock),
		Timezone:           "UTC",
		CheckinOpenMinutes: &zero,
	})
	require.NoError(t, err)

	f.clock.Current = now.Add(time.Hour)
	_, err = f.svc.CheckIn(ctx, f.member, created.CheckinToken, dto.CheckinSource{})
	require.NoError(t, err)

	f.clock.Current = now.Add(2 * time.Hour)
	_, err = f.svc.CheckIn(ctx, f.owner, created.CheckinToken, dto.CheckinSource{})
	require.NoError(t, err)
}

func TestCreate_WeeklySeries(t *testing.T) {
	f := newEventFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	resp := f.createSeries(t, f.member.ID)

	assert.True(t, resp.Recurring)
	assert.Equal(t, []string{"Mon", "Wed"}, resp.WeekdayNames())
	assert.Equal(t, 3, resp.ChildCount)
	assert.True(t, time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC).Equal(resp.StartTime))

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	children := f.children(t, resp.ID)
	require.Len(t, children, 3)
	var dates []string
	for _, c := range children {
		local := c.StartTime.In(ny)
		dates = append(dates, local.Format("2006-01-02"))
		assert.Equal(t, 10, local.Hour())
		assert.Equal(t, time.Hour, c.EndTime.Sub(c.StartTime))
		assert.False(t, c.Recurring)
		assert.NotEqual(t, resp.CheckinToken, c.CheckinToken)
		assert.Equal(t, resp.OrganizerID, c.OrganizerID)
	}
	assert.Equal(t, []string{"2024-01-10", "2024-01-15", "2024-01-17"}, dates)

	var memberships int64
	require.NoError(t, f.db.Model(&models.EventMember{}).Where("user_id = ?", f.member.ID).Count(&memberships).Error)
	assert.EqualValues(t, 4, memberships)

	var audits []models.AuditLog
	require.NoError(t, f.db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, models.AuditEventCreate, audits[0].Action)
	assert.Equal(t, resp.ID.String(), audits[0].ResourceID)
}

func TestCreate_RecurringWithoutRuleIsSingle(t *testing.T) {
	f := newEventFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	resp, err := f.svc.Create(context.Background(), f.owner, f.actor(), &dto.CreateEventRequest{
		Name:      "Lonely",
		StartTime: "2024-01-08T10:00",
		EndTime:   "2024-01-08T11:00",
		Recurring: true,
		Weekdays:  []string{"Mon"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Recurring)
	assert.Zero(t, resp.ChildCount)
	assert.Equal(t, "America/New_York", resp.Timezone)
}

func TestCreate_SanitizesNotes(t *testing.T) {
	f := newEventFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	resp, err := f.svc.Create(context.Background(), f.owner, f.actor(), &dto.CreateEventRequest{
		Name:      "Notes",
		StartTime: "2024-01-08T10:00",
		EndTime:   "2024-01-08T11:00",
		Notes:     "<b>bring</b> water",
	})
	require.NoError(t, err)
	assert.Equal(t, "bring water", resp.Notes)
}

func TestCreate_Validation(t *testing.T) {
	f := newEventFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	valid := func() *dto.CreateEventRequest {
		return &dto.CreateEventRequest{
			Name:      "Valid",
			StartTime: "2024-01-08T10:00",
			EndTime:   "2024-01-08T11:00",
			Timezone:  "America/New_York",
		}
	}
	negative := -1

	tests := []struct {
		name   string
		mutate func(r *dto.CreateEventRequest)
		field  string
	}{
		{"missing name", func(r *dto.CreateEventRequest) { r.Name = "  " }, "name"},
		{"unknown timezone", func(r *dto.CreateEventRequest) { r.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad start", func(r *dto.CreateEventRequest) { r.StartTime = "tomorrow" }, "start_time"},
		{"bad end", func(r *dto.CreateEventRequest) { r.EndTime = "" }, "end_time"},
		{"end before start", func(r *dto.CreateEventRequest) { r.EndTime = "2024-01-08T09:00" }, "start_time"},
		{"end equals start", func(r *dto.CreateEventRequest) { r.EndTime = r.StartTime }, "start_time"},
		{"negative open minutes", func(r *dto.CreateEventRequest) { r.CheckinOpenMinutes = &negative }, "checkin_open_minutes"},
		{"negative threshold", func(r *dto.CreateEventRequest) { r.AttendanceThreshold = &negative }, "attendance_threshold"},
		{"unknown weekday", func(r *dto.CreateEventRequest) {
			r.Recurring, r.Weekdays, r.EndDate = true, []string{"Funday"}, "2024-02-01"
		}, "weekdays"},
		{"bad end date", func(r *dto.CreateEventRequest) {
			r.Recurring, r.Weekdays, r.EndDate = true, []string{"Mon"}, "02/01/2024"
		}, "end_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			_, err := f.svc.Create(context.Background(), f.owner, f.actor(), req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Event{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreate_UnknownMemberRollsBack(t *testing.T) {
	f := newEventFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err := f.svc.Create(context.Background(), f.owner, f.actor(), &dto.CreateEventRequest{
		Name:      "Roster",
		StartTime: "2024-01-08T10:00",
		EndTime:   "2024-01-08T11:00",
		MemberIDs: []uuid.UUID{f.member.ID, uuid.New()},
	})
	assert.ErrorIs(t, err, ErrUserNotFound)

	var count int64
	require.NoError(t, f.db.Model(&models.Event{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestParseWallClock(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-07-04T09:30", time.Date(2024, 7, 4, 9, 30, 0, 0, ny)},
		{"2024-07-04T09:30:15", time.Date(2024, 7, 4, 9, 30, 15, 0, ny)},
		{"2024-07-04 09:30", time.Date(2024, 7, 4, 9, 30, 0, 0, ny)},
		{"2024-07-04T09:30:00Z", time.Date(2024, 7, 4, 9, 30, 0, 0, ny)},
		{"2024-07-04T09:30:00.750+02:00", time.Date(2024, 7, 4, 9, 30, 0, 0, ny)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWallClock(tt.in, ny)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestSeriesViews(t *testing.T) {
	f := newEventFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	series := f.createSeries(t, f.member.ID)
	children := f.children(t, series.ID)
	require.Len(t, children, 3)

	// Wednesday Jan 10, 10:30 New York
	f.clock.Current = time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	_, err := f.svc.CheckIn(ctx, f.member, children[0].CheckinToken, dto.CheckinSource{UserAgent: "Mozilla/5.0"})
	require.NoError(t, err)

	// Tuesday Jan 16: three sessions have started, Jan 17 is next
	f.clock.Current = time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC)

	t.Run("family", func(t *testing.T) {
		fam, err := f.svc.Family(ctx, f.owner, children[1].ID)
		require.NoError(t, err)
		assert.Equal(t, series.ID, fam.Parent.ID)
		assert.Equal(t, 3, fam.TotalPastSessions)
		require.NotNil(t, fam.NextSession)
		assert.Equal(t, children[2].ID, fam.NextSession.ID)
		assert.Len(t, fam.PastChildren, 2)
		assert.Len(t, fam.UpcomingChildren, 1)
		require.Len(t, fam.Members, 1)
		assert.Equal(t, dto.MemberSummary{
			UserID:    f.member.ID,
			Name:      f.member.Name,
			Email:     f.member.Email,
			Attended:  1,
			Missed:    2,
			IsFlagged: true,
		}, fam.Members[0])

		_, err = f.svc.Family(ctx, f.member, series.ID)
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = f.svc.Family(ctx, f.admin, series.ID)
		assert.NoError(t, err)
	})

	t.Run("my events", func(t *testing.T) {
		mine, err := f.svc.MyEvents(ctx, f.member)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, series.ID, mine[0].Parent.ID)
		assert.Equal(t, 4, mine[0].TotalSessions)
		assert.Equal(t, 3, mine[0].TotalPastSessions)
		assert.Equal(t, 1, mine[0].Attended)
		assert.Equal(t, 2, mine[0].Missed)
		assert.True(t, mine[0].IsFlagged)

		one, err := f.svc.MyEvent(ctx, f.member, children[2].ID)
		require.NoError(t, err)
		assert.Equal(t, mine[0].Attended, one.Attended)

		_, err = f.svc.MyEvent(ctx, f.owner, series.ID)
		assert.ErrorIs(t, err, ErrForbidden)

		none, err := f.svc.MyEvents(ctx, f.owner)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("my checkins", func(t *testing.T) {
		checkins, err := f.svc.MyCheckins(ctx, f.member)
		require.NoError(t, err)
		require.Len(t, checkins, 1)
		assert.Equal(t, children[0].ID, checkins[0].EventID)
		assert.Equal(t, "Choir practice", checkins[0].EventName)
	})

	t.Run("attendees", func(t *testing.T) {
		list, err := f.svc.Attendees(ctx, f.owner, children[0].ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, f.member.Email, list[0].Email)

		_, err = f.svc.Attendees(ctx, f.member, children[0].ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("dashboard", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.owner, f.actor(), &dto.CreateEventRequest{
			Name:      "Kickoff",
			StartTime: "2024-01-02T18:00",
			EndTime:   "2024-01-02T19:00",
		})
		require.NoError(t, err)

		dash, err := f.svc.Dashboard(ctx, f.owner)
		require.NoError(t, err)
		require.Len(t, dash.Upcoming, 1)
		require.Len(t, dash.Past, 1)

		group := dash.Upcoming[0]
		assert.Equal(t, dto.DashboardRecurringGroup, group.Type)
		require.NotNil(t, group.Group)
		assert.Equal(t, 3, group.Group.PastSessions)
		assert.Equal(t, 1, group.Group.UpcomingSessions)
		assert.Len(t, group.Group.Children, 3)

		assert.Equal(t, dto.DashboardSolo, dash.Past[0].Type)
		assert.Equal(t, "Kickoff", dash.Past[0].Event.Name)
	})

	t.Run("list mine", func(t *testing.T) {
		upcoming, err := f.svc.ListMine(ctx, f.owner, true)
		require.NoError(t, err)
		require.Len(t, upcoming, 1)
		assert.Equal(t, children[2].ID, upcoming[0].ID)
	})
}

func TestDelete_SeriesCascade(t *testing.T) {
	f := newEventFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	series := f.createSeries(t, f.member.ID)
	children := f.children(t, series.ID)

	f.clock.Current = time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	_, err := f.svc.CheckIn(ctx, f.member, children[0].CheckinToken, dto.CheckinSource{})
	require.NoError(t, err)

	stranger := testutil.CreateUser(t, f.db, "other@example.com", models.RoleOrganizer)
	err = f.svc.Delete(ctx, stranger, dto.Actor{Email: stranger.Email}, series.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	f.cfg.EnforceComment = true
	err = f.svc.Delete(ctx, f.owner, f.actor(), series.ID)
	assert.ErrorIs(t, err, ErrCommentRequired)

	actor := f.actor()
	actor.Comment = "season cancelled"
	require.NoError(t, f.svc.Delete(ctx, f.owner, actor, series.ID))

	for _, model := range []interface{}{&models.Event{}, &models.EventMember{}, &models.Attendance{}} {
		var n int64
		require.NoError(t, f.db.Model(model).Count(&n).Error)
		assert.Zero(t, n)
	}

	var entry models.AuditLog
	require.NoError(t, f.db.Where("action = ?", models.AuditEventDelete).First(&entry).Error)
	require.NotNil(t, entry.Comment)
	assert.Equal(t, "season cancelled", *entry.Comment)
	assert.Contains(t, entry.Details, "3 sessions")

	_, err = f.svc.GetByToken(ctx, series.CheckinToken)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestDelete_SingleChildKeepsSeries(t *testing.T) {
	f := newEventFixture(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	series := f.createSeries(t)
	children := f.children(t, series.ID)

	require.NoError(t, f.svc.Delete(ctx, f.admin, dto.Actor{Email: f.admin.Email}, children[1].ID))
	assert.Len(t, f.children(t, series.ID), 2)
}

func TestExportAttendance(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := newEventFixture(t, now)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.owner, f.actor(), &dto.CreateEventRequest{
		Name:      `Board "Q2" review`,
		Location:  "Spartanburg SC",
		StartTime: now.Format(wallClock),
		EndTime:   now.Add(time.Hour).Format(wallClock),
		Timezone:  "UTC",
	})
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, f.member, created.CheckinToken, dto.CheckinSource{})
	require.NoError(t, err)

	body, filename, err := f.svc.ExportAttendance(ctx, f.owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "attendance-"+created.ID.String()+".csv", filename)

	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Event Name,Event Location,Attendee ID,Attendee Name,Attendee Email,Date/Time Checked In", lines[0])
	assert.Equal(t,
		`"Board ""Q2"" review","Spartanburg, SC",`+f.member.ID.String()+`,member@example.com,member@example.com,2024-05-01T12:00:00Z`,
		lines[1])
	assert.Equal(t, "", lines[2])
	assert.Equal(t, "Organizer Name:,owner@example.com", lines[3])
	assert.Equal(t, "Total Attendance:,1", lines[4])

	_, _, err = f.svc.ExportAttendance(ctx, f.member, created.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestExportAttendance_OrganizerLookup(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	newExport := func(t *testing.T) (*eventFixture, uuid.UUID) {
		f := newEventFixture(t, now)
		created, err := f.svc.Create(ctx, f.owner, f.actor(), &dto.CreateEventRequest{
			Name:      "Orphaned",
			StartTime: now.Format(wallClock),
			EndTime:   now.Add(time.Hour).Format(wallClock),
			Timezone:  "UTC",
		})
		require.NoError(t, err)
		return f, created.ID
	}

	t.Run("missing organizer", func(t *testing.T) {
		f, id := newExport(t)
		require.NoError(t, f.db.Exec("PRAGMA foreign_keys = OFF").Error)
		require.NoError(t, f.db.Exec("DELETE FROM users WHERE id = ?", f.owner.ID).Error)

		body, _, err := f.svc.ExportAttendance(ctx, f.admin, id)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Organizer Name:,Unknown\n")
	})

	t.Run("lookup failure", func(t *testing.T) {
		f, id := newExport(t)
		require.NoError(t, f.db.Callback().Query().Before("gorm:query").Register("fail_organizer", func(tx *gorm.DB) {
			if _, single := tx.Statement.Dest.(*models.User); single {
				_ = tx.AddError(errors.New("connection reset"))
			}
		}))

		_, _, err := f.svc.ExportAttendance(ctx, f.admin, id)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestNormalizeLocation(t *testing.T) {
	tests := map[string]string{
		"":                    "",
		"Spartanburg SC":      "Spartanburg, SC",
		"Spartanburg SC, USA": "Spartanburg SC, USA",
		"New York NY":         "New York, NY",
		"Greenville, SC":      "Greenville, SC",
		"Main Hall":           "Main Hall",
		"Room 12":             "Room 12",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeLocation(in), in)
	}
}

func TestClientLabel(t *testing.T) {
	assert.Empty(t, clientLabel(""))
	label := clientLabel("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.Contains(t, label, "Chrome")
	assert.Contains(t, label, "Windows")
}
