package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var csvHeader = []string{
	"Event Name", "Event Location", "Attendee ID", "Attendee Name", "Attendee Email", "Date/Time Checked In",
}

// "Spartanburg SC" -> "Spartanburg, SC"; anything with a comma is left alone
var cityStatePattern = regexp.MustCompile(`^(.+?)\s([A-Z]{2})(?:,\s*USA)?$`)

func normalizeLocation(loc string) string {
	if loc == "" || strings.Contains(loc, ",") {
		return loc
	}
	m := cityStatePattern.FindStringSubmatch(loc)
	if m == nil {
		return loc
	}
	return strings.TrimRight(m[1], " ") + ", " + m[2]
}

// ExportAttendance renders the attendance sheet for one session.
func (s *EventService) ExportAttendance(ctx context.Context, user *models.User, id uuid.UUID) ([]byte, string, error) {
	event, err := s.Managed(ctx, user, id)
	if err != nil {
		return nil, "", err
	}
	records, err := s.attendanceFor(ctx, event.ID)
	if err != nil {
		return nil, "", err
	}

	organizerName := "Unknown"
	var organizer models.User
	err = s.db.WithContext(ctx).First(&organizer, "id = ?", event.OrganizerID).Error
	switch {
	case err == nil:
		organizerName = organizer.Name
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, "", fmt.Errorf("failed to load organizer: %w", err)
	}

	body, err := writeAttendanceCSV(event, records, organizerName)
	if err != nil {
		return nil, "", err
	}
	return body, fmt.Sprintf("attendance-%s.csv", event.ID), nil
}

func writeAttendanceCSV(event *models.Event, records []models.Attendance, organizerName string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	location := normalizeLocation(event.Location)
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, csvHeader)
	for _, r := range records {
		rows = append(rows, []string{
			event.Name,
			location,
			r.AttendeeID.String(),
			r.Attendee.Name,
			r.Attendee.Email,
			r.CheckedInAt.UTC().Format(time.RFC3339),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}

	buf.WriteString("\n")
	summary := [][]string{
		{"Organizer Name:", organizerName},
		{"Total Attendance:", strconv.Itoa(len(records))},
	}
	if err := w.WriteAll(summary); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}
