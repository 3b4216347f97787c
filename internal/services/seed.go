package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"gorm.io/gorm"
)

type demoAccount struct {
	email string
	name  string
	role  models.Role
}

var demoAccounts = []demoAccount{
	{"organizer@example.com", "Olivia Organizer", models.RoleOrganizer},
	{"clublead@example.com", "Club Lead", models.RoleOrganizer},
	{"alice@example.com", "Alice Attendee", models.RoleAttendee},
	{"bob@example.com", "Bob Attendee", models.RoleAttendee},
	{"carol@example.com", "Carol Attendee", models.RoleAttendee},
}

// SeedDemo inserts demo accounts into an empty users table. Each password is
// the email local part. Returns the number of accounts created.
func SeedDemo(ctx context.Context, db *gorm.DB) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	users := make([]models.User, 0, len(demoAccounts))
	for _, a := range demoAccounts {
		hash, err := HashPassword(strings.SplitN(a.email, "@", 2)[0])
		if err != nil {
			return 0, err
		}
		users = append(users, models.User{
			Email:        a.email,
			Name:         a.name,
			PasswordHash: hash,
			Roles:        []models.UserRole{{Role: a.role}},
		})
	}
	if err := db.WithContext(ctx).Create(&users).Error; err != nil {
		return 0, fmt.Errorf("failed to seed users: %w", err)
	}
	slog.Info("demo accounts seeded", "count", len(users))
	return len(users), nil
}
