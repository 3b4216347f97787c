package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserService implements admin account management. Every mutation writes an
// audit entry in the same transaction.
type UserService struct {
	db    *gorm.DB
	cfg   *config.Config
	audit *AuditService
}

func NewUserService(db *gorm.DB, cfg *config.Config, audit *AuditService) *UserService {
	return &UserService{db: db, cfg: cfg, audit: audit}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Preload("Roles").Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return loadUser(s.db.WithContext(ctx), id)
}

func loadUser(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := db.Preload("Roles").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *UserService) requireComment(actor dto.Actor) error {
	if s.cfg.EnforceComment && strings.TrimSpace(actor.Comment) == "" {
		return ErrCommentRequired
	}
	return nil
}

func (s *UserService) Create(ctx context.Context, actor dto.Actor, req *dto.CreateUserRequest) (*models.User, error) {
	email := strings.TrimSpace(req.Email)
	if !isEmailAddress(email) {
		return nil, newValidationError("email", "A valid email is required")
	}

	roles := models.NewRoleSet()
	for _, r := range req.Roles {
		role, ok := models.ParseRole(r)
		if !ok {
			return nil, newValidationError("roles", fmt.Sprintf("Unknown role %q", r))
		}
		roles = roles.With(role)
	}
	if len(roles) == 0 {
		roles = models.NewRoleSet(models.RoleAttendee)
	}

	user := &models.User{
		Email: email,
		Name:  strings.TrimSpace(req.Name),
	}
	if user.Name == "" {
		user.Name = deriveDisplayName(&Identity{Email: email})
	}
	if req.Password != "" {
		if len(req.Password) < 8 {
			return nil, newValidationError("password", "Password must be at least 8 characters")
		}
		hash, err := HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	for _, r := range roles {
		user.Roles = append(user.Roles, models.UserRole{Role: r})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		details := fmt.Sprintf("Created user %s with roles %s", user.Email, strings.Join(roles.Strings(), ","))
		return s.audit.Record(tx, actor, models.AuditUserCreate, "user", user.ID.String(), details)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Promote grants the organizer role.
func (s *UserService) Promote(ctx context.Context, actor dto.Actor, id uuid.UUID) (*models.User, error) {
	if err := s.requireComment(actor); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = loadUser(tx, id); err != nil {
			return err
		}
		if user.RoleSet().Has(models.RoleOrganizer) {
			return nil
		}
		role := models.UserRole{UserID: user.ID, Role: models.RoleOrganizer}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error; err != nil {
			return fmt.Errorf("failed to grant role: %w", err)
		}
		user.Roles = append(user.Roles, role)
		return s.audit.Record(tx, actor, models.AuditUserPromote, "user", user.ID.String(),
			fmt.Sprintf("Promoted %s to organizer", user.Email))
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RevokeOrganizer removes the organizer role; an account left with no role
// falls back to attendee.
func (s *UserService) RevokeOrganizer(ctx context.Context, actor dto.Actor, id uuid.UUID) (*models.User, error) {
	if err := s.requireComment(actor); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = loadUser(tx, id); err != nil {
			return err
		}
		roles := user.RoleSet()
		if !roles.Has(models.RoleOrganizer) {
			return nil
		}
		if err := tx.Where("user_id = ? AND role = ?", user.ID, models.RoleOrganizer).Delete(&models.UserRole{}).Error; err != nil {
			return fmt.Errorf("failed to revoke role: %w", err)
		}
		remaining := roles.Without(models.RoleOrganizer)
		if len(remaining) == 0 {
			fallback := models.UserRole{UserID: user.ID, Role: models.RoleAttendee}
			if err := tx.Create(&fallback).Error; err != nil {
				return fmt.Errorf("failed to restore attendee role: %w", err)
			}
			remaining = remaining.With(models.RoleAttendee)
		}
		user.Roles = user.Roles[:0]
		for _, r := range remaining {
			user.Roles = append(user.Roles, models.UserRole{UserID: user.ID, Role: r})
		}
		return s.audit.Record(tx, actor, models.AuditUserRevoke, "user", user.ID.String(),
			fmt.Sprintf("Revoked organizer role from %s", user.Email))
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes an account with its organized events and attendance.
func (s *UserService) Delete(ctx context.Context, actor dto.Actor, id uuid.UUID) error {
	if err := s.requireComment(actor); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, id)
		if err != nil {
			return err
		}
		if strings.EqualFold(user.Email, actor.Email) {
			return newValidationError("id", "You cannot delete your own account")
		}
		if err := deleteAccount(tx, user); err != nil {
			return err
		}
		return s.audit.Record(tx, actor, models.AuditUserDelete, "user", user.ID.String(),
			fmt.Sprintf("Deleted user %s", user.Email))
	})
}

// DeleteByExternalSubject handles provider-side deletion. Accounts whose
// email is the subject itself are matched too.
func (s *UserService) DeleteByExternalSubject(ctx context.Context, subject string) (*models.User, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, newValidationError("subject", "Subject is required")
	}

	var deleted *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("external_subject = ?", subject).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = tx.Where("email = ?", subject).First(&user).Error
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}

		if err := deleteAccount(tx, &user); err != nil {
			return err
		}
		deleted = &user
		actor := dto.Actor{Email: "identity-provider"}
		return s.audit.Record(tx, actor, models.AuditUserDelete, "user", user.ID.String(),
			fmt.Sprintf("Deleted user %s after identity provider deletion", user.Email))
	})
	if err != nil {
		return nil, err
	}
	slog.Info("user deleted by identity provider webhook", "user_id", deleted.ID.String())
	return deleted, nil
}

func deleteAccount(tx *gorm.DB, user *models.User) error {
	var eventIDs []uuid.UUID
	if err := tx.Model(&models.Event{}).Where("organizer_id = ?", user.ID).Pluck("id", &eventIDs).Error; err != nil {
		return fmt.Errorf("failed to list owned events: %w", err)
	}
	if err := deleteSessions(tx, eventIDs); err != nil {
		return err
	}

	steps := []struct {
		what  string
		query string
		model interface{}
	}{
		{"attendance", "attendee_id = ?", &models.Attendance{}},
		{"memberships", "user_id = ?", &models.EventMember{}},
		{"refresh tokens", "user_id = ?", &models.RefreshToken{}},
		{"roles", "user_id = ?", &models.UserRole{}},
	}
	for _, st := range steps {
		if err := tx.Where(st.query, user.ID).Delete(st.model).Error; err != nil {
			return fmt.Errorf("failed to delete %s: %w", st.what, err)
		}
	}
	if err := tx.Delete(&models.User{}, "id = ?", user.ID).Error; err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
