package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"gorm.io/gorm"
)

// AccountStore is the persistence the reconciler needs. Finders return
// ErrUserNotFound when nothing matches; Create returns ErrEmailTaken on a
// unique-key collision.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindBySubject(ctx context.Context, subject string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
}

type GormAccountStore struct {
	db *gorm.DB
}

func NewGormAccountStore(db *gorm.DB) *GormAccountStore {
	return &GormAccountStore{db: db}
}

func (s *GormAccountStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *GormAccountStore) FindBySubject(ctx context.Context, subject string) (*models.User, error) {
	return s.first(ctx, "external_subject = ?", subject)
}

func (s *GormAccountStore) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Roles").Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *GormAccountStore) Create(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

func (s *GormAccountStore) Save(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Model(user).Select("email", "name", "external_subject", "placeholder").Updates(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

// AccountService maps resolved identities to local accounts, provisioning
// new ones on first sight.
type AccountService struct {
	store       AccountStore
	adminEmails []string
}

func NewAccountService(store AccountStore, adminEmails []string) *AccountService {
	return &AccountService{store: store, adminEmails: adminEmails}
}

func (s *AccountService) Reconcile(ctx context.Context, id *Identity) (*models.User, error) {
	user, err := s.lookup(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		user, err = s.provision(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, user, id); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AccountService) lookup(ctx context.Context, id *Identity) (*models.User, error) {
	user, err := s.store.FindByEmail(ctx, id.Email)
	if !errors.Is(err, ErrUserNotFound) || id.Subject == "" {
		return user, err
	}
	return s.store.FindBySubject(ctx, id.Subject)
}

func (s *AccountService) provision(ctx context.Context, id *Identity) (*models.User, error) {
	role := models.RoleAttendee
	if s.isAdminEmail(id.Email) {
		role = models.RoleAdmin
	}

	user := &models.User{
		Email:       id.Email,
		Name:        deriveDisplayName(id),
		Placeholder: !isEmailAddress(id.Email),
		Roles:       []models.UserRole{{Role: role}},
	}
	if id.Subject != "" {
		sub := id.Subject
		user.ExternalSubject = &sub
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			// provisioned concurrently by another request
			return s.lookup(ctx, id)
		}
		return nil, fmt.Errorf("failed to provision account: %w", err)
	}
	slog.Info("account provisioned", "user_id", user.ID.String(), "placeholder", user.Placeholder, "role", role)
	return user, nil
}

// refresh applies at most one of the upgrade rules, in order. A subject
// already linked to another account is never copied, and a write that
// collides leaves the stored account as it was.
func (s *AccountService) refresh(ctx context.Context, user *models.User, id *Identity) error {
	next := *user
	switch {
	case user.Placeholder && isEmailAddress(id.Email):
		next.Email = id.Email
		next.Name = deriveDisplayName(&Identity{Email: id.Email, Name: id.Name})
		next.Placeholder = false
		if user.ExternalSubject == nil && id.Subject != "" {
			free, err := s.subjectFree(ctx, user, id.Subject)
			if err != nil {
				return err
			}
			if free {
				sub := id.Subject
				next.ExternalSubject = &sub
			}
		}

	case user.Placeholder && isAutoGeneratedName(user):
		candidate := id.Name
		if candidate == "" {
			candidate = subjectLabel(subjectOf(user, id))
		}
		if candidate == "" || candidate == user.Name {
			return nil
		}
		next.Name = candidate

	case user.ExternalSubject == nil && id.Subject != "":
		free, err := s.subjectFree(ctx, user, id.Subject)
		if err != nil {
			return err
		}
		if !free {
			return nil
		}
		sub := id.Subject
		next.ExternalSubject = &sub
		if id.Name != "" && isAutoGeneratedName(user) {
			next.Name = id.Name
		}

	default:
		return nil
	}

	if err := s.store.Save(ctx, &next); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			slog.Warn("account update collided, keeping stored account", "user_id", user.ID.String(), "error", err)
			return nil
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	*user = next
	slog.Info("account reconciled", "user_id", user.ID.String())
	return nil
}

// subjectFree reports whether subject can be linked to user.
func (s *AccountService) subjectFree(ctx context.Context, user *models.User, subject string) (bool, error) {
	holder, err := s.store.FindBySubject(ctx, subject)
	if errors.Is(err, ErrUserNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if holder.ID == user.ID {
		return true, nil
	}
	slog.Warn("external subject linked to another account, not backfilling",
		"user_id", user.ID.String(), "holder_id", holder.ID.String())
	return false, nil
}

func (s *AccountService) isAdminEmail(email string) bool {
	for _, a := range s.adminEmails {
		if strings.EqualFold(a, email) {
			return true
		}
	}
	return false
}

func isEmailAddress(s string) bool {
	return strings.Contains(s, "@")
}

// deriveDisplayName picks the identity name, then the email local-part, then a
// label from an opaque subject, then the truncated identifier.
func deriveDisplayName(id *Identity) string {
	if n := strings.TrimSpace(id.Name); n != "" {
		return n
	}
	if at := strings.Index(id.Email, "@"); at > 0 {
		return id.Email[:at]
	}
	if label := subjectLabel(id.Email); label != "" {
		return label
	}
	return truncate(id.Email, 20)
}

// subjectLabel turns "provider|abc12345xyz" into "User abc12345".
func subjectLabel(subject string) string {
	i := strings.Index(subject, "|")
	if i < 0 || i == len(subject)-1 {
		return ""
	}
	return "User " + truncate(subject[i+1:], 8)
}

func subjectOf(user *models.User, id *Identity) string {
	if id.Subject != "" {
		return id.Subject
	}
	if user.ExternalSubject != nil {
		return *user.ExternalSubject
	}
	return user.Email
}

// isAutoGeneratedName reports whether the stored name is one the provisioner
// would have derived without a real display name.
func isAutoGeneratedName(user *models.User) bool {
	if user.Name == "" {
		return true
	}
	candidates := []string{user.Email, truncate(user.Email, 20), subjectLabel(user.Email)}
	if at := strings.Index(user.Email, "@"); at > 0 {
		candidates = append(candidates, user.Email[:at])
	}
	if user.ExternalSubject != nil {
		candidates = append(candidates, subjectLabel(*user.ExternalSubject), truncate(*user.ExternalSubject, 20))
	}
	for _, c := range candidates {
		if c != "" && c == user.Name {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
