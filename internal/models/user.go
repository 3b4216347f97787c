package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a local account. Email is an address, or the provider subject
// while Placeholder is set.
type User struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email           string     `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Name            string     `gorm:"size:255" json:"name"`
	PasswordHash    string     `json:"-"`
	ExternalSubject *string    `gorm:"size:255;uniqueIndex" json:"-"`
	Placeholder     bool       `gorm:"not null;default:false" json:"-"`
	Roles           []UserRole `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// RoleSet returns the roles attached to the loaded Roles association.
func (u *User) RoleSet() RoleSet {
	roles := make(RoleSet, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = roles.With(r.Role)
	}
	return roles
}

// UserRole is one row of the one-to-many role assignment.
type UserRole struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role      Role      `gorm:"size:20;primaryKey" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
