package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions.
const (
	AuditEventCreate = "event_create"
	AuditEventDelete = "event_delete"
	AuditUserCreate  = "user_create"
	AuditUserDelete  = "user_delete"
	AuditUserPromote = "user_promote"
	AuditUserRevoke  = "user_revoke"
)

// AuditLog is append-only.
type AuditLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Action       string    `gorm:"size:50;not null;index" json:"action"`
	UserEmail    string    `gorm:"size:255" json:"user_email"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
	ResourceType string    `gorm:"size:50" json:"resource_type"`
	ResourceID   string    `gorm:"size:64" json:"resource_id"`
	Details      string    `gorm:"type:text" json:"details"`
	IPAddress    string    `gorm:"size:64" json:"ip_address,omitempty"`
	Comment      *string   `gorm:"type:text" json:"comment,omitempty"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
