package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"gorm.io/gorm"
)

// AuditService appends audit entries for privileged mutations.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db, now: time.Now}
}

// Record writes an entry through tx so it commits with the mutation it describes.
func (s *AuditService) Record(tx *gorm.DB, actor dto.Actor, action, resourceType, resourceID, details string) error {
	entry := models.AuditLog{
		Action:       action,
		UserEmail:    actor.Email,
		Timestamp:    s.now().UTC(),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    actor.IP,
	}
	if c := strings.TrimSpace(actor.Comment); c != "" {
		entry.Comment = &c
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// List returns entries newest first, optionally filtered by action.
func (s *AuditService) List(ctx context.Context, action string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	var logs []models.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
