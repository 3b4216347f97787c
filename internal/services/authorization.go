package services

import "github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"

// Authorize reports whether user holds at least one of required.
func Authorize(user *models.User, required ...models.Role) bool {
	if user == nil {
		return false
	}
	return user.RoleSet().Intersects(required...)
}

// CanManageEvent allows admins and the event's organizer.
func CanManageEvent(user *models.User, event *models.Event) bool {
	if user == nil || event == nil {
		return false
	}
	if user.RoleSet().Has(models.RoleAdmin) {
		return true
	}
	return user.ID == event.OrganizerID
}
