package dispatch

import (
	"strings"

	"scheduled-dispatch/internal/models"
)

// Validate checks the fields every send needs. It returns a *ValidationError carrying all
// failed checks, or nil.
func Validate(p models.Payload) error {
	var reasons []string
	if p.ScheduleID == 0 {
		reasons = append(reasons, "scheduleId is required")
	}
	if strings.TrimSpace(p.UserMobile) == "" {
		reasons = append(reasons, "userMobile is required")
	}
	if strings.TrimSpace(p.Recipient) == "" {
		reasons = append(reasons, "recipient is required")
	}
	if p.Content == "" && !p.HasFile() {
		reasons = append(reasons, "content or scheduledFile is required")
	}
	switch {
	case p.ScheduledTime == 0:
		reasons = append(reasons, "scheduledTime is required")
	case p.ScheduledTime < 0:
		reasons = append(reasons, "scheduledTime must be a positive epoch milliseconds value")
	}
	if p.HasFile() && strings.TrimSpace(p.ScheduledFileName) == "" {
		reasons = append(reasons, "scheduledFileName is required when scheduledFile is set")
	}
	if rec, ok := p.Recurrence(); ok && rec.Interval <= 0 {
		reasons = append(reasons, "recurrenceInterval must be greater than 0 for recurring messages")
	}
	if len(reasons) == 0 {
		return nil
	}
	return &ValidationError{Reasons: reasons}
}
