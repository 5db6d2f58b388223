package models

// ScheduleStatus is the status code persisted on customer_schedules.status.
type ScheduleStatus int

const (
	StatusPending ScheduleStatus = 0
	StatusSent    ScheduleStatus = 1
	StatusFailed  ScheduleStatus = -1
)

func (s ScheduleStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Connection is the result of a gateway connection lookup for a user.
type Connection struct {
	Connected   bool
	SessionName string
	WorkspaceID *int64
}

// SessionEndpoint maps a gateway session to the server currently hosting it.
type SessionEndpoint struct {
	SessionName string
	Domain      string
}
