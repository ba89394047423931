package models

// User lifecycle event types.
const (
	EventUserCreated     = "user.created"
	EventUserUpdated     = "user.updated"
	EventUserDeleted     = "user.deleted"
	EventPasswordChanged = "user.password_changed"
)

// UserEvent is published whenever a user record changes.
type UserEvent struct {
	EventID   string `json:"event_id"`  // Unique event identifier
	Type      string `json:"type"`      // One of the Event* constants
	UserID    int64  `json:"user_id"`   // Affected user
	Timestamp int64  `json:"timestamp"` // Unix timestamp
}
