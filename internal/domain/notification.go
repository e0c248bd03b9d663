package domain

// NotificationLevel classifies a user-facing message.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// Notification is one human-readable message for the person driving the
// client.
type Notification struct {
	Level  NotificationLevel
	Title  string
	Detail string
	JobID  string
}
