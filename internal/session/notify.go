package session

import "time"

// Level of a user-visible notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a dismissible message for the user.  Sign-in and
// sign-up report their outcome this way instead of returning errors.
type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const maxPending = 20

func (r *Resolver) notify(level Level, title, msg string) {
	r.log.Debug("notification", "level", string(level), "title", title, "message", msg)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, Notification{Level: level, Title: title, Message: msg, At: time.Now().UTC()})
	if len(r.notes) > maxPending {
		r.notes = r.notes[len(r.notes)-maxPending:]
	}
}

// Notifications returns and clears the pending notifications.
func (r *Resolver) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notes
	r.notes = nil
	return out
}
