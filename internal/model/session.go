package model

import "time"

// Session is the read-only copy of a session issued by the identity
// authority.  ID is the portal session id (the `sid` claim), UserID the
// identity it belongs to.
type Session struct {
	ID           string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Identity is the authenticated principal behind a session.  It maps to
// neither a vendor nor a staff row by itself.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthEventType enumerates the push events the identity authority emits.
type AuthEventType string

const (
	EventInitialSession   AuthEventType = "INITIAL_SESSION"
	EventSignedIn         AuthEventType = "SIGNED_IN"
	EventTokenRefreshed   AuthEventType = "TOKEN_REFRESHED"
	EventSignedOut        AuthEventType = "SIGNED_OUT"
	EventPasswordRecovery AuthEventType = "PASSWORD_RECOVERY"
)

// AuthEvent is one `(event, session|nil)` push.  SessionID is always set so
// that sign-out events, which carry no session, can still be routed.
type AuthEvent struct {
	Type      AuthEventType
	SessionID string
	Session   *Session
}
