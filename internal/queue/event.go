// Package queue defines the broker payloads of the portal and the
// background consumers that record them.
package queue

import "time"

// MailQueue is the durable queue of outgoing mail.
const MailQueue = "mail.password_reset"

// AuditQueue is the durable queue bound to every row change.
const AuditQueue = "portal.changes.audit"

// PasswordResetMail asks the mailer to send a reset link.  It carries the
// raw token; only its hash is stored in the database.
type PasswordResetMail struct {
	Email       string    `json:"email"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	RequestedAt time.Time `json:"requested_at"`
}
