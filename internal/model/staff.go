package model

import (
	"strings"
	"time"
)

// InvitationStatus tracks a staff member's invitation to a vendor.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

// StaffRoleOwner marks the staff row every vendor owner gets at sign-up.
const StaffRoleOwner = "owner"

// StaffProfile mirrors one row of `vendor_staff`.
type StaffProfile struct {
	ID               string           `json:"id"`
	VendorID         string           `json:"vendor_id"`
	UserID           string           `json:"user_id"`
	DisplayName      string           `json:"display_name"`
	Role             string           `json:"role"`
	Email            string           `json:"email"`
	IsActive         bool             `json:"is_active"`
	InvitationStatus InvitationStatus `json:"invitation_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Onboarded reports whether the staff row carries everything the staff
// dashboard requires.
func (s *StaffProfile) Onboarded() bool {
	if s == nil {
		return false
	}
	return s.IsActive &&
		strings.TrimSpace(s.DisplayName) != "" &&
		strings.TrimSpace(s.Role) != "" &&
		s.InvitationStatus != InvitationPending
}

// StaffUpdate is a partial write to a staff row.
type StaffUpdate struct {
	DisplayName      *string           `json:"display_name,omitempty"`
	Role             *string           `json:"role,omitempty"`
	IsActive         *bool             `json:"is_active,omitempty"`
	InvitationStatus *InvitationStatus `json:"invitation_status,omitempty"`
}
