package model

import (
	"strings"
	"time"
)

// Role is the derived classification of an identity.  It is resolved by
// looking up users.user_type for the identity id and is never trusted from a
// token claim.
type Role string

const (
	RoleUnknown  Role = ""
	RoleVendor   Role = "vendor"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// ParseRole maps a users.user_type value onto a Role.  Anything that is not a
// vendor or staff member is a customer as far as the portal is concerned.
func ParseRole(userType string) Role {
	switch strings.ToLower(strings.TrimSpace(userType)) {
	case "vendor":
		return RoleVendor
	case "staff", "vendor_staff":
		return RoleStaff
	default:
		return RoleCustomer
	}
}

// User mirrors a row of the `users` table.
//
// Fields:
//
//	ID           – uuid primary key, also the identity id carried in tokens.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hash.
//	UserType     – vendor | staff | customer.
//	FullName     – display name captured at sign-up.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	UserType     string
	FullName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SignUpMetadata is the typed replacement for the free-form metadata bag a
// sign-up form submits.
type SignUpMetadata struct {
	FullName     string `json:"full_name"`
	BusinessName string `json:"business_name"`
	Category     string `json:"category"`
	Phone        string `json:"phone"`
	VendorID     string `json:"vendor_id"` // required when joining as vendor_staff
}
