package model

import "time"

// VendorProfile mirrors one row of `vendors`, keyed by the owning identity.
// The portal uses it as a completeness predicate (IsActive) and as a
// redirect target selector.
type VendorProfile struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	BusinessName string    `json:"business_name"`
	Category     string    `json:"category"`
	ContactEmail string    `json:"contact_email"`
	Phone        string    `json:"phone"`
	Description  string    `json:"description"`
	IsVerified   bool      `json:"is_verified"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VendorUpdate is a partial write to a vendor row.  Nil fields are left as
// they are.
type VendorUpdate struct {
	BusinessName *string `json:"business_name,omitempty"`
	Category     *string `json:"category,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Description  *string `json:"description,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// Empty reports whether the update would not change anything.
func (u VendorUpdate) Empty() bool {
	return u.BusinessName == nil && u.Category == nil && u.ContactEmail == nil &&
		u.Phone == nil && u.Description == nil && u.IsActive == nil
}
