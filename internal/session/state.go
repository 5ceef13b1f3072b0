package session

import (
	"github.com/iliyamo/vendor-portal/internal/model"
)

// Phase is the resolver's position in the sign-in flow.  Profile
// completeness is not a phase; see Snapshot.VendorComplete and
// Snapshot.StaffComplete.
type Phase int

const (
	PhaseSignedOut Phase = iota
	PhaseSessionKnown
	PhaseRoleVendor
	PhaseRoleStaff
	PhaseRoleCustomer
)

func (p Phase) String() string {
	switch p {
	case PhaseSignedOut:
		return "SIGNED_OUT"
	case PhaseSessionKnown:
		return "SESSION_KNOWN"
	case PhaseRoleVendor:
		return "ROLE_VENDOR"
	case PhaseRoleStaff:
		return "ROLE_STAFF"
	case PhaseRoleCustomer:
		return "ROLE_CUSTOMER"
	default:
		return "UNKNOWN"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func phaseFor(role model.Role) Phase {
	switch role {
	case model.RoleVendor:
		return PhaseRoleVendor
	case model.RoleStaff:
		return PhaseRoleStaff
	case model.RoleCustomer:
		return PhaseRoleCustomer
	default:
		return PhaseSessionKnown
	}
}

// Snapshot is an immutable copy of resolver state.  Pointer fields point at
// copies owned by the snapshot.
type Snapshot struct {
	Phase    Phase                `json:"phase"`
	Session  *model.Session       `json:"-"`
	Identity *model.Identity      `json:"identity"`
	Role     model.Role           `json:"role"`
	Vendor   *model.VendorProfile `json:"vendor_profile"`
	Staff    *model.StaffProfile  `json:"staff_profile"`

	Loading       bool `json:"is_loading"`
	LoadingRole   bool `json:"is_loading_role"`
	LoadingVendor bool `json:"is_loading_vendor_profile"`
	LoadingStaff  bool `json:"is_loading_staff_profile"`
}

// Busy reports whether any fetch is in flight.
func (s Snapshot) Busy() bool {
	return s.Loading || s.LoadingRole || s.LoadingVendor || s.LoadingStaff
}

// VendorComplete reports whether the vendor row exists and is active.
func (s Snapshot) VendorComplete() bool {
	return s.Vendor != nil && s.Vendor.IsActive
}

// StaffComplete reports whether the staff row is fully onboarded.
func (s Snapshot) StaffComplete() bool {
	return s.Staff.Onboarded()
}

type state struct {
	phase    Phase
	session  *model.Session
	identity *model.Identity
	role     model.Role
	vendor   *model.VendorProfile
	staff    *model.StaffProfile

	loading       bool
	loadingRole   bool
	loadingVendor bool
	loadingStaff  bool
}

func (s *state) snapshot() Snapshot {
	snap := Snapshot{
		Phase:         s.phase,
		Role:          s.role,
		Loading:       s.loading,
		LoadingRole:   s.loadingRole,
		LoadingVendor: s.loadingVendor,
		LoadingStaff:  s.loadingStaff,
	}
	if s.session != nil {
		c := *s.session
		snap.Session = &c
	}
	if s.identity != nil {
		c := *s.identity
		snap.Identity = &c
	}
	if s.vendor != nil {
		c := *s.vendor
		snap.Vendor = &c
	}
	if s.staff != nil {
		c := *s.staff
		snap.Staff = &c
	}
	return snap
}
