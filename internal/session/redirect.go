package session

import (
	"strings"

	"github.com/iliyamo/vendor-portal/internal/model"
)

// Portal routes the resolver redirects between.
const (
	PathHome            = "/"
	PathLogin           = "/login"
	PathOnboarding      = "/onboarding"
	PathStaffLogin      = "/staff/login"
	PathStaffDashboard  = "/staff/dashboard"
	PathStaffOnboarding = "/staff/onboarding"
)

// NormalizePath trims a trailing slash and query so "/onboarding/" and
// "/onboarding?step=2" compare equal to "/onboarding".
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return PathHome
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// Redirect applies the post-resolution redirect policy to a snapshot and
// the current path.  It depends only on the role, both profiles and the
// path.
func Redirect(s Snapshot, path string) (string, bool) {
	path = NormalizePath(path)
	switch s.Role {
	case model.RoleVendor:
		if s.Vendor == nil {
			return "", false
		}
		if !s.Vendor.IsActive && path != PathOnboarding {
			return PathOnboarding, true
		}
		if s.Vendor.IsActive && path == PathOnboarding {
			return PathHome, true
		}
	case model.RoleStaff:
		if s.Staff == nil {
			return "", false
		}
		switch s.Staff.InvitationStatus {
		case model.InvitationPending:
			if path != PathStaffOnboarding {
				return PathStaffOnboarding, true
			}
		case model.InvitationAccepted:
			if path == PathStaffOnboarding {
				return PathStaffDashboard, true
			}
		}
	}
	return "", false
}
