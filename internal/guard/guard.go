// Package guard decides whether a guarded portal page may render for the
// current resolver state.  The guards never redirect while a fetch is in
// flight.
package guard

import (
	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/session"
)

// Kind of decision.
type Kind int

const (
	Render Kind = iota
	Loading
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Decision is the guard's answer.  For Redirect, Target is where to go and
// From is the path the user tried to open, kept for the return trip.
type Decision struct {
	Kind   Kind
	Target string
	From   string
}

func render() Decision  { return Decision{Kind: Render} }
func loading() Decision { return Decision{Kind: Loading} }

func redirect(target, from string) Decision {
	return Decision{Kind: Redirect, Target: target, From: from}
}

// IsLogin reports whether the decision sends the user to a login page.
func (d Decision) IsLogin() bool {
	return d.Kind == Redirect && (d.Target == session.PathLogin || d.Target == session.PathStaffLogin)
}

// Vendor guards the vendor dashboard.
func Vendor(s session.Snapshot, path string) Decision {
	path = session.NormalizePath(path)
	if s.Busy() {
		return loading()
	}
	// customers never get past the login page
	if s.Identity == nil || s.Role == model.RoleCustomer {
		return redirect(session.PathLogin, path)
	}
	if s.Vendor == nil && s.Role == model.RoleStaff {
		return redirect(session.PathStaffDashboard, path)
	}
	if s.Vendor == nil {
		return redirect(session.PathOnboarding, path)
	}
	return render()
}

// Staff guards the staff area.
func Staff(s session.Snapshot, path string) Decision {
	path = session.NormalizePath(path)
	if s.Busy() {
		return loading()
	}
	if s.Identity == nil || s.Staff == nil || s.Role == model.RoleCustomer {
		return redirect(session.PathStaffLogin, path)
	}
	// inactive, unnamed, without a role or still pending
	if !s.StaffComplete() {
		if path == session.PathStaffOnboarding {
			return render()
		}
		return redirect(session.PathStaffOnboarding, path)
	}
	return render()
}
