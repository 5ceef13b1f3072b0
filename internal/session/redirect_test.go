package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/vendor-portal/internal/model"
)

func TestRedirect(t *testing.T) {
	inactive := &model.VendorProfile{IsActive: false}
	active := &model.VendorProfile{IsActive: true}
	pending := &model.StaffProfile{InvitationStatus: model.InvitationPending}
	accepted := &model.StaffProfile{InvitationStatus: model.InvitationAccepted}
	rejected := &model.StaffProfile{InvitationStatus: model.InvitationRejected}

	cases := []struct {
		name   string
		snap   Snapshot
		path   string
		target string
	}{
		{"inactive vendor anywhere", Snapshot{Role: model.RoleVendor, Vendor: inactive}, "/bookings", PathOnboarding},
		{"inactive vendor on onboarding", Snapshot{Role: model.RoleVendor, Vendor: inactive}, "/onboarding", ""},
		{"active vendor on onboarding", Snapshot{Role: model.RoleVendor, Vendor: active}, "/onboarding/", PathHome},
		{"active vendor elsewhere", Snapshot{Role: model.RoleVendor, Vendor: active}, "/tasks", ""},
		{"vendor without profile yet", Snapshot{Role: model.RoleVendor}, "/tasks", ""},
		{"pending staff", Snapshot{Role: model.RoleStaff, Staff: pending}, "/staff/dashboard", PathStaffOnboarding},
		{"pending staff on onboarding", Snapshot{Role: model.RoleStaff, Staff: pending}, "/staff/onboarding?step=1", ""},
		{"accepted staff on onboarding", Snapshot{Role: model.RoleStaff, Staff: accepted}, "/staff/onboarding", PathStaffDashboard},
		{"accepted staff elsewhere", Snapshot{Role: model.RoleStaff, Staff: accepted}, "/staff/tasks", ""},
		{"rejected staff", Snapshot{Role: model.RoleStaff, Staff: rejected}, "/staff/onboarding", ""},
		{"customer", Snapshot{Role: model.RoleCustomer}, "/", ""},
		{"signed out", Snapshot{}, "/bookings", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target, ok := Redirect(tc.snap, tc.path)
			assert.Equal(t, tc.target != "", ok)
			assert.Equal(t, tc.target, target)
		})
	}
}

func TestNormalizePath(t *testing.T) {
	for in, want := range map[string]string{
		"":                 "/",
		"/":                "/",
		"onboarding":       "/onboarding",
		"/onboarding/":     "/onboarding",
		"/staff/tasks?x=1": "/staff/tasks",
		"/bookings#top":    "/bookings",
	} {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "ROLE_VENDOR", PhaseRoleVendor.String())
	assert.Equal(t, "SIGNED_OUT", PhaseSignedOut.String())
	text, err := PhaseRoleStaff.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "ROLE_STAFF", string(text))
}
