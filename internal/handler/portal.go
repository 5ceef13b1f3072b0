package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-portal/internal/dashboard"
	"github.com/iliyamo/vendor-portal/internal/middleware"
	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/realtime"
	"github.com/iliyamo/vendor-portal/internal/session"
)

// PortalHandler exposes the resolver state and the onboarding forms.
type PortalHandler struct {
	Dashboard *dashboard.Service
}

func NewPortalHandler(d *dashboard.Service) *PortalHandler {
	return &PortalHandler{Dashboard: d}
}

type stateResp struct {
	State         session.Snapshot       `json:"state"`
	Redirect      string                 `json:"redirect,omitempty"`
	Notifications []session.Notification `json:"notifications"`
}

func stateOf(r *session.Resolver, path string) stateResp {
	snap := r.Snapshot()
	target, _ := session.Redirect(snap, path)
	return stateResp{State: snap, Redirect: target, Notifications: notes(r.Notifications())}
}

// State answers the resolver snapshot and where the client on ?path=
// should go next, if anywhere.
func (h *PortalHandler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, stateOf(middleware.Resolver(c), c.QueryParam("path")))
}

// VendorOnboarding shows the vendor row the onboarding form edits.
func (h *PortalHandler) VendorOnboarding(c echo.Context) error {
	r := middleware.Resolver(c)
	snap := r.Snapshot()
	if snap.Vendor == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no vendor profile for this account"})
	}
	target, _ := session.Redirect(snap, session.PathOnboarding)
	return c.JSON(http.StatusOK, echo.Map{
		"vendor_profile": snap.Vendor,
		"complete":       snap.VendorComplete(),
		"redirect":       target,
	})
}

type vendorOnboardingReq struct {
	BusinessName string `json:"business_name" validate:"required,max=200"`
	Category     string `json:"category" validate:"required,max=100"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"max=50"`
	Description  string `json:"description" validate:"max=2000"`
}

// CompleteVendorOnboarding saves the form and activates the vendor.
func (h *PortalHandler) CompleteVendorOnboarding(c echo.Context) error {
	var req vendorOnboardingReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	r := middleware.Resolver(c)
	snap := r.Snapshot()
	if snap.Vendor == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no vendor profile for this account"})
	}
	active := true
	upd := model.VendorUpdate{
		BusinessName: trimmed(req.BusinessName),
		Category:     trimmed(req.Category),
		Phone:        trimmed(req.Phone),
		Description:  trimmed(req.Description),
		IsActive:     &active,
	}
	if req.ContactEmail != "" {
		upd.ContactEmail = trimmed(req.ContactEmail)
	}
	ctx := c.Request().Context()
	if err := r.UpdateVendor(ctx, snap.Vendor.ID, upd); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed", "notifications": notes(r.Notifications())})
	}
	h.Dashboard.Announce(ctx, dashboard.TableVendors, snap.Vendor.ID, snap.Vendor.ID, realtime.OpUpdate)
	return c.JSON(http.StatusOK, stateOf(r, session.PathOnboarding))
}

type staffOnboardingReq struct {
	DisplayName string `json:"display_name" validate:"required,max=200"`
	Role        string `json:"role" validate:"required,max=100"`
	Accept      *bool  `json:"accept" validate:"required"`
}

// CompleteStaffOnboarding names the staff row and answers the invitation.
// Accepting activates the row; declining marks it rejected and inactive.
func (h *PortalHandler) CompleteStaffOnboarding(c echo.Context) error {
	var req staffOnboardingReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	r := middleware.Resolver(c)
	snap := r.Snapshot()
	staff := snap.Staff
	if staff == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no staff profile for this account"})
	}
	if staff.Role == model.StaffRoleOwner {
		req.Role = model.StaffRoleOwner
	}
	status := model.InvitationAccepted
	active := *req.Accept
	if !active {
		status = model.InvitationRejected
	}
	upd := model.StaffUpdate{
		DisplayName:      trimmed(req.DisplayName),
		Role:             trimmed(req.Role),
		IsActive:         &active,
		InvitationStatus: &status,
	}
	ctx := c.Request().Context()
	if err := r.UpdateStaff(ctx, staff.ID, upd); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed", "notifications": notes(r.Notifications())})
	}
	h.Dashboard.Announce(ctx, dashboard.TableStaff, staff.VendorID, staff.ID, realtime.OpUpdate)
	return c.JSON(http.StatusOK, stateOf(r, session.PathStaffOnboarding))
}

func trimmed(s string) *string {
	s = strings.TrimSpace(s)
	return &s
}
