package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-portal/internal/authority"
	"github.com/iliyamo/vendor-portal/internal/middleware"
	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/session"
)

// AuthHandler serves the sign-in, sign-up and password endpoints of both
// portals.
type AuthHandler struct {
	Registry  *session.Registry
	Authority *authority.Authority
	// Settle bounds how long a sign-in waits for the role and profiles.
	Settle time.Duration
}

func NewAuthHandler(reg *session.Registry, auth *authority.Authority, settle time.Duration) *AuthHandler {
	return &AuthHandler{Registry: reg, Authority: auth, Settle: settle}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	From     string `json:"from"`
}

type signUpReq struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	Role         string `json:"role" validate:"required,oneof=vendor vendor_staff staff"`
	FullName     string `json:"full_name" validate:"max=200"`
	BusinessName string `json:"business_name" validate:"max=200"`
	Category     string `json:"category" validate:"max=100"`
	Phone        string `json:"phone" validate:"max=50"`
	VendorID     string `json:"vendor_id"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type forgotReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type tokensResp struct {
	SessionID    string    `json:"session_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type sessionResp struct {
	tokensResp
	State         session.Snapshot       `json:"state"`
	Redirect      string                 `json:"redirect"`
	Notifications []session.Notification `json:"notifications"`
}

// Login signs in through the vendor portal.
func (h *AuthHandler) Login(c echo.Context) error {
	return h.login(c, session.PortalVendor)
}

// StaffLogin signs in through the staff portal.
func (h *AuthHandler) StaffLogin(c echo.Context) error {
	return h.login(c, session.PortalStaff)
}

func (h *AuthHandler) login(c echo.Context, portal session.Portal) error {
	var req loginReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx := c.Request().Context()

	r := h.Registry.NewResolver(portal)
	if !r.SignIn(ctx, req.Email, req.Password) {
		return rejected(c, http.StatusUnauthorized, r.Notifications())
	}
	return h.admitted(c, r, http.StatusOK, landing(portal, req.From))
}

// SignUp creates a vendor or staff account and signs it in.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx := c.Request().Context()

	portal := session.PortalVendor
	if req.Role != "vendor" {
		portal = session.PortalStaff
	}
	r := h.Registry.NewResolver(portal)
	meta := model.SignUpMetadata{
		FullName:     req.FullName,
		BusinessName: req.BusinessName,
		Category:     req.Category,
		Phone:        req.Phone,
		VendorID:     req.VendorID,
	}
	if !r.SignUp(ctx, req.Email, req.Password, meta, req.Role) {
		return rejected(c, http.StatusBadRequest, r.Notifications())
	}
	return h.admitted(c, r, http.StatusCreated, landing(portal, ""))
}

// admitted registers a signed-in resolver, waits briefly for its profiles
// and answers the tokens with the redirect the portal should follow.
func (h *AuthHandler) admitted(c echo.Context, r *session.Resolver, status int, target string) error {
	h.Registry.Bind(r)
	if h.Settle > 0 {
		ctx, cancel := context.WithTimeout(c.Request().Context(), h.Settle)
		_ = r.WaitSettled(ctx)
		cancel()
	}
	snap := r.Snapshot()
	if t, ok := session.Redirect(snap, target); ok {
		target = t
	}
	resp := sessionResp{State: snap, Redirect: target, Notifications: notes(r.Notifications())}
	if s := snap.Session; s != nil {
		resp.tokensResp = tokensResp{SessionID: s.ID, AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: s.ExpiresAt}
	}
	return c.JSON(status, resp)
}

func landing(portal session.Portal, from string) string {
	if from = strings.TrimSpace(from); from != "" {
		return session.NormalizePath(from)
	}
	if portal == session.PortalStaff {
		return session.PathStaffDashboard
	}
	return session.PathHome
}

func rejected(c echo.Context, status int, ns []session.Notification) error {
	msg := "request failed"
	if len(ns) > 0 {
		msg = ns[len(ns)-1].Message
	}
	return c.JSON(status, echo.Map{"error": msg, "notifications": notes(ns)})
}

func notes(ns []session.Notification) []session.Notification {
	if ns == nil {
		return []session.Notification{}
	}
	return ns
}

// Refresh rotates the refresh token.  The resident resolver of the session
// picks up the new access token from the authority's push.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	s, err := h.Authority.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, authority.ErrSessionRevoked) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh", "redirect": session.PathLogin})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	return c.JSON(http.StatusOK, tokensResp{SessionID: s.ID, AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: s.ExpiresAt})
}

// Logout ends the session of the bearer token and tells the client which
// login page to show.
func (h *AuthHandler) Logout(c echo.Context) error {
	r := middleware.Resolver(c)
	if r == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	target := r.SignOut(c.Request().Context())
	return c.JSON(http.StatusOK, echo.Map{"redirect": target})
}

// ForgotPassword always answers 202 so that it cannot be used to probe
// which emails have accounts.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	if err := h.Authority.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		slog.ErrorContext(c.Request().Context(), "password reset request failed", "error", err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "If the account exists, a reset link has been sent."})
}

// ResetPassword sets a new password from a reset token.  Every session of
// the identity is signed out.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	err := h.Authority.ResetPassword(c.Request().Context(), req.Token, req.Password)
	switch {
	case errors.Is(err, authority.ErrInvalidResetToken):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset token"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"redirect": session.PathLogin})
}
