package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-portal/internal/guard"
	"github.com/iliyamo/vendor-portal/internal/session"
)

// APIPrefix is stripped from request paths to get the portal path a guard
// decides on.
const APIPrefix = "/v1"

// VendorGuard admits requests whose session may see the vendor dashboard.
// It must run after PortalSession.
func VendorGuard() echo.MiddlewareFunc {
	return guarded(guard.Vendor)
}

// StaffGuard admits requests whose session may see the staff area.
func StaffGuard() echo.MiddlewareFunc {
	return guarded(guard.Staff)
}

// RequireIdentity only checks that the session is signed in.  Onboarding
// routes use it because the guards would send incomplete profiles back to
// them.
func RequireIdentity() echo.MiddlewareFunc {
	return guarded(func(s session.Snapshot, path string) guard.Decision {
		switch {
		case s.Busy():
			return guard.Decision{Kind: guard.Loading}
		case s.Identity == nil:
			return guard.Decision{Kind: guard.Redirect, Target: session.PathLogin, From: session.NormalizePath(path)}
		}
		return guard.Decision{Kind: guard.Render}
	})
}

func guarded(decide func(session.Snapshot, string) guard.Decision) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := Resolver(c)
			if r == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "redirect": session.PathLogin})
			}
			d := decide(r.Snapshot(), PortalPath(c.Request().URL.Path))
			switch d.Kind {
			case guard.Loading:
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusAccepted, echo.Map{"status": "loading"})
			case guard.Redirect:
				status := http.StatusForbidden
				if d.IsLogin() {
					status = http.StatusUnauthorized
				}
				return c.JSON(status, echo.Map{"error": "redirect", "redirect": d.Target, "from": d.From})
			}
			return next(c)
		}
	}
}

// PortalPath maps an API path onto the portal path it serves.
func PortalPath(p string) string {
	if p == APIPrefix || strings.HasPrefix(p, APIPrefix+"/") {
		p = strings.TrimPrefix(p, APIPrefix)
	}
	return session.NormalizePath(p)
}
