package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-portal/internal/session"
)

// PortalSession resolves the bearer access token to the resolver of its
// session, restoring one when the process has not seen the session yet.
// It waits up to settle for a background resolution so that most requests
// see a settled snapshot.
func PortalSession(reg *session.Registry, settle time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request())
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "redirect": session.PathLogin})
			}
			r, err := reg.Restore(c.Request().Context(), raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "redirect": session.PathLogin})
			}
			if settle > 0 {
				ctx, cancel := context.WithTimeout(c.Request().Context(), settle)
				err := r.WaitSettled(ctx)
				cancel()
				if err != nil && !errors.Is(err, context.DeadlineExceeded) {
					return err
				}
			}
			c.Set(keyResolver, r)
			if snap := r.Snapshot(); snap.Identity != nil {
				c.Set(keyUserID, snap.Identity.ID)
			}
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}
