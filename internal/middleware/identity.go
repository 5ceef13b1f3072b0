package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-portal/internal/session"
)

// Context keys set by PortalSession.
const (
	keyResolver = "portal.resolver"
	keyUserID   = "user_id"
)

// Resolver returns the resolver PortalSession attached to the request, or
// nil on routes without it.
func Resolver(c echo.Context) *session.Resolver {
	r, _ := c.Get(keyResolver).(*session.Resolver)
	return r
}

// userID is the identity behind the request, or "anon".
func userID(c echo.Context) string {
	if s, ok := c.Get(keyUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
