// Package router wires the portal's HTTP routes onto echo.
package router

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/vendor-portal/internal/datacache"
	"github.com/iliyamo/vendor-portal/internal/handler"
	"github.com/iliyamo/vendor-portal/internal/middleware"
	"github.com/iliyamo/vendor-portal/internal/session"
)

// Deps is everything the routes need.
type Deps struct {
	DB        *sql.DB
	Registry  *session.Registry
	Auth      *handler.AuthHandler
	Portal    *handler.PortalHandler
	Dashboard *handler.DashboardHandler
	Staff     *handler.StaffHandler
	// RateLimit guards the auth endpoints; nil disables it.
	RateLimit echo.MiddlewareFunc
	// Settle bounds how long a request waits for a restored session to
	// resolve before the guards answer "loading".
	Settle     time.Duration
	StorageDir string
	Log        *slog.Logger
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Recover())

	RegisterRoutes(e, d.DB, d.StorageDir)
	sess := middleware.PortalSession(d.Registry, d.Settle)
	RegisterAuth(e, d.Auth, sess, d.RateLimit)
	RegisterPortal(e, d.Portal, sess)
	RegisterVendor(e, d.Dashboard, sess)
	RegisterStaff(e, d.Staff, d.Portal, sess)
	return e
}

// RegisterRoutes registers the routes that need no session: the health
// check and the public image bucket.
func RegisterRoutes(e *echo.Echo, db *sql.DB, storageDir string) {
	e.GET("/healthz", handler.Health(db))
	if storageDir != "" {
		e.Static("/storage", storageDir)
	}
}

// RegisterAuth registers sign-in, sign-up and password routes.  Logout is
// the only one that needs a session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, sess, limit echo.MiddlewareFunc) {
	var mws []echo.MiddlewareFunc
	if limit != nil {
		mws = append(mws, limit)
	}
	mws = append(mws, middleware.SecurityHeaders())

	g := e.Group("/v1/auth", mws...)
	g.POST("/login", a.Login)
	g.POST("/signup", a.SignUp)
	g.POST("/refresh", a.Refresh)
	g.POST("/password/forgot", a.ForgotPassword)
	g.POST("/password/reset", a.ResetPassword)
	g.POST("/logout", a.Logout, sess)

	e.POST("/v1/staff/auth/login", a.StaffLogin, mws...)
}

// RegisterPortal registers the resolver state and vendor onboarding.  The
// onboarding routes only require an identity; the vendor guard would send
// an incomplete vendor straight back to them.
func RegisterPortal(e *echo.Echo, p *handler.PortalHandler, sess echo.MiddlewareFunc) {
	signedIn := []echo.MiddlewareFunc{middleware.SecurityHeaders(), sess, middleware.RequireIdentity()}
	e.GET("/v1/portal/state", p.State, middleware.SecurityHeaders(), sess)
	e.GET("/v1/onboarding", p.VendorOnboarding, signedIn...)
	e.PUT("/v1/onboarding", p.CompleteVendorOnboarding, signedIn...)
}

// RegisterVendor registers the vendor dashboard behind VendorGuard.
func RegisterVendor(e *echo.Echo, d *handler.DashboardHandler, sess echo.MiddlewareFunc) {
	vendor := []echo.MiddlewareFunc{middleware.SecurityHeaders(), sess, middleware.VendorGuard()}
	e.GET("/v1/bookings", d.List(datacache.Bookings), vendor...)
	e.PATCH("/v1/bookings/:id", d.UpdateBooking, vendor...)
	e.GET("/v1/tasks", d.List(datacache.Tasks), vendor...)
	e.PATCH("/v1/tasks/:id", d.UpdateTask, vendor...)
	e.GET("/v1/staff", d.List(datacache.Staff), vendor...)
	e.GET("/v1/services", d.List(datacache.Services), vendor...)
	e.GET("/v1/reviews", d.List(datacache.Reviews), vendor...)
	e.GET("/v1/availability", d.List(datacache.Availability), vendor...)
	e.GET("/v1/profile", d.List(datacache.VendorProfile), vendor...)
	e.GET("/v1/payments", d.Payments, vendor...)
	e.POST("/v1/cache/invalidate", d.Invalidate, vendor...)
}

// RegisterStaff registers the staff area behind StaffGuard.  The guard
// itself lets incomplete staff reach the onboarding route.
func RegisterStaff(e *echo.Echo, s *handler.StaffHandler, p *handler.PortalHandler, sess echo.MiddlewareFunc) {
	g := e.Group("/v1/staff", middleware.SecurityHeaders(), sess, middleware.StaffGuard())
	g.GET("/dashboard", s.Dashboard)
	g.GET("/tasks", s.Tasks)
	g.GET("/portfolio", s.ListPortfolio)
	g.POST("/portfolio", s.UploadPortfolio)
	g.PUT("/onboarding", p.CompleteStaffOnboarding)
}
