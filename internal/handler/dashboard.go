package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-portal/internal/dashboard"
	"github.com/iliyamo/vendor-portal/internal/datacache"
	"github.com/iliyamo/vendor-portal/internal/middleware"
	"github.com/iliyamo/vendor-portal/internal/repository"
	"github.com/iliyamo/vendor-portal/internal/session"
)

// DashboardHandler serves the vendor dashboard.  Routes run behind
// VendorGuard, so the session always has a vendor row.
type DashboardHandler struct {
	Svc *dashboard.Service
}

func NewDashboardHandler(svc *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{Svc: svc}
}

func vendorScope(r *session.Resolver) dashboard.Scope {
	return dashboard.Scope{VendorID: r.Snapshot().Vendor.ID}
}

// List returns a handler answering one cached collection.  The first list
// request of a session starts watching the vendor's row changes.
func (h *DashboardHandler) List(t datacache.EntityType) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := middleware.Resolver(c)
		scope := vendorScope(r)
		return h.load(c, r, t, scope)
	}
}

func (h *DashboardHandler) load(c echo.Context, r *session.Resolver, t datacache.EntityType, scope dashboard.Scope) error {
	if err := h.Svc.Watch(r, scope); err != nil {
		slog.WarnContext(c.Request().Context(), "watch changes failed", "error", err)
	}
	v, err := h.Svc.Load(c.Request().Context(), r.Cache(), t, scope)
	if err != nil && v.Data == nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "load failed", "type": t})
	}
	return c.JSON(http.StatusOK, v)
}

// Payments lists payments without caching.
func (h *DashboardHandler) Payments(c echo.Context) error {
	r := middleware.Resolver(c)
	list, err := h.Svc.Payments(c.Request().Context(), vendorScope(r).VendorID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "load failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"type": "payments", "data": list})
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

// UpdateBooking changes a booking's status.
func (h *DashboardHandler) UpdateBooking(c echo.Context) error {
	return h.updateStatus(c, h.Svc.UpdateBookingStatus)
}

// UpdateTask changes a task's status.
func (h *DashboardHandler) UpdateTask(c echo.Context) error {
	return h.updateStatus(c, h.Svc.UpdateTaskStatus)
}

func (h *DashboardHandler) updateStatus(c echo.Context, write func(context.Context, *datacache.Cache, string, string, string) error) error {
	var req statusReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	r := middleware.Resolver(c)
	id := c.Param("id")
	err := write(c.Request().Context(), r.Cache(), vendorScope(r).VendorID, id, req.Status)
	switch {
	case errors.Is(err, dashboard.ErrInvalidStatus):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": req.Status})
}

type invalidateReq struct {
	Type string `json:"type"`
}

// Invalidate drops one cached collection, or all of them when type is
// empty.
func (h *DashboardHandler) Invalidate(c echo.Context) error {
	var req invalidateReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	r := middleware.Resolver(c)
	if err := h.Svc.Invalidate(r.Cache(), datacache.EntityType(req.Type), vendorScope(r)); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
