// Package dashboard loads the vendor and staff dashboard collections
// through a session's data cache and keeps that cache in step with row
// changes published on the realtime hub.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/vendor-portal/internal/datacache"
	"github.com/iliyamo/vendor-portal/internal/logger"
	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/realtime"
	"github.com/iliyamo/vendor-portal/internal/repository"
)

// fetchTimeout bounds one shared collection query.
const fetchTimeout = 10 * time.Second

// ErrInvalidStatus is returned by the status writes for an unknown value.
var ErrInvalidStatus = errors.New("invalid status")

// Table names published on the realtime hub.
const (
	TableBookings     = "bookings"
	TableTasks        = "vendor_tasks"
	TableStaff        = "vendor_staff"
	TableVendors      = "vendors"
	TableServices     = "vendor_services"
	TableReviews      = "reviews"
	TableAvailability = "vendor_availability"
	TablePortfolios   = "staff_portfolios"
)

var tableEntity = map[string]datacache.EntityType{
	TableBookings:     datacache.Bookings,
	TableTasks:        datacache.Tasks,
	TableStaff:        datacache.Staff,
	TableVendors:      datacache.VendorProfile,
	TableServices:     datacache.Services,
	TableReviews:      datacache.Reviews,
	TableAvailability: datacache.Availability,
}

var (
	bookingStatuses = map[string]bool{"pending": true, "confirmed": true, "cancelled": true, "completed": true}
	taskStatuses    = map[string]bool{"todo": true, "in_progress": true, "done": true}
)

// Scope selects whose rows a load returns.  StaffID narrows tasks to one
// assignee.
type Scope struct {
	VendorID string
	StaffID  string
}

// cacheID is the datacache id of t within a session cache.  Vendor-wide
// collections use the bare type key.
func (s Scope) cacheID(t datacache.EntityType) string {
	if t == datacache.Tasks && s.StaffID != "" {
		return s.StaffID
	}
	return ""
}

// View is what a list endpoint answers.  Error is set when the last fetch
// failed; Data then holds the previous value, if any.
type View struct {
	Type      datacache.EntityType `json:"type"`
	Data      any                  `json:"data"`
	Cached    bool                 `json:"cached"`
	FetchedAt time.Time            `json:"fetched_at"`
	Error     string               `json:"error,omitempty"`
}

type Service struct {
	repo    *repository.DashboardRepo
	staff   *repository.StaffRepo
	vendors *repository.VendorRepo
	hub     realtime.Hub
	log     *slog.Logger

	group singleflight.Group

	mu       sync.Mutex
	watching map[watchKey]*watch
}

func New(repo *repository.DashboardRepo, staff *repository.StaffRepo, vendors *repository.VendorRepo, hub realtime.Hub, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		staff:    staff,
		vendors:  vendors,
		hub:      hub,
		log:      logger.Component(log, "dashboard"),
		watching: map[watchKey]*watch{},
	}
}

// Load answers t from c while it is fresh and otherwise fetches it.
// Concurrent misses for the same rows share one query.
func (s *Service) Load(ctx context.Context, c *datacache.Cache, t datacache.EntityType, scope Scope) (View, error) {
	if !t.Valid() {
		return View{}, fmt.Errorf("unknown entity type %q", t)
	}
	id := scope.cacheID(t)
	if e, ok := c.Get(t, id); ok && !e.Loading && e.Err == nil && e.Data != nil {
		return View{Type: t, Data: e.Data, Cached: true, FetchedAt: e.Timestamp}, nil
	}

	c.SetLoading(t, id)
	key := string(t) + "|" + scope.VendorID + "|" + scope.StaffID
	data, err, shared := s.group.Do(key, func() (any, error) {
		// shared by every waiter, so no single caller may cancel it
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.fetch(fctx, t, scope)
	})
	if err != nil {
		s.log.Error("fetch failed", "type", string(t), "vendor_id", scope.VendorID, "error", err)
		c.SetError(t, err, id)
		prev, _ := c.Peek(t, id)
		return View{Type: t, Data: prev.Data, Error: err.Error()}, err
	}
	if shared {
		s.log.Debug("fetch shared", "type", string(t), "vendor_id", scope.VendorID)
	}
	c.SetData(t, data, id)
	e, _ := c.Peek(t, id)
	return View{Type: t, Data: data, FetchedAt: e.Timestamp}, nil
}

func (s *Service) fetch(ctx context.Context, t datacache.EntityType, scope Scope) (any, error) {
	v := scope.VendorID
	switch t {
	case datacache.Bookings:
		return s.repo.ListBookings(ctx, v)
	case datacache.Tasks:
		if scope.StaffID != "" {
			return s.repo.ListTasksByAssignee(ctx, scope.StaffID)
		}
		return s.repo.ListTasks(ctx, v)
	case datacache.Staff:
		return s.staff.ListByVendor(ctx, v)
	case datacache.VendorProfile:
		return s.vendors.GetByID(ctx, v)
	case datacache.Services:
		return s.repo.ListServices(ctx, v)
	case datacache.Reviews:
		return s.repo.ListReviews(ctx, v)
	case datacache.Availability:
		return s.repo.ListAvailability(ctx, v)
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}

// Payments is not cached.
func (s *Service) Payments(ctx context.Context, vendorID string) ([]model.Payment, error) {
	return s.repo.ListPayments(ctx, vendorID)
}

// Invalidate drops one type from c, or everything when t is empty.
func (s *Service) Invalidate(c *datacache.Cache, t datacache.EntityType, scope Scope) error {
	if t == "" {
		c.ClearAll()
		return nil
	}
	if !t.Valid() {
		return fmt.Errorf("unknown entity type %q", t)
	}
	c.Invalidate(t, scope.cacheID(t))
	return nil
}

// UpdateBookingStatus writes the status, drops the cached bookings and
// announces the change.  Nothing is applied to the cache before the write
// succeeds.
func (s *Service) UpdateBookingStatus(ctx context.Context, c *datacache.Cache, vendorID, bookingID, status string) error {
	if !bookingStatuses[status] {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.repo.UpdateBookingStatus(ctx, vendorID, bookingID, status); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	c.Invalidate(datacache.Bookings, "")
	s.publish(ctx, TableBookings, vendorID, bookingID, realtime.OpUpdate)
	return nil
}

// UpdateTaskStatus is UpdateBookingStatus for vendor_tasks.
func (s *Service) UpdateTaskStatus(ctx context.Context, c *datacache.Cache, vendorID, taskID, status string) error {
	if !taskStatuses[status] {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.repo.UpdateTaskStatus(ctx, vendorID, taskID, status); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	c.Invalidate(datacache.Tasks, "")
	s.publish(ctx, TableTasks, vendorID, taskID, realtime.OpUpdate)
	return nil
}

// Announce publishes a change made outside this package.
func (s *Service) Announce(ctx context.Context, table, vendorID, rowID string, op realtime.Op) {
	s.publish(ctx, table, vendorID, rowID, op)
}

func (s *Service) publish(ctx context.Context, table, vendorID, rowID string, op realtime.Op) {
	if s.hub == nil {
		return
	}
	err := s.hub.Publish(ctx, realtime.Change{Table: table, VendorID: vendorID, RowID: rowID, Op: op, At: time.Now().UTC()})
	if err != nil {
		s.log.Warn("publish change failed", "table", table, "row_id", rowID, "error", err)
	}
}
