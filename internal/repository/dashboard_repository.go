package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/vendor-portal/internal/model"
)

// DashboardRepo serves the vendor dashboard lists.  Every query is scoped by
// vendor id; the handlers never accept a vendor id from the client.
type DashboardRepo struct {
	db *sql.DB
}

func NewDashboardRepo(db *sql.DB) *DashboardRepo {
	return &DashboardRepo{db: db}
}

// ListBookings returns the vendor's bookings, soonest event first.
func (r *DashboardRepo) ListBookings(ctx context.Context, vendorID string) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, vendor_id, service_id, customer_name, event_date, status, amount_cents, created_at
		FROM bookings WHERE vendor_id = ? ORDER BY event_date, id`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Booking{}
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.VendorID, &b.ServiceID, &b.CustomerName, &b.EventDate,
			&b.Status, &b.AmountCents, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBookingStatus changes the status of one of the vendor's bookings.
func (r *DashboardRepo) UpdateBookingStatus(ctx context.Context, vendorID, id, status string) error {
	return execOne(ctx, r.db, "UPDATE bookings SET status=? WHERE id=? AND vendor_id=?", status, id, vendorID)
}

const taskColumns = "id, vendor_id, booking_id, assignee_id, title, status, due_at, created_at"

// ListTasks returns the vendor's tasks, oldest first.
func (r *DashboardRepo) ListTasks(ctx context.Context, vendorID string) ([]model.Task, error) {
	return r.queryTasks(ctx, "SELECT "+taskColumns+" FROM vendor_tasks WHERE vendor_id = ? ORDER BY created_at, id", vendorID)
}

// ListTasksByAssignee returns the tasks assigned to one staff row.
func (r *DashboardRepo) ListTasksByAssignee(ctx context.Context, staffID string) ([]model.Task, error) {
	return r.queryTasks(ctx, "SELECT "+taskColumns+" FROM vendor_tasks WHERE assignee_id = ? ORDER BY created_at, id", staffID)
}

// CreateTask inserts t for its vendor.
func (r *DashboardRepo) CreateTask(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = "todo"
	}
	t.CreatedAt = time.Now().UTC()
	var due sql.NullTime
	if t.DueAt != nil {
		due = sql.NullTime{Time: t.DueAt.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, "INSERT INTO vendor_tasks ("+taskColumns+") VALUES (?,?,?,?,?,?,?,?)",
		t.ID, t.VendorID, t.BookingID, t.AssigneeID, strings.TrimSpace(t.Title), t.Status, due, t.CreatedAt)
	return err
}

// UpdateTaskStatus changes the status of one of the vendor's tasks.
func (r *DashboardRepo) UpdateTaskStatus(ctx context.Context, vendorID, id, status string) error {
	return execOne(ctx, r.db, "UPDATE vendor_tasks SET status=? WHERE id=? AND vendor_id=?", status, id, vendorID)
}

func (r *DashboardRepo) queryTasks(ctx context.Context, q string, arg any) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Task{}
	for rows.Next() {
		var (
			t   model.Task
			due sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.VendorID, &t.BookingID, &t.AssigneeID, &t.Title, &t.Status,
			&due, &t.CreatedAt); err != nil {
			return nil, err
		}
		if due.Valid {
			d := due.Time
			t.DueAt = &d
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListServices returns the vendor's services by name.
func (r *DashboardRepo) ListServices(ctx context.Context, vendorID string) ([]model.Service, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, vendor_id, name, description, price_cents, is_active, created_at
		FROM vendor_services WHERE vendor_id = ? ORDER BY name, id`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Service{}
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.VendorID, &s.Name, &s.Description, &s.PriceCents, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListReviews returns the vendor's reviews, newest first.
func (r *DashboardRepo) ListReviews(ctx context.Context, vendorID string) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, vendor_id, booking_id, rating, comment, created_at
		FROM reviews WHERE vendor_id = ? ORDER BY created_at DESC, id`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Review{}
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.VendorID, &rv.BookingID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// ListAvailability returns the vendor's calendar entries by date.
func (r *DashboardRepo) ListAvailability(ctx context.Context, vendorID string) ([]model.Availability, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, vendor_id, available_on, available, note
		FROM vendor_availability WHERE vendor_id = ? ORDER BY available_on, id`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Availability{}
	for rows.Next() {
		var a model.Availability
		if err := rows.Scan(&a.ID, &a.VendorID, &a.Date, &a.Available, &a.Note); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListPayments returns the vendor's payments, newest first.
func (r *DashboardRepo) ListPayments(ctx context.Context, vendorID string) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, booking_id, vendor_id, amount_cents, status, paid_at
		FROM payments WHERE vendor_id = ? ORDER BY paid_at DESC, id`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Payment{}
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.VendorID, &p.AmountCents, &p.Status, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
