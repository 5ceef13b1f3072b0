package model

import "time"

// Booking is a row of `bookings` as the vendor dashboard lists it.
type Booking struct {
	ID           string    `json:"id"`
	VendorID     string    `json:"vendor_id"`
	ServiceID    string    `json:"service_id"`
	CustomerName string    `json:"customer_name"`
	EventDate    time.Time `json:"event_date"`
	Status       string    `json:"status"` // pending | confirmed | cancelled | completed
	AmountCents  int64     `json:"amount_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

// Task is a row of `vendor_tasks`.
type Task struct {
	ID         string     `json:"id"`
	VendorID   string     `json:"vendor_id"`
	BookingID  string     `json:"booking_id,omitempty"`
	AssigneeID string     `json:"assignee_id,omitempty"` // vendor_staff.id
	Title      string     `json:"title"`
	Status     string     `json:"status"` // todo | in_progress | done
	DueAt      *time.Time `json:"due_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Service is a row of `vendor_services`.
type Service struct {
	ID          string    `json:"id"`
	VendorID    string    `json:"vendor_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Review is a row of `reviews`.
type Review struct {
	ID        string    `json:"id"`
	VendorID  string    `json:"vendor_id"`
	BookingID string    `json:"booking_id,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Availability is a row of `vendor_availability`.
type Availability struct {
	ID        string    `json:"id"`
	VendorID  string    `json:"vendor_id"`
	Date      time.Time `json:"date"`
	Available bool      `json:"available"`
	Note      string    `json:"note"`
}

// Payment is a row of `payments`.
type Payment struct {
	ID          string    `json:"id"`
	BookingID   string    `json:"booking_id"`
	VendorID    string    `json:"vendor_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	PaidAt      time.Time `json:"paid_at"`
}

// PortfolioImage is a row of `staff_portfolios`.
type PortfolioImage struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	VendorID  string    `json:"vendor_id"`
	URL       string    `json:"url"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}
