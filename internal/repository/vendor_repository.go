package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/vendor-portal/internal/model"
)

const vendorColumns = "id,owner_id,business_name,category,contact_email,phone,description,is_verified,is_active,created_at,updated_at"

// VendorRepo encapsulates the queries on `vendors`.  One row exists per
// vendor business, keyed by the owning identity.
type VendorRepo struct {
	db *sql.DB
}

func NewVendorRepo(db *sql.DB) *VendorRepo {
	return &VendorRepo{db: db}
}

// GetByOwner returns the vendor owned by the identity or ErrNotFound.
func (r *VendorRepo) GetByOwner(ctx context.Context, ownerID string) (*model.VendorProfile, error) {
	return r.scanOne(ctx, "SELECT "+vendorColumns+" FROM vendors WHERE owner_id=? LIMIT 1", ownerID)
}

// GetByID returns the vendor with the given id or ErrNotFound.
func (r *VendorRepo) GetByID(ctx context.Context, id string) (*model.VendorProfile, error) {
	return r.scanOne(ctx, "SELECT "+vendorColumns+" FROM vendors WHERE id=? LIMIT 1", id)
}

// Create inserts v, filling in the id and timestamps when they are empty.
// A second vendor for the same owner is rejected with ErrConflict.
func (r *VendorRepo) Create(ctx context.Context, v *model.VendorProfile) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO vendors ("+vendorColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		v.ID, v.OwnerID, v.BusinessName, v.Category, v.ContactEmail, v.Phone, v.Description,
		v.IsVerified, v.IsActive, v.CreatedAt, v.UpdatedAt)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Update writes the non-nil fields of u.  ErrNotFound is returned when no
// vendor has the id.
func (r *VendorRepo) Update(ctx context.Context, id string, u model.VendorUpdate) error {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if u.BusinessName != nil {
		add("business_name", strings.TrimSpace(*u.BusinessName))
	}
	if u.Category != nil {
		add("category", strings.TrimSpace(*u.Category))
	}
	if u.ContactEmail != nil {
		add("contact_email", strings.ToLower(strings.TrimSpace(*u.ContactEmail)))
	}
	if u.Phone != nil {
		add("phone", strings.TrimSpace(*u.Phone))
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.IsActive != nil {
		add("is_active", *u.IsActive)
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)
	return execOne(ctx, r.db, "UPDATE vendors SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
}

func (r *VendorRepo) scanOne(ctx context.Context, q string, arg any) (*model.VendorProfile, error) {
	var v model.VendorProfile
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&v.ID, &v.OwnerID, &v.BusinessName, &v.Category,
		&v.ContactEmail, &v.Phone, &v.Description, &v.IsVerified, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
