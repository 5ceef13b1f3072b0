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

const staffColumns = "id,vendor_id,user_id,display_name,role,email,is_active,invitation_status,created_at,updated_at"

// StaffRepo encapsulates the queries on `vendor_staff`.  Vendor owners have a
// row here too, with role "owner".
type StaffRepo struct {
	db *sql.DB
}

func NewStaffRepo(db *sql.DB) *StaffRepo {
	return &StaffRepo{db: db}
}

// GetByUser returns the staff row of an identity or ErrNotFound.
func (r *StaffRepo) GetByUser(ctx context.Context, userID string) (*model.StaffProfile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+staffColumns+" FROM vendor_staff WHERE user_id=? LIMIT 1", userID)
	s, err := scanStaff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// Create inserts s.  An identity can only have one staff row; a second one
// is ErrConflict.
func (r *StaffRepo) Create(ctx context.Context, s *model.StaffProfile) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.InvitationStatus == "" {
		s.InvitationStatus = model.InvitationPending
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO vendor_staff ("+staffColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
		s.ID, s.VendorID, s.UserID, s.DisplayName, s.Role, s.Email, s.IsActive,
		string(s.InvitationStatus), s.CreatedAt, s.UpdatedAt)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Update writes the non-nil fields of u.
func (r *StaffRepo) Update(ctx context.Context, id string, u model.StaffUpdate) error {
	var (
		sets []string
		args []any
	)
	if u.DisplayName != nil {
		sets = append(sets, "display_name=?")
		args = append(args, strings.TrimSpace(*u.DisplayName))
	}
	if u.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, strings.TrimSpace(*u.Role))
	}
	if u.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *u.IsActive)
	}
	if u.InvitationStatus != nil {
		sets = append(sets, "invitation_status=?")
		args = append(args, string(*u.InvitationStatus))
	}
	sets = append(sets, "updated_at=?")
	args = append(args, time.Now().UTC(), id)
	return execOne(ctx, r.db, "UPDATE vendor_staff SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
}

// ListByVendor returns the vendor's staff ordered by display name.
func (r *StaffRepo) ListByVendor(ctx context.Context, vendorID string) ([]model.StaffProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+staffColumns+" FROM vendor_staff WHERE vendor_id=? ORDER BY display_name, id", vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StaffProfile{}
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStaff(row rowScanner) (*model.StaffProfile, error) {
	var (
		s      model.StaffProfile
		status string
	)
	if err := row.Scan(&s.ID, &s.VendorID, &s.UserID, &s.DisplayName, &s.Role, &s.Email,
		&s.IsActive, &status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.InvitationStatus = model.InvitationStatus(status)
	return &s, nil
}
