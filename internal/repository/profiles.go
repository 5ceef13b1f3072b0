package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/vendor-portal/internal/model"
)

// Profiles is the table client the session resolver talks to.  It bundles
// the users, vendors and vendor_staff repositories behind one value.
type Profiles struct {
	Users   *UserRepo
	Vendors *VendorRepo
	Staff   *StaffRepo
}

func NewProfiles(db *sql.DB) *Profiles {
	return &Profiles{
		Users:   NewUserRepo(db),
		Vendors: NewVendorRepo(db),
		Staff:   NewStaffRepo(db),
	}
}

func (p *Profiles) GetUserType(ctx context.Context, userID string) (model.Role, error) {
	return p.Users.GetUserType(ctx, userID)
}

func (p *Profiles) SetUserType(ctx context.Context, userID string, role model.Role) error {
	return p.Users.SetUserType(ctx, userID, role)
}

func (p *Profiles) GetVendorByOwner(ctx context.Context, ownerID string) (*model.VendorProfile, error) {
	return p.Vendors.GetByOwner(ctx, ownerID)
}

func (p *Profiles) CreateVendor(ctx context.Context, v *model.VendorProfile) error {
	return p.Vendors.Create(ctx, v)
}

func (p *Profiles) UpdateVendor(ctx context.Context, vendorID string, u model.VendorUpdate) error {
	return p.Vendors.Update(ctx, vendorID, u)
}

func (p *Profiles) GetStaffByUser(ctx context.Context, userID string) (*model.StaffProfile, error) {
	return p.Staff.GetByUser(ctx, userID)
}

func (p *Profiles) CreateStaff(ctx context.Context, s *model.StaffProfile) error {
	return p.Staff.Create(ctx, s)
}

func (p *Profiles) UpdateStaff(ctx context.Context, staffID string, u model.StaffUpdate) error {
	return p.Staff.Update(ctx, staffID, u)
}
