package session

import (
	"context"

	"github.com/iliyamo/vendor-portal/internal/localstore"
	"github.com/iliyamo/vendor-portal/internal/model"
)

// Authority is the identity service the resolver signs in against.
// *authority.Authority implements it.
type Authority interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (*model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, accessToken string) (*model.Session, error)
	Subscribe(fn func(model.AuthEvent)) (unsubscribe func())
}

// ProfileStore reads and writes the users, vendors and vendor_staff rows.
// Lookups report a missing row as repository.ErrNotFound.
// *repository.Profiles implements it.
type ProfileStore interface {
	GetUserType(ctx context.Context, userID string) (model.Role, error)
	SetUserType(ctx context.Context, userID string, role model.Role) error
	GetVendorByOwner(ctx context.Context, ownerID string) (*model.VendorProfile, error)
	CreateVendor(ctx context.Context, v *model.VendorProfile) error
	UpdateVendor(ctx context.Context, vendorID string, u model.VendorUpdate) error
	GetStaffByUser(ctx context.Context, userID string) (*model.StaffProfile, error)
	CreateStaff(ctx context.Context, s *model.StaffProfile) error
	UpdateStaff(ctx context.Context, staffID string, u model.StaffUpdate) error
}

// LocalStore is the durable role/profile copy purged at sign-out.
type LocalStore = localstore.Store

func localRecord(s Snapshot) localstore.Record {
	return localstore.Record{Role: s.Role, Vendor: s.Vendor, Staff: s.Staff}
}
