package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/utils"
)

const userColumns = "id,email,password_hash,user_type,full_name,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user with a fresh uuid and returns the stored row.  The
// user starts as a customer until SetUserType says otherwise.
func (r *UserRepo) Create(ctx context.Context, email, password, fullName string, cost int) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.User{}, err
	}
	now := time.Now().UTC()
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		UserType:     string(model.RoleCustomer),
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, u.UserType, u.FullName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// GetUserType returns the role recorded for an identity.  ErrNotFound means
// the identity has no users row at all.
func (r *UserRepo) GetUserType(ctx context.Context, id string) (model.Role, error) {
	var userType string
	err := r.DB.QueryRowContext(ctx, "SELECT user_type FROM users WHERE id=? LIMIT 1", id).Scan(&userType)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RoleUnknown, ErrNotFound
	}
	if err != nil {
		return model.RoleUnknown, err
	}
	return model.ParseRole(userType), nil
}

// SetUserType records the role of an identity.
func (r *UserRepo) SetUserType(ctx context.Context, id string, role model.Role) error {
	return r.exec1(ctx, "UPDATE users SET user_type=?, updated_at=? WHERE id=?",
		string(role), time.Now().UTC(), id)
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	return r.exec1(ctx, "UPDATE users SET password_hash=?, updated_at=? WHERE id=?",
		hash, time.Now().UTC(), id)
}

func (r *UserRepo) scanOne(ctx context.Context, q string, arg any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, q, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.UserType, &u.FullName, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// exec1 runs an UPDATE that must touch exactly one row.  MySQL reports zero
// affected rows when the values are unchanged, so only a missing row is an
// error there; callers only use exec1 with an updated_at column that always
// changes.
func (r *UserRepo) exec1(ctx context.Context, q string, args ...any) error {
	return execOne(ctx, r.DB, q, args...)
}

func execOne(ctx context.Context, db *sql.DB, q string, args ...any) error {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
