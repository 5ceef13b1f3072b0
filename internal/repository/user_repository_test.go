package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-portal/internal/database/dbtest"
	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/utils"
)

const testCost = 4 // bcrypt.MinCost

func TestUserRepoCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(dbtest.New(t))

	u, err := repo.Create(ctx, "  Ana@Example.COM ", "secret123", "Ana", testCost)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, string(model.RoleCustomer), u.UserType)

	got, err := repo.GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, utils.VerifyPassword(got.PasswordHash, "secret123"))

	_, err = repo.Create(ctx, "ana@example.com", "other", "", testCost)
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepoUserType(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(dbtest.New(t))

	_, err := repo.GetUserType(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := repo.Create(ctx, "v@example.com", "pw", "", testCost)
	require.NoError(t, err)

	role, err := repo.GetUserType(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, role)

	require.NoError(t, repo.SetUserType(ctx, u.ID, model.RoleVendor))
	role, err = repo.GetUserType(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleVendor, role)

	assert.ErrorIs(t, repo.SetUserType(ctx, "nobody", model.RoleStaff), ErrNotFound)
}

func TestUserRepoUpdatePassword(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(dbtest.New(t))
	u, err := repo.Create(ctx, "p@example.com", "old", "", testCost)
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "new", testCost))
	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(got.PasswordHash, "new"))
	assert.False(t, utils.VerifyPassword(got.PasswordHash, "old"))
}

func TestTokenRepoRefreshLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepo(dbtest.New(t))

	require.NoError(t, repo.StoreRefresh(ctx, "s1", "u1", "h1", time.Now().Add(time.Hour)))
	require.NoError(t, repo.StoreRefresh(ctx, "s1", "u1", "h2", time.Now().Add(-time.Minute)))

	sid, uid, err := repo.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sid)
	assert.Equal(t, "u1", uid)

	_, _, err = repo.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, ErrNotFound, "expired")

	active, err := repo.SessionActive(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, repo.RevokeSession(ctx, "s1"))
	_, _, err = repo.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	active, err = repo.SessionActive(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestTokenRepoRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepo(dbtest.New(t))
	exp := time.Now().Add(time.Hour)
	require.NoError(t, repo.StoreRefresh(ctx, "s1", "u1", "a", exp))
	require.NoError(t, repo.StoreRefresh(ctx, "s2", "u1", "b", exp))
	require.NoError(t, repo.StoreRefresh(ctx, "s3", "u2", "c", exp))

	require.NoError(t, repo.RevokeAllForUser(ctx, "u1"))

	for _, sid := range []string{"s1", "s2"} {
		active, err := repo.SessionActive(ctx, sid)
		require.NoError(t, err)
		assert.False(t, active, sid)
	}
	active, err := repo.SessionActive(ctx, "s3")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestTokenRepoResetIsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepo(dbtest.New(t))

	require.NoError(t, repo.StoreReset(ctx, "u1", "r1", time.Now().Add(time.Hour)))
	require.NoError(t, repo.StoreReset(ctx, "u1", "r2", time.Now().Add(-time.Hour)))

	uid, err := repo.ConsumeReset(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	_, err = repo.ConsumeReset(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.ConsumeReset(ctx, "r2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.ConsumeReset(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepoActiveSessions(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepo(dbtest.New(t))
	exp := time.Now().Add(time.Hour)
	require.NoError(t, repo.StoreRefresh(ctx, "s1", "u1", "a", exp))
	require.NoError(t, repo.StoreRefresh(ctx, "s1", "u1", "b", exp))
	require.NoError(t, repo.StoreRefresh(ctx, "s2", "u1", "c", time.Now().Add(-time.Hour)))
	require.NoError(t, repo.StoreRefresh(ctx, "s3", "u1", "d", exp))
	require.NoError(t, repo.RevokeSession(ctx, "s3"))

	got, err := repo.ActiveSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, got)
}
