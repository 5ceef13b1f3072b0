package authority

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-portal/internal/database/dbtest"
	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/repository"
)

type fakeMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, email, token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[email] = token
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []model.AuthEvent
}

func (r *recorder) add(ev model.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []model.AuthEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AuthEventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func newAuthority(t *testing.T) (*Authority, *fakeMailer, *recorder) {
	t.Helper()
	m := &fakeMailer{}
	a := New(dbtest.New(t), Options{Secret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}, m, nil)
	rec := &recorder{}
	a.Subscribe(rec.add)
	return a, m, rec
}

func TestSignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	a, _, rec := newAuthority(t)

	s, err := a.SignUp(ctx, "Vendor@Example.com", "pw-123456", "Vera")
	require.NoError(t, err)
	assert.Equal(t, "vendor@example.com", s.Email)
	assert.NotEmpty(t, s.AccessToken)
	assert.NotEmpty(t, s.RefreshToken)

	again, err := a.SignUp(ctx, "vendor@example.com", "pw-123456", "Vera")
	require.NoError(t, err, "same credentials sign in the existing identity")
	assert.Equal(t, s.UserID, again.UserID)
	assert.NotEqual(t, s.ID, again.ID)

	_, err = a.SignUp(ctx, "vendor@example.com", "different", "")
	assert.ErrorIs(t, err, repository.ErrEmailExists)

	in, err := a.SignInWithPassword(ctx, "vendor@example.com", "pw-123456")
	require.NoError(t, err)
	assert.Equal(t, s.UserID, in.UserID)

	_, err = a.SignInWithPassword(ctx, "vendor@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.SignInWithPassword(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, []model.AuthEventType{model.EventSignedIn, model.EventSignedIn, model.EventSignedIn}, rec.types())
}

func TestGetSessionAndSignOut(t *testing.T) {
	ctx := context.Background()
	a, _, rec := newAuthority(t)
	s, err := a.SignUp(ctx, "a@example.com", "pw", "")
	require.NoError(t, err)

	got, err := a.GetSession(ctx, s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Empty(t, got.RefreshToken)

	require.NoError(t, a.SignOut(ctx, s.ID))
	_, err = a.GetSession(ctx, s.AccessToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	require.NoError(t, a.SignOut(ctx, ""), "signing out without a session is allowed")
	assert.Equal(t, []model.AuthEventType{model.EventSignedIn, model.EventSignedOut}, rec.types())
}

func TestRefreshRotates(t *testing.T) {
	ctx := context.Background()
	a, _, rec := newAuthority(t)
	s, err := a.SignUp(ctx, "r@example.com", "pw", "")
	require.NoError(t, err)

	next, err := a.Refresh(ctx, s.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, s.ID, next.ID)
	assert.NotEqual(t, s.RefreshToken, next.RefreshToken)

	_, err = a.Refresh(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked, "a used refresh token cannot be replayed")

	_, err = a.GetSession(ctx, next.AccessToken)
	require.NoError(t, err)
	assert.Contains(t, rec.types(), model.EventTokenRefreshed)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	a, mailer, rec := newAuthority(t)
	s, err := a.SignUp(ctx, "p@example.com", "old-pw", "")
	require.NoError(t, err)

	require.NoError(t, a.RequestPasswordReset(ctx, "unknown@example.com"))
	require.NoError(t, a.RequestPasswordReset(ctx, "p@example.com"))
	token := mailer.tokens["p@example.com"]
	require.NotEmpty(t, token)

	assert.ErrorIs(t, a.ResetPassword(ctx, "bogus", "x"), ErrInvalidResetToken)
	require.NoError(t, a.ResetPassword(ctx, token, "new-pw"))
	assert.ErrorIs(t, a.ResetPassword(ctx, token, "again"), ErrInvalidResetToken)

	_, err = a.GetSession(ctx, s.AccessToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
	_, err = a.SignInWithPassword(ctx, "p@example.com", "old-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.SignInWithPassword(ctx, "p@example.com", "new-pw")
	require.NoError(t, err)

	types := rec.types()
	assert.Contains(t, types, model.EventPasswordRecovery)
	assert.Contains(t, types, model.EventSignedOut)
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newAuthority(t)
	n := 0
	unsubscribe := a.Subscribe(func(model.AuthEvent) { n++ })
	_, err := a.SignUp(ctx, "u@example.com", "pw", "")
	require.NoError(t, err)
	unsubscribe()
	unsubscribe()
	_, err = a.SignInWithPassword(ctx, "u@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
