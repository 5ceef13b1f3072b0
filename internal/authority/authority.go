// Package authority issues and verifies portal sessions.  It plays the part
// of the hosted identity service: password sign-in and sign-up, refresh
// token rotation, password reset, and a push channel of auth events.
package authority

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/repository"
	"github.com/iliyamo/vendor-portal/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionRevoked     = errors.New("session revoked or expired")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// Mailer delivers password reset tokens.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// Options configures token lifetimes and hashing cost.
type Options struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	ResetTTL       time.Duration
}

type Authority struct {
	users  *repository.UserRepo
	tokens *repository.TokenRepo
	opts   Options
	mailer Mailer
	log    *slog.Logger

	mu     sync.RWMutex
	subs   map[uint64]func(model.AuthEvent)
	nextID uint64
}

func New(db *sql.DB, opts Options, mailer Mailer, log *slog.Logger) *Authority {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Authority{
		users:  repository.NewUserRepo(db),
		tokens: repository.NewTokenRepo(db),
		opts:   opts,
		mailer: mailer,
		log:    log.With(slog.String("component", "authority")),
		subs:   map[uint64]func(model.AuthEvent){},
	}
}

// Subscribe registers fn for every auth event and returns a function that
// removes it.  fn runs on the goroutine that caused the event.
func (a *Authority) Subscribe(fn func(model.AuthEvent)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			a.mu.Unlock()
		})
	}
}

func (a *Authority) emit(ev model.AuthEvent) {
	a.mu.RLock()
	fns := make([]func(model.AuthEvent), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// SignInWithPassword checks the credentials and opens a new session.
func (a *Authority) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	u, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.VerifyPassword("", password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if utils.NeedsRehash(u.PasswordHash, a.opts.BcryptCost) {
		if err := a.users.UpdatePassword(ctx, u.ID, password, a.opts.BcryptCost); err != nil {
			a.log.Warn("rehash password", slog.String("user_id", u.ID), slog.Any("error", err))
		}
	}
	return a.open(ctx, u)
}

// SignUp creates an identity and signs it in.  Repeating a sign-up with the
// same email and password signs in the existing identity; a different
// password is repository.ErrEmailExists.
func (a *Authority) SignUp(ctx context.Context, email, password, fullName string) (*model.Session, error) {
	u, err := a.users.Create(ctx, email, password, fullName, a.opts.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		existing, gerr := a.users.GetByEmail(ctx, email)
		if gerr != nil {
			return nil, fmt.Errorf("lookup user: %w", gerr)
		}
		if !utils.VerifyPassword(existing.PasswordHash, password) {
			return nil, repository.ErrEmailExists
		}
		u = existing
	} else if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return a.open(ctx, u)
}

func (a *Authority) open(ctx context.Context, u model.User) (*model.Session, error) {
	s, err := a.issue(ctx, uuid.NewString(), u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	a.log.Info("signed in", slog.String("user_id", u.ID), slog.String("session_id", s.ID))
	a.emit(model.AuthEvent{Type: model.EventSignedIn, SessionID: s.ID, Session: s})
	return s, nil
}

func (a *Authority) issue(ctx context.Context, sessionID, userID, email string) (*model.Session, error) {
	at, err := utils.NewAccessToken(a.opts.Secret, userID, sessionID, email, a.opts.AccessTTLMin)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	rt, err := utils.NewRefreshToken(a.opts.RefreshTTLDays)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := a.tokens.StoreRefresh(ctx, sessionID, userID, utils.HashToken(rt.Raw), rt.Exp); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &model.Session{
		ID:           sessionID,
		UserID:       userID,
		Email:        email,
		AccessToken:  at.Token,
		RefreshToken: rt.Raw,
		ExpiresAt:    at.Exp,
	}, nil
}

// SignOut revokes every token of the session.  An empty session id is a
// no-op so callers without a session can still sign out.
func (a *Authority) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := a.tokens.RevokeSession(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	a.log.Info("signed out", slog.String("session_id", sessionID))
	a.emit(model.AuthEvent{Type: model.EventSignedOut, SessionID: sessionID})
	return nil
}

// GetSession verifies an access token and checks that its session was not
// revoked.  The returned session carries no refresh token.
func (a *Authority) GetSession(ctx context.Context, accessToken string) (*model.Session, error) {
	claims, err := utils.ParseAccessToken(a.opts.Secret, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, err
	}
	active, err := a.tokens.SessionActive(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !active {
		return nil, ErrSessionRevoked
	}
	s := &model.Session{
		ID:          claims.SessionID,
		UserID:      claims.Subject,
		Email:       claims.Email,
		AccessToken: accessToken,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// access/refresh pair is issued for the same session.
func (a *Authority) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	hash := utils.HashToken(strings.TrimSpace(refreshToken))
	sessionID, userID, err := a.tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("validate refresh token: %w", err)
	}
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := a.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	s, err := a.issue(ctx, sessionID, u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	a.emit(model.AuthEvent{Type: model.EventTokenRefreshed, SessionID: sessionID, Session: s})
	return s, nil
}

// RequestPasswordReset stores a single-use reset token and hands it to the
// mailer.  Unknown emails succeed silently.
func (a *Authority) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	raw, err := utils.RandomHex(32)
	if err != nil {
		return err
	}
	exp := time.Now().UTC().Add(a.opts.ResetTTL)
	if err := a.tokens.StoreReset(ctx, u.ID, utils.HashToken(raw), exp); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if a.mailer == nil {
		a.log.Warn("no mailer configured; reset token not delivered", slog.String("user_id", u.ID))
		return nil
	}
	if err := a.mailer.SendPasswordReset(ctx, u.Email, raw, exp); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password and signs the
// identity out everywhere.
func (a *Authority) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := a.tokens.ConsumeReset(ctx, utils.HashToken(strings.TrimSpace(token)))
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if err := a.users.UpdatePassword(ctx, userID, newPassword, a.opts.BcryptCost); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	sessions, err := a.tokens.ActiveSessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if err := a.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	a.log.Info("password reset", slog.String("user_id", userID), slog.Int("sessions", len(sessions)))
	a.emit(model.AuthEvent{Type: model.EventPasswordRecovery})
	for _, sid := range sessions {
		a.emit(model.AuthEvent{Type: model.EventSignedOut, SessionID: sid})
	}
	return nil
}
