// Package session resolves who is signed in to the portal and what kind of
// actor they are.  A Resolver follows one portal session: it reacts to auth
// events, looks up the identity's role and then the vendor and staff rows
// that role needs.  Results of fetches started for an earlier identity are
// dropped by comparing a generation counter.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/vendor-portal/internal/datacache"
	"github.com/iliyamo/vendor-portal/internal/logger"
	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/repository"
)

// Portal is the login surface a resolver was created for.
type Portal string

const (
	PortalVendor Portal = "vendor"
	PortalStaff  Portal = "staff"
	// PortalAny is used for sessions restored from a bearer token, where the
	// login surface is no longer known.
	PortalAny Portal = ""
)

// admits reports whether an identity with role may sign in through p, and
// the message shown when it may not.
func (p Portal) admits(role model.Role) (string, bool) {
	switch p {
	case PortalVendor:
		switch role {
		case model.RoleVendor:
			return "", true
		case model.RoleStaff:
			return "This account belongs to a staff member. Please use the staff portal.", false
		default:
			return "Only vendors may use this portal.", false
		}
	case PortalStaff:
		switch role {
		case model.RoleStaff:
			return "", true
		case model.RoleVendor:
			return "This account belongs to a vendor. Please use the vendor portal.", false
		default:
			return "Only staff members may use this portal.", false
		}
	default:
		if role == model.RoleVendor || role == model.RoleStaff {
			return "", true
		}
		return "Only vendors and staff members may use this portal.", false
	}
}

// Config carries the collaborators shared by every resolver.
type Config struct {
	Authority Authority
	Profiles  ProfileStore
	Local     LocalStore // optional
	Logger    *slog.Logger

	// RetryBackoff is the pause before the single retry of a failed role
	// lookup.  Defaults to 200ms.
	RetryBackoff time.Duration
	// FetchTimeout bounds one background resolution.  Defaults to 10s.
	FetchTimeout time.Duration
	// IdleTTL is how long a Registry keeps a session no request has used.
	// Defaults to 30m.
	IdleTTL time.Duration
}

type Resolver struct {
	portal       Portal
	auth         Authority
	profiles     ProfileStore
	local        LocalStore
	log          *slog.Logger
	retryBackoff time.Duration
	fetchTimeout time.Duration
	cache        *datacache.Cache

	mu       sync.Mutex
	gen      uint64
	st       state
	notes    []Notification
	closers  []io.Closer
	onChange func(Snapshot)
	inflight int
	idle     chan struct{}
	detached bool
}

// NewResolver returns a resolver that has not seen any session yet; its
// snapshot reports the session as loading until the first event arrives.
func NewResolver(cfg Config, portal Portal) *Resolver {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Resolver{
		portal:       portal,
		auth:         cfg.Authority,
		profiles:     cfg.Profiles,
		local:        cfg.Local,
		log:          logger.Component(cfg.Logger, "session"),
		retryBackoff: cfg.RetryBackoff,
		fetchTimeout: cfg.FetchTimeout,
		cache:        datacache.New(),
		st:           state{phase: PhaseSignedOut, loading: true},
	}
}

func (r *Resolver) Portal() Portal { return r.portal }

// Cache is the resolver's data cache.  It is cleared on sign-out.
func (r *Resolver) Cache() *datacache.Cache { return r.cache }

// Snapshot returns a copy of the current state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.snapshot()
}

// SessionID is the held portal session id, or "".
func (r *Resolver) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st.session == nil {
		return ""
	}
	return r.st.session.ID
}

// OnChange installs fn to be called with a snapshot after every state
// change.  fn runs outside the resolver lock and may be called from
// background goroutines.
func (r *Resolver) OnChange(fn func(Snapshot)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Track closes c when the session ends or the identity changes.  Without a
// session c is closed immediately.
func (r *Resolver) Track(c io.Closer) {
	r.mu.Lock()
	if r.st.session == nil || r.detached {
		r.mu.Unlock()
		_ = c.Close()
		return
	}
	r.closers = append(r.closers, c)
	r.mu.Unlock()
}

// WaitSettled blocks until no background resolution is running.
func (r *Resolver) WaitSettled(ctx context.Context) error {
	r.mu.Lock()
	if r.inflight == 0 {
		r.mu.Unlock()
		return nil
	}
	idle := r.idle
	r.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// unlockAndPublish releases r.mu and hands a snapshot to the observer.
func (r *Resolver) unlockAndPublish() {
	snap, fn := r.st.snapshot(), r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// settle applies fn when gen is still current.  It reports whether it did.
func (r *Resolver) settle(gen uint64, fn func(st *state)) bool {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return false
	}
	fn(&r.st)
	r.unlockAndPublish()
	return true
}

// HandleAuthEvent applies a push from the identity authority.  A session
// with the held identity and access token is ignored; a new token for the
// held identity only replaces the session; any other session starts a new
// resolution.  Sign-out always applies.
func (r *Resolver) HandleAuthEvent(ev model.AuthEvent) {
	switch {
	case ev.Type == model.EventPasswordRecovery:
		return
	case ev.Type == model.EventSignedOut || ev.Session == nil:
		r.signedOut(context.Background())
		return
	}

	r.mu.Lock()
	if cur := r.st.session; cur != nil && cur.UserID == ev.Session.UserID {
		if cur.AccessToken == ev.Session.AccessToken {
			r.mu.Unlock()
			return
		}
		c := *ev.Session
		r.st.session = &c
		r.unlockAndPublish()
		return
	}
	r.begin(ev.Session, model.RoleUnknown)
}

// Restore pulls the session behind accessToken and applies it as the
// initial session.  An unusable token leaves the resolver signed out.
func (r *Resolver) Restore(ctx context.Context, accessToken string) error {
	s, err := r.auth.GetSession(ctx, accessToken)
	if err != nil {
		r.HandleAuthEvent(model.AuthEvent{Type: model.EventInitialSession})
		return err
	}
	r.HandleAuthEvent(model.AuthEvent{Type: model.EventInitialSession, SessionID: s.ID, Session: s})
	return nil
}

// begin switches to a new identity.  It must be called with r.mu held and
// returns with it released.
func (r *Resolver) begin(s *model.Session, role model.Role) {
	r.gen++
	gen := r.gen
	stale := r.closers
	r.closers = nil

	sess := *s
	id := model.Identity{ID: s.UserID, Email: s.Email}
	r.st = state{
		phase:         phaseFor(role),
		session:       &sess,
		identity:      &id,
		role:          role,
		loadingRole:   role == model.RoleUnknown,
		loadingVendor: role == model.RoleVendor,
		loadingStaff:  role == model.RoleVendor || role == model.RoleStaff,
	}
	if r.inflight == 0 {
		r.idle = make(chan struct{})
	}
	r.inflight++
	r.unlockAndPublish()

	closeAll(stale)
	r.cache.ClearAll()
	go func() {
		defer r.done()
		r.resolve(gen, id, role)
	}()
}

func (r *Resolver) done() {
	r.mu.Lock()
	r.inflight--
	if r.inflight == 0 {
		close(r.idle)
	}
	r.mu.Unlock()
}

// resolve looks up the role when it is not known yet and then fetches the
// profiles the role needs.
func (r *Resolver) resolve(gen uint64, id model.Identity, role model.Role) {
	ctx, cancel := context.WithTimeout(context.Background(), r.fetchTimeout)
	defer cancel()

	warmRole := model.RoleUnknown
	if role == model.RoleUnknown && r.local != nil {
		rec, ok, err := r.local.Load(ctx, id.ID)
		if err != nil {
			r.log.Warn("local store load failed", "user_id", id.ID, "error", err)
		} else if ok && rec.Role != model.RoleUnknown {
			if r.settle(gen, func(st *state) {
				st.role = rec.Role
				st.phase = phaseFor(rec.Role)
				st.vendor = rec.Vendor
				st.staff = rec.Staff
				st.loadingRole = false
			}) {
				warmRole = rec.Role
			}
		}
	}

	if role == model.RoleUnknown {
		got, err := r.lookupRole(ctx, id.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			r.forceSignOut(ctx, gen, id)
			return
		case err != nil:
			r.log.Error("role lookup failed; keeping session", "user_id", id.ID, "error", err)
			r.settle(gen, func(st *state) { st.loadingRole = false })
			return
		}
		role = got
		changed := role != warmRole
		if !r.settle(gen, func(st *state) {
			st.role = role
			st.phase = phaseFor(role)
			st.loadingRole = false
			if changed {
				st.vendor, st.staff = nil, nil
				st.loadingVendor = role == model.RoleVendor
				st.loadingStaff = role == model.RoleVendor || role == model.RoleStaff
			}
		}) {
			return
		}
	}

	if role != model.RoleVendor && role != model.RoleStaff {
		r.persist(ctx, gen)
		return
	}
	r.fetchProfiles(ctx, gen, id.ID, role)
	r.persist(ctx, gen)
}

// fetchProfiles loads the staff row, and for vendors also the vendor row,
// in parallel.  Owners have a staff row with role "owner" too.
func (r *Resolver) fetchProfiles(ctx context.Context, gen uint64, userID string, role model.Role) {
	var (
		g      errgroup.Group
		vendor *model.VendorProfile
		staff  *model.StaffProfile
		vErr   error
		sErr   error
	)
	if role == model.RoleVendor {
		g.Go(func() error {
			vendor, vErr = r.profiles.GetVendorByOwner(ctx, userID)
			return nil
		})
	}
	g.Go(func() error {
		staff, sErr = r.profiles.GetStaffByUser(ctx, userID)
		return nil
	})
	_ = g.Wait()

	if vErr != nil && !errors.Is(vErr, repository.ErrNotFound) {
		r.log.Error("vendor profile fetch failed", "user_id", userID, "error", vErr)
	}
	if sErr != nil && !errors.Is(sErr, repository.ErrNotFound) {
		r.log.Error("staff profile fetch failed", "user_id", userID, "error", sErr)
	}
	applied := r.settle(gen, func(st *state) {
		if role == model.RoleVendor {
			st.loadingVendor = false
			applyProfile(&st.vendor, vendor, vErr)
		}
		st.loadingStaff = false
		applyProfile(&st.staff, staff, sErr)
	})
	if !applied {
		r.log.Debug("discarded stale profile fetch", "user_id", userID)
	}
}

// applyProfile stores a fetched row.  Not-found clears the held row; any
// other error keeps it.
func applyProfile[T any](dst **T, got *T, err error) {
	switch {
	case err == nil:
		*dst = got
	case errors.Is(err, repository.ErrNotFound):
		*dst = nil
	}
}

// lookupRole reads users.user_type.  A failure other than not-found is
// retried once after a short pause.
func (r *Resolver) lookupRole(ctx context.Context, userID string) (model.Role, error) {
	role, err := r.profiles.GetUserType(ctx, userID)
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		return role, err
	}
	r.log.Warn("role lookup failed; retrying", "user_id", userID, "error", err)
	select {
	case <-ctx.Done():
		return model.RoleUnknown, ctx.Err()
	case <-time.After(r.retryBackoff):
	}
	return r.profiles.GetUserType(ctx, userID)
}

// forceSignOut ends a session whose identity has no users row.
func (r *Resolver) forceSignOut(ctx context.Context, gen uint64, id model.Identity) {
	r.mu.Lock()
	if gen != r.gen || r.st.session == nil {
		r.mu.Unlock()
		return
	}
	sid := r.st.session.ID
	r.mu.Unlock()

	r.log.Warn("identity has no profile row; signing out", "user_id", id.ID, "session_id", sid)
	if err := r.auth.SignOut(ctx, sid); err != nil {
		r.log.Error("remote sign-out failed", "session_id", sid, "error", err)
	}
	if !r.signedOutAt(ctx, gen) {
		r.log.Debug("discarded stale forced sign-out", "user_id", id.ID)
		return
	}
	r.notify(LevelError, "Account unavailable", "No profile was found for this account. Please sign in again.")
}

// persist writes the resolved role and profiles to the local store.
func (r *Resolver) persist(ctx context.Context, gen uint64) {
	if r.local == nil {
		return
	}
	r.mu.Lock()
	if gen != r.gen || r.st.identity == nil || r.st.role == model.RoleUnknown {
		r.mu.Unlock()
		return
	}
	snap := r.st.snapshot()
	r.mu.Unlock()

	rec := localRecord(snap)
	if err := r.local.Save(ctx, snap.Identity.ID, rec); err != nil {
		r.log.Warn("local store save failed", "user_id", snap.Identity.ID, "error", err)
	}
}

// signedOut resets every piece of identity state, clears the data cache,
// purges the local store and closes tracked subscriptions.
func (r *Resolver) signedOut(ctx context.Context) {
	r.mu.Lock()
	r.resetLocked(ctx)
}

// signedOutAt is signedOut for generation gen only.  It reports false and
// leaves the state alone when a newer identity has arrived since.
func (r *Resolver) signedOutAt(ctx context.Context, gen uint64) bool {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return false
	}
	r.resetLocked(ctx)
	return true
}

// resetLocked must be called with r.mu held and returns with it released.
func (r *Resolver) resetLocked(ctx context.Context) {
	var identityID string
	if r.st.identity != nil {
		identityID = r.st.identity.ID
	}
	r.gen++
	stale := r.closers
	r.closers = nil
	r.st = state{phase: PhaseSignedOut}
	r.unlockAndPublish()

	closeAll(stale)
	r.cache.ClearAll()
	if identityID != "" && r.local != nil {
		if err := r.local.Purge(ctx, identityID); err != nil {
			r.log.Warn("local store purge failed", "user_id", identityID, "error", err)
		}
	}
}

// SignIn authenticates and admits the identity only when its role matches
// the portal.  The outcome is reported through Notifications.
func (r *Resolver) SignIn(ctx context.Context, email, password string) bool {
	s, err := r.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		r.log.Info("sign-in rejected", "email", strings.ToLower(strings.TrimSpace(email)), "error", err)
		r.notify(LevelError, "Sign in failed", "Invalid email or password.")
		return false
	}

	role, err := r.lookupRole(ctx, s.UserID)
	if err != nil {
		r.revoke(ctx, s.ID)
		if errors.Is(err, repository.ErrNotFound) {
			r.notify(LevelError, "Sign in failed", "No profile was found for this account.")
		} else {
			r.log.Error("role lookup during sign-in failed", "user_id", s.UserID, "error", err)
			r.notify(LevelError, "Sign in failed", "We could not verify your account. Please try again.")
		}
		return false
	}
	if msg, ok := r.portal.admits(role); !ok {
		r.log.Info("cross-portal sign-in rejected", "user_id", s.UserID, "role", string(role), "portal", string(r.portal))
		r.revoke(ctx, s.ID)
		r.notify(LevelError, "Access denied", msg)
		return false
	}

	r.mu.Lock()
	r.begin(s, role)
	r.notify(LevelSuccess, "Welcome back", "You are signed in.")
	return true
}

// SignUp creates the identity, records its role and provisions its rows.
// requestedRole is "vendor" or "vendor_staff".  Every insert is preceded by
// an existence check, so repeating a sign-up creates nothing new.
func (r *Resolver) SignUp(ctx context.Context, email, password string, meta model.SignUpMetadata, requestedRole string) bool {
	var role model.Role
	switch strings.ToLower(strings.TrimSpace(requestedRole)) {
	case "vendor":
		role = model.RoleVendor
	case "vendor_staff", "staff":
		role = model.RoleStaff
	default:
		r.notify(LevelError, "Sign up failed", "Choose whether you are a vendor or a staff member.")
		return false
	}
	if role == model.RoleStaff && strings.TrimSpace(meta.VendorID) == "" {
		r.notify(LevelError, "Sign up failed", "Staff members need the id of the vendor they are joining.")
		return false
	}

	s, err := r.auth.SignUp(ctx, email, password, meta.FullName)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			r.notify(LevelError, "Sign up failed", "An account with this email already exists.")
		} else {
			r.log.Error("sign-up failed", "error", err)
			r.notify(LevelError, "Sign up failed", "We could not create your account. Please try again.")
		}
		return false
	}

	if err := r.provision(ctx, s, role, meta); err != nil {
		r.log.Error("provisioning after sign-up failed", "user_id", s.UserID, "error", err)
		r.revoke(ctx, s.ID)
		r.notify(LevelError, "Sign up incomplete", "Your account was created but setup did not finish. Please sign up again.")
		return false
	}

	r.mu.Lock()
	r.begin(s, role)
	r.notify(LevelSuccess, "Account created", "Welcome! Let's finish setting up your profile.")
	return true
}

func (r *Resolver) provision(ctx context.Context, s *model.Session, role model.Role, meta model.SignUpMetadata) error {
	if err := r.profiles.SetUserType(ctx, s.UserID, role); err != nil {
		return fmt.Errorf("set user type: %w", err)
	}

	vendorID := strings.TrimSpace(meta.VendorID)
	staff := &model.StaffProfile{
		UserID:           s.UserID,
		DisplayName:      strings.TrimSpace(meta.FullName),
		Email:            s.Email,
		InvitationStatus: model.InvitationPending,
	}
	if role == model.RoleVendor {
		v, err := r.profiles.GetVendorByOwner(ctx, s.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			v = &model.VendorProfile{
				OwnerID:      s.UserID,
				BusinessName: strings.TrimSpace(meta.BusinessName),
				Category:     strings.TrimSpace(meta.Category),
				ContactEmail: s.Email,
				Phone:        strings.TrimSpace(meta.Phone),
			}
			err = r.profiles.CreateVendor(ctx, v)
			if errors.Is(err, repository.ErrConflict) {
				v, err = r.profiles.GetVendorByOwner(ctx, s.UserID)
			}
		}
		if err != nil {
			return fmt.Errorf("vendor row: %w", err)
		}
		vendorID = v.ID
		staff.Role = model.StaffRoleOwner
		staff.IsActive = true
		staff.InvitationStatus = model.InvitationAccepted
	}
	staff.VendorID = vendorID

	_, err := r.profiles.GetStaffByUser(ctx, s.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		err = r.profiles.CreateStaff(ctx, staff)
		if errors.Is(err, repository.ErrConflict) {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("staff row: %w", err)
	}
	return nil
}

func (r *Resolver) revoke(ctx context.Context, sessionID string) {
	if err := r.auth.SignOut(ctx, sessionID); err != nil {
		r.log.Error("remote sign-out failed", "session_id", sessionID, "error", err)
	}
}

// SignOut purges local caches, ends the remote session and resets all
// state.  It returns the login path to navigate to and works without a
// session.
func (r *Resolver) SignOut(ctx context.Context) string {
	r.mu.Lock()
	var sid string
	if r.st.session != nil {
		sid = r.st.session.ID
	}
	target := PathLogin
	if r.portal == PortalStaff || (r.portal == PortalAny && r.st.role == model.RoleStaff) {
		target = PathStaffLogin
	}
	r.mu.Unlock()

	r.signedOut(ctx)
	if sid != "" {
		r.revoke(ctx, sid)
	}
	return target
}

// UpdateVendor writes the given fields and then re-reads the vendor row
// rather than merging locally.
func (r *Resolver) UpdateVendor(ctx context.Context, vendorID string, fields model.VendorUpdate) error {
	if err := r.profiles.UpdateVendor(ctx, vendorID, fields); err != nil {
		r.notify(LevelError, "Update failed", "Your business profile could not be saved.")
		return fmt.Errorf("update vendor: %w", err)
	}
	r.cache.Invalidate(datacache.VendorProfile, "")
	r.RefreshVendorProfile(ctx)
	return nil
}

// UpdateStaff is UpdateVendor for the staff row.
func (r *Resolver) UpdateStaff(ctx context.Context, staffID string, fields model.StaffUpdate) error {
	if err := r.profiles.UpdateStaff(ctx, staffID, fields); err != nil {
		r.notify(LevelError, "Update failed", "Your staff profile could not be saved.")
		return fmt.Errorf("update staff: %w", err)
	}
	r.cache.Invalidate(datacache.Staff, "")
	r.RefreshStaffProfile(ctx)
	return nil
}

// RefreshVendorProfile re-reads the vendor row of the current identity.
// Without an identity it does nothing.
func (r *Resolver) RefreshVendorProfile(ctx context.Context) {
	gen, userID, ok := r.beginRefresh(func(st *state) { st.loadingVendor = true })
	if !ok {
		return
	}
	v, err := r.profiles.GetVendorByOwner(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		r.log.Error("vendor profile refresh failed", "user_id", userID, "error", err)
	}
	r.settle(gen, func(st *state) {
		st.loadingVendor = false
		applyProfile(&st.vendor, v, err)
	})
	r.persist(ctx, gen)
}

// RefreshStaffProfile re-reads the staff row of the current identity.
func (r *Resolver) RefreshStaffProfile(ctx context.Context) {
	gen, userID, ok := r.beginRefresh(func(st *state) { st.loadingStaff = true })
	if !ok {
		return
	}
	s, err := r.profiles.GetStaffByUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		r.log.Error("staff profile refresh failed", "user_id", userID, "error", err)
	}
	r.settle(gen, func(st *state) {
		st.loadingStaff = false
		applyProfile(&st.staff, s, err)
	})
	r.persist(ctx, gen)
}

func (r *Resolver) beginRefresh(mark func(st *state)) (uint64, string, bool) {
	r.mu.Lock()
	if r.st.identity == nil {
		r.mu.Unlock()
		return 0, "", false
	}
	gen, userID := r.gen, r.st.identity.ID
	mark(&r.st)
	r.unlockAndPublish()
	return gen, userID, true
}

// detach closes tracked subscriptions and drops cached data without ending
// the remote session.  Pending fetches are discarded and later Track calls
// close at once.
func (r *Resolver) detach() {
	r.mu.Lock()
	r.gen++
	r.detached = true
	stale := r.closers
	r.closers = nil
	r.mu.Unlock()
	closeAll(stale)
	r.cache.ClearAll()
}

// expiresAt is the expiry of the held access token, zero without one.
func (r *Resolver) expiresAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st.session == nil {
		return time.Time{}
	}
	return r.st.session.ExpiresAt
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}
