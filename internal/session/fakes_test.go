package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vendor-portal/internal/localstore"
	"github.com/iliyamo/vendor-portal/internal/model"
	"github.com/iliyamo/vendor-portal/internal/repository"
)

var errInvalid = errors.New("invalid email or password")

type fakeAuth struct {
	mu       sync.Mutex
	seq      int
	users    map[string]model.Identity // email -> identity
	pass     map[string]string         // email -> password
	sessions map[string]*model.Session // access token -> session
	revoked  map[string]bool           // session id
	signOuts []string
	subs     map[int]func(model.AuthEvent)

	// when set, SignOut reports on entered and waits for gate
	gate    chan struct{}
	entered chan string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		users:    map[string]model.Identity{},
		pass:     map[string]string{},
		sessions: map[string]*model.Session{},
		revoked:  map[string]bool{},
		subs:     map[int]func(model.AuthEvent){},
	}
}

func (a *fakeAuth) addUser(id, email, password string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[email] = model.Identity{ID: id, Email: email}
	a.pass[email] = password
}

// session mints a session for id without emitting anything.
func (a *fakeAuth) session(id string) *model.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mintLocked(model.Identity{ID: id, Email: id + "@example.com"})
}

func (a *fakeAuth) mintLocked(who model.Identity) *model.Session {
	a.seq++
	s := &model.Session{
		ID:          fmt.Sprintf("sess-%d", a.seq),
		UserID:      who.ID,
		Email:       who.Email,
		AccessToken: fmt.Sprintf("tok-%d", a.seq),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	a.sessions[s.AccessToken] = s
	return s
}

func (a *fakeAuth) emit(ev model.AuthEvent) {
	a.mu.Lock()
	fns := make([]func(model.AuthEvent), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (a *fakeAuth) SignInWithPassword(_ context.Context, email, password string) (*model.Session, error) {
	a.mu.Lock()
	who, ok := a.users[email]
	if !ok || a.pass[email] != password {
		a.mu.Unlock()
		return nil, errInvalid
	}
	s := a.mintLocked(who)
	a.mu.Unlock()
	a.emit(model.AuthEvent{Type: model.EventSignedIn, SessionID: s.ID, Session: s})
	return s, nil
}

func (a *fakeAuth) SignUp(_ context.Context, email, password, _ string) (*model.Session, error) {
	a.mu.Lock()
	who, ok := a.users[email]
	if ok && a.pass[email] != password {
		a.mu.Unlock()
		return nil, repository.ErrEmailExists
	}
	if !ok {
		who = model.Identity{ID: "user-" + email, Email: email}
		a.users[email] = who
		a.pass[email] = password
	}
	s := a.mintLocked(who)
	a.mu.Unlock()
	a.emit(model.AuthEvent{Type: model.EventSignedIn, SessionID: s.ID, Session: s})
	return s, nil
}

func (a *fakeAuth) SignOut(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	a.mu.Lock()
	gate, entered := a.gate, a.entered
	a.mu.Unlock()
	if gate != nil {
		entered <- sessionID
		<-gate
	}
	a.mu.Lock()
	a.revoked[sessionID] = true
	a.signOuts = append(a.signOuts, sessionID)
	a.mu.Unlock()
	a.emit(model.AuthEvent{Type: model.EventSignedOut, SessionID: sessionID})
	return nil
}

func (a *fakeAuth) GetSession(_ context.Context, token string) (*model.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[token]
	if !ok || a.revoked[s.ID] {
		return nil, errors.New("session revoked")
	}
	c := *s
	return &c, nil
}

func (a *fakeAuth) Subscribe(fn func(model.AuthEvent)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	id := a.seq
	a.subs[id] = fn
	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

func (a *fakeAuth) signedOut() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.signOuts...)
}

type fakeProfiles struct {
	mu        sync.Mutex
	roles     map[string]model.Role
	roleErrs  []error
	vendors   map[string]*model.VendorProfile // by owner
	staff     map[string]*model.StaffProfile  // by user
	vendorErr error
	staffErr  error
	block     map[string]chan struct{} // user id -> released before the role lookup answers

	roleCalls, vendorCalls, staffCalls atomic.Int32
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		roles:   map[string]model.Role{},
		vendors: map[string]*model.VendorProfile{},
		staff:   map[string]*model.StaffProfile{},
		block:   map[string]chan struct{}{},
	}
}

func (p *fakeProfiles) GetUserType(ctx context.Context, userID string) (model.Role, error) {
	p.roleCalls.Add(1)
	p.mu.Lock()
	ch := p.block[userID]
	var err error
	if len(p.roleErrs) > 0 {
		err, p.roleErrs = p.roleErrs[0], p.roleErrs[1:]
	}
	role, ok := p.roles[userID]
	p.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return model.RoleUnknown, ctx.Err()
		}
	}
	if err != nil {
		return model.RoleUnknown, err
	}
	if !ok {
		return model.RoleUnknown, repository.ErrNotFound
	}
	return role, nil
}

func (p *fakeProfiles) SetUserType(_ context.Context, userID string, role model.Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[userID] = role
	return nil
}

func (p *fakeProfiles) GetVendorByOwner(_ context.Context, ownerID string) (*model.VendorProfile, error) {
	p.vendorCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.vendorErr != nil {
		return nil, p.vendorErr
	}
	v, ok := p.vendors[ownerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *v
	return &c, nil
}

func (p *fakeProfiles) CreateVendor(_ context.Context, v *model.VendorProfile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.vendors[v.OwnerID]; ok {
		return repository.ErrConflict
	}
	if v.ID == "" {
		v.ID = "vendor-" + v.OwnerID
	}
	c := *v
	p.vendors[v.OwnerID] = &c
	return nil
}

func (p *fakeProfiles) UpdateVendor(_ context.Context, vendorID string, u model.VendorUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range p.vendors {
		if v.ID != vendorID {
			continue
		}
		if u.IsActive != nil {
			v.IsActive = *u.IsActive
		}
		if u.BusinessName != nil {
			v.BusinessName = *u.BusinessName
		}
		return nil
	}
	return repository.ErrNotFound
}

func (p *fakeProfiles) GetStaffByUser(_ context.Context, userID string) (*model.StaffProfile, error) {
	p.staffCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.staffErr != nil {
		return nil, p.staffErr
	}
	s, ok := p.staff[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (p *fakeProfiles) CreateStaff(_ context.Context, s *model.StaffProfile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.staff[s.UserID]; ok {
		return repository.ErrConflict
	}
	if s.ID == "" {
		s.ID = "staff-" + s.UserID
	}
	c := *s
	p.staff[s.UserID] = &c
	return nil
}

func (p *fakeProfiles) UpdateStaff(_ context.Context, staffID string, u model.StaffUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.staff {
		if s.ID != staffID {
			continue
		}
		if u.DisplayName != nil {
			s.DisplayName = *u.DisplayName
		}
		if u.Role != nil {
			s.Role = *u.Role
		}
		if u.IsActive != nil {
			s.IsActive = *u.IsActive
		}
		if u.InvitationStatus != nil {
			s.InvitationStatus = *u.InvitationStatus
		}
		return nil
	}
	return repository.ErrNotFound
}

func (p *fakeProfiles) setVendor(ownerID string, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[ownerID] = model.RoleVendor
	p.vendors[ownerID] = &model.VendorProfile{ID: "vendor-" + ownerID, OwnerID: ownerID, IsActive: active}
	p.staff[ownerID] = &model.StaffProfile{ID: "staff-" + ownerID, VendorID: "vendor-" + ownerID, UserID: ownerID,
		DisplayName: "Owner", Role: model.StaffRoleOwner, IsActive: true, InvitationStatus: model.InvitationAccepted}
}

func (p *fakeProfiles) setStaff(userID string, status model.InvitationStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[userID] = model.RoleStaff
	p.staff[userID] = &model.StaffProfile{ID: "staff-" + userID, VendorID: "vendor-x", UserID: userID,
		DisplayName: "Sam", Role: "coordinator", IsActive: true, InvitationStatus: status}
}

type env struct {
	auth     *fakeAuth
	profiles *fakeProfiles
	local    *localstore.Memory
	cfg      Config
}

func newEnv() *env {
	e := &env{auth: newFakeAuth(), profiles: newFakeProfiles(), local: localstore.NewMemory(time.Hour)}
	e.cfg = Config{
		Authority:    e.auth,
		Profiles:     e.profiles,
		Local:        e.local,
		RetryBackoff: time.Millisecond,
		FetchTimeout: 2 * time.Second,
	}
	return e
}

func settled(t *testing.T, r *Resolver) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.WaitSettled(ctx))
}

func signedIn(s *model.Session) model.AuthEvent {
	return model.AuthEvent{Type: model.EventSignedIn, SessionID: s.ID, Session: s}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
