package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/vendor-portal/internal/logger"
	"github.com/iliyamo/vendor-portal/internal/model"
)

// Registry holds one resolver per portal session id and routes the
// authority's pushes to them.  Resolvers leave the registry on sign-out,
// when their access token has expired, or after IdleTTL without a request.
type Registry struct {
	cfg Config
	log *slog.Logger

	mu          sync.RWMutex
	resolvers   map[string]*Resolver
	seen        map[string]time.Time
	unsubscribe func()

	stop      chan struct{}
	closeOnce sync.Once
}

// NewRegistry subscribes to cfg.Authority and starts the idle sweep.  Call
// Close to stop both.
func NewRegistry(cfg Config) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	g := &Registry{
		cfg:       cfg,
		log:       logger.Component(cfg.Logger, "session-registry"),
		resolvers: map[string]*Resolver{},
		seen:      map[string]time.Time{},
		stop:      make(chan struct{}),
	}
	g.unsubscribe = cfg.Authority.Subscribe(g.dispatch)
	go g.janitor(sweepInterval(cfg.IdleTTL))
	return g
}

func sweepInterval(ttl time.Duration) time.Duration {
	if d := ttl / 4; d > time.Second {
		return d
	}
	return time.Second
}

func (g *Registry) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-g.stop:
			return
		case now := <-t.C:
			g.Sweep(now)
		}
	}
}

func (g *Registry) dispatch(ev model.AuthEvent) {
	if ev.SessionID == "" {
		return
	}
	g.mu.Lock()
	r, ok := g.resolvers[ev.SessionID]
	if ok && ev.Type == model.EventSignedOut {
		delete(g.resolvers, ev.SessionID)
		delete(g.seen, ev.SessionID)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	g.log.Debug("auth event", "type", string(ev.Type), "session_id", ev.SessionID)
	r.HandleAuthEvent(ev)
}

// NewResolver returns an unregistered resolver for a login attempt.  Bind
// it once it holds a session.
func (g *Registry) NewResolver(portal Portal) *Resolver {
	return NewResolver(g.cfg, portal)
}

// Bind registers r under its current session id.  It reports false when r
// holds no session.
func (g *Registry) Bind(r *Resolver) bool {
	sid := r.SessionID()
	if sid == "" {
		return false
	}
	g.mu.Lock()
	g.resolvers[sid] = r
	g.seen[sid] = time.Now()
	g.mu.Unlock()
	return true
}

// Get returns the resident resolver of a session.
func (g *Registry) Get(sessionID string) (*Resolver, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.resolvers[sessionID]
	return r, ok
}

// Restore verifies accessToken and returns the resolver of its session,
// creating and registering one when none is resident.  The session is
// applied as an initial session, so a token the resolver already holds
// changes nothing.
func (g *Registry) Restore(ctx context.Context, accessToken string) (*Resolver, error) {
	s, err := g.cfg.Authority.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	r, ok := g.resolvers[s.ID]
	if !ok {
		r = NewResolver(g.cfg, PortalAny)
		g.resolvers[s.ID] = r
	}
	g.seen[s.ID] = time.Now()
	g.mu.Unlock()
	if !ok {
		g.log.Info("restoring session", "session_id", s.ID, "user_id", s.UserID)
	}
	r.HandleAuthEvent(model.AuthEvent{Type: model.EventInitialSession, SessionID: s.ID, Session: s})
	return r, nil
}

// Sweep evicts the sessions that have not been used for IdleTTL or whose
// access token expired before now, and reports how many left.  Eviction
// closes tracked subscriptions but leaves the remote session and the local
// store alone, so a later Restore rebuilds the resolver warm.
func (g *Registry) Sweep(now time.Time) int {
	var evicted []*Resolver
	g.mu.Lock()
	for sid, r := range g.resolvers {
		idle := now.Sub(g.seen[sid]) > g.cfg.IdleTTL
		exp := r.expiresAt()
		if idle || (!exp.IsZero() && now.After(exp)) {
			delete(g.resolvers, sid)
			delete(g.seen, sid)
			evicted = append(evicted, r)
		}
	}
	g.mu.Unlock()
	for _, r := range evicted {
		r.detach()
	}
	if len(evicted) > 0 {
		g.log.Info("evicted idle sessions", "count", len(evicted))
	}
	return len(evicted)
}

// Len is the number of resident sessions.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.resolvers)
}

// Close stops the sweep, unsubscribes from the authority and drops every
// resolver, closing their tracked subscriptions.  Remote sessions stay
// valid.
func (g *Registry) Close() {
	g.closeOnce.Do(func() {
		close(g.stop)
		g.unsubscribe()
	})
	g.mu.Lock()
	all := g.resolvers
	g.resolvers = map[string]*Resolver{}
	g.seen = map[string]time.Time{}
	g.mu.Unlock()
	for _, r := range all {
		r.detach()
	}
}
