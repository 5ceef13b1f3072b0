package dashboard

import (
	"io"
	"sync"

	"github.com/iliyamo/vendor-portal/internal/datacache"
	"github.com/iliyamo/vendor-portal/internal/realtime"
)

// Tracker owns the lifetime of a watch.  *session.Resolver implements it
// and closes tracked watches when its session ends.
type Tracker interface {
	Cache() *datacache.Cache
	Track(c io.Closer)
}

type watchKey struct {
	owner Tracker
	scope Scope
}

type watch struct {
	svc  *Service
	key  watchKey
	sub  realtime.Subscription
	once sync.Once
}

func (w *watch) Close() error {
	var err error
	w.once.Do(func() {
		w.svc.mu.Lock()
		if w.svc.watching[w.key] == w {
			delete(w.svc.watching, w.key)
		}
		w.svc.mu.Unlock()
		err = w.sub.Close()
	})
	return err
}

// Watch invalidates owner's cached collections whenever a row of the
// vendor changes.  Watching the same scope twice is a no-op.  The watch
// ends when owner closes it.
func (s *Service) Watch(owner Tracker, scope Scope) error {
	if s.hub == nil || scope.VendorID == "" {
		return nil
	}
	key := watchKey{owner: owner, scope: scope}
	s.mu.Lock()
	if _, ok := s.watching[key]; ok {
		s.mu.Unlock()
		return nil
	}
	cache := owner.Cache()
	sub, err := s.hub.Subscribe(realtime.Any, scope.VendorID, func(c realtime.Change) {
		t, ok := tableEntity[c.Table]
		if !ok {
			return
		}
		cache.Invalidate(t, "")
		if id := scope.cacheID(t); id != "" {
			cache.Invalidate(t, id)
		}
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	w := &watch{svc: s, key: key, sub: sub}
	s.watching[key] = w
	s.mu.Unlock()

	owner.Track(w)
	s.log.Debug("watching changes", "vendor_id", scope.VendorID, "staff_id", scope.StaffID)
	return nil
}

// Watching is the number of live watches.
func (s *Service) Watching() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watching)
}
