// Package localstore keeps a durable per-identity copy of the resolved role
// and profiles, so a session restored after a restart starts warm.  Sign-out
// purges it.
package localstore

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/vendor-portal/internal/model"
)

// Record is what is kept for one identity.
type Record struct {
	Role    model.Role           `json:"role"`
	Vendor  *model.VendorProfile `json:"vendor,omitempty"`
	Staff   *model.StaffProfile  `json:"staff,omitempty"`
	SavedAt time.Time            `json:"saved_at"`
}

// Store is implemented by Redis and Memory.
type Store interface {
	Save(ctx context.Context, identityID string, rec Record) error
	Load(ctx context.Context, identityID string) (Record, bool, error)
	Purge(ctx context.Context, identityID string) error
}

// Memory is an in-process Store used when redis is unavailable.
type Memory struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	recs map[string]Record
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, recs: map[string]Record{}}
}

func (m *Memory) Save(_ context.Context, identityID string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.SavedAt.IsZero() {
		rec.SavedAt = m.now().UTC()
	}
	m.recs[identityID] = rec
	return nil
}

func (m *Memory) Load(_ context.Context, identityID string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[identityID]
	if !ok {
		return Record{}, false, nil
	}
	if m.ttl > 0 && m.now().Sub(rec.SavedAt) > m.ttl {
		delete(m.recs, identityID)
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (m *Memory) Purge(_ context.Context, identityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, identityID)
	return nil
}
