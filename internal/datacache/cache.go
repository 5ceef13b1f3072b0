// Package datacache is the per-session expiring cache the dashboard reads
// through.  It only holds state; fetching is the caller's job.
package datacache

import (
	"sync"
	"time"
)

// TTL is how long an entry stays fresh after SetData.
const TTL = 5 * time.Minute

// EntityType names a cached collection.
type EntityType string

const (
	Bookings      EntityType = "bookings"
	Tasks         EntityType = "tasks"
	Staff         EntityType = "staff"
	VendorProfile EntityType = "vendorProfile"
	Services      EntityType = "services"
	Reviews       EntityType = "reviews"
	Availability  EntityType = "availability"
)

// EntityTypes lists every cacheable type.
var EntityTypes = []EntityType{Bookings, Tasks, Staff, VendorProfile, Services, Reviews, Availability}

// Valid reports whether t is one of EntityTypes.
func (t EntityType) Valid() bool {
	for _, e := range EntityTypes {
		if e == t {
			return true
		}
	}
	return false
}

// Entry is one cached value.  Data is nil until the first SetData.
type Entry struct {
	Data      any
	Timestamp time.Time
	Loading   bool
	Err       error
}

// Key is "<type>" or "<type>:<id>".
func Key(t EntityType, id string) string {
	if id == "" {
		return string(t)
	}
	return string(t) + ":" + id
}

// Cache is safe for concurrent use.  The zero value is not usable; call New.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

func New() *Cache {
	return NewWithClock(time.Now)
}

// NewWithClock lets tests drive time.
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{entries: map[string]Entry{}, now: now}
}

// Get returns the entry for the key, or false when it is absent, was
// invalidated or is older than TTL.  Stale entries stay in the map.
func (c *Cache) Get(t EntityType, id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[Key(t, id)]
	if !ok || e.Timestamp.IsZero() {
		return Entry{}, false
	}
	if c.now().Sub(e.Timestamp) > TTL {
		return Entry{}, false
	}
	return e, true
}

// SetLoading marks the entry loading, keeping its data and clearing its
// error.  A key seen for the first time is stamped now; an existing entry
// keeps its timestamp, so an invalidated one still reads as a miss.
func (c *Cache) SetLoading(t EntityType, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := Key(t, id)
	e, ok := c.entries[k]
	if !ok {
		e.Timestamp = c.now()
	}
	e.Loading = true
	e.Err = nil
	c.entries[k] = e
}

// SetData stores fresh data and restarts the TTL.
func (c *Cache) SetData(t EntityType, data any, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(t, id)] = Entry{Data: data, Timestamp: c.now()}
}

// SetError records a failed fetch, keeping the previous data.  Timestamps
// follow the SetLoading rule.
func (c *Cache) SetError(t EntityType, err error, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := Key(t, id)
	e, ok := c.entries[k]
	if !ok {
		e.Timestamp = c.now()
	}
	e.Loading = false
	e.Err = err
	c.entries[k] = e
}

// Invalidate drops the data and zeroes the timestamp so the next Get misses.
func (c *Cache) Invalidate(t EntityType, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := Key(t, id)
	e := c.entries[k]
	e.Data = nil
	e.Timestamp = time.Time{}
	c.entries[k] = e
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]Entry{}
}

// Peek returns the raw entry regardless of age.  The dashboard uses it to
// serve stale data alongside a loading or error state.
func (c *Cache) Peek(t EntityType, id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[Key(t, id)]
	return e, ok
}

// Len is the number of keys held, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
