// Package realtime carries row-change notifications from writers to the
// screens that cache those rows.  Subscribers filter by table and vendor.
package realtime

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Any matches every table or every vendor in Subscribe.
const Any = "*"

// Change is one row change.
type Change struct {
	Table    string    `json:"table"`
	VendorID string    `json:"vendor_id"`
	RowID    string    `json:"row_id"`
	Op       Op        `json:"op"`
	At       time.Time `json:"at"`
}

// Subscription stops delivery when closed.  Close is idempotent.
type Subscription interface {
	Close() error
}

// Hub is implemented by MemoryHub and AMQPHub.
type Hub interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(table, vendorID string, fn func(Change)) (Subscription, error)
	Close() error
}

func matches(pattern, v string) bool {
	return pattern == Any || pattern == "" || pattern == v
}

// MemoryHub delivers changes in-process, synchronously on the publishing
// goroutine.
type MemoryHub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]memorySub
}

type memorySub struct {
	table, vendorID string
	fn              func(Change)
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: map[uint64]memorySub{}}
}

func (h *MemoryHub) Publish(_ context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	h.mu.RLock()
	var fns []func(Change)
	for _, s := range h.subs {
		if matches(s.table, c.Table) && matches(s.vendorID, c.VendorID) {
			fns = append(fns, s.fn)
		}
	}
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
	return nil
}

func (h *MemoryHub) Subscribe(table, vendorID string, fn func(Change)) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = memorySub{table: strings.TrimSpace(table), vendorID: strings.TrimSpace(vendorID), fn: fn}
	return &memorySubscription{hub: h, id: id}, nil
}

// Len is the number of live subscriptions.
func (h *MemoryHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *MemoryHub) Close() error {
	h.mu.Lock()
	h.subs = map[uint64]memorySub{}
	h.mu.Unlock()
	return nil
}

type memorySubscription struct {
	hub  *MemoryHub
	id   uint64
	once sync.Once
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
	})
	return nil
}
