package bill

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// SessionStore defines the interface for session storage operations
type SessionStore interface {
	// Save stores a controller under id
	Save(id string, controller *Controller)

	// Get retrieves the controller for id and marks the session as used
	Get(id string) (*Controller, bool)
}

// MemoryStore implements SessionStore in process memory.
// Sessions idle for longer than the TTL expire; once capacity is reached the
// least recently used session is dropped to make room.
type MemoryStore struct {
	cache *ttlcache.Cache[string, *Controller]
}

var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore. A ttl of zero disables expiry and
// a capacity of zero disables the size bound.
func NewMemoryStore(ttl time.Duration, capacity uint64) *MemoryStore {
	opts := []ttlcache.Option[string, *Controller]{
		ttlcache.WithTTL[string, *Controller](ttl),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *Controller](capacity))
	}
	return &MemoryStore{cache: ttlcache.New(opts...)}
}

// Save stores a controller and drops expired sessions
func (m *MemoryStore) Save(id string, controller *Controller) {
	m.cache.DeleteExpired()
	m.cache.Set(id, controller, ttlcache.DefaultTTL)
}

// Get retrieves a controller by session id, extending its lifetime
func (m *MemoryStore) Get(id string) (*Controller, bool) {
	item := m.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Len returns the number of live sessions
func (m *MemoryStore) Len() int {
	m.cache.DeleteExpired()
	return m.cache.Len()
}
