package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the freshness window applied to cached upstream payloads.
const DefaultTTL = 60 * time.Second

// Cache is a TTL-bounded cache of upstream payloads. Get returns the
// payload only while the entry is fresh; stale entries are ignored, not
// evicted, until a later Put supersedes them.
type Cache interface {
	Get(key string) (json.RawMessage, bool)
	Put(key string, payload json.RawMessage)
}

// Key builds the deterministic composite cache key for a parameterized
// resource, e.g. Key("id", "USD", "limit", "10", "page", "1") yields
// "id:USD:limit:10:page:1".
func Key(pairs ...string) string {
	return strings.Join(pairs, ":")
}

type entry struct {
	payload  json.RawMessage
	storedAt time.Time
}

func (e entry) fresh(now time.Time, ttl time.Duration) bool {
	return !e.storedAt.IsZero() && now.Sub(e.storedAt) < ttl
}

// Slot caches a single parameterless resource. The key argument is
// accepted for contract symmetry and ignored.
type Slot struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	entry entry
}

// NewSlot creates a single-slot cache with the given TTL.
func NewSlot(ttl time.Duration) *Slot {
	return &Slot{ttl: ttl, now: time.Now}
}

func (s *Slot) Get(_ string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.entry.fresh(s.now(), s.ttl) {
		return nil, false
	}

	return s.entry.payload, true
}

func (s *Slot) Put(_ string, payload json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entry = entry{payload: payload, storedAt: s.now()}
}

// Map caches parameterized resources by composite key so distinct
// parameterizations never collide. It has no maximum size: unbounded key
// cardinality grows memory without bound (a hardened deployment would add
// LRU eviction).
type Map struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// NewMap creates a keyed cache with the given TTL.
func NewMap(ttl time.Duration) *Map {
	return &Map{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func (m *Map) Get(key string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || !e.fresh(m.now(), m.ttl) {
		return nil, false
	}

	return e.payload, true
}

func (m *Map) Put(key string, payload json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{payload: payload, storedAt: m.now()}
}

// Compile-time checks.
var (
	_ Cache = (*Slot)(nil)
	_ Cache = (*Map)(nil)
)
