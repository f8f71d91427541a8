// Package cache implements the scoped, tagged, TTL store shared by every
// read path. Values live in memory with write-through persistence to a
// bolt database, so warm data survives restarts. Reads with an infinite
// TTL return expired values; callers use that as the stale fallback when
// a live fetch fails.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/zoro-md/zoro/internal/domain"
)

// Scope partitions the cache by data family
type Scope string

const (
	ScopeUserData      Scope = "userData"
	ScopeMediaData     Scope = "mediaData"
	ScopeSearchResults Scope = "searchResults"
	ScopeMediaDetails  Scope = "mediaDetails"
	ScopeTrending      Scope = "trending"
)

// Scopes lists every scope, in bucket order
func Scopes() []Scope {
	return []Scope{ScopeUserData, ScopeMediaData, ScopeSearchResults, ScopeMediaDetails, ScopeTrending}
}

// TTLInfinite requests a stale read: any present value is returned
// regardless of age.
const TTLInfinite time.Duration = -1

// DefaultTTL returns the freshness window for entries in the scope
func (s Scope) DefaultTTL() time.Duration {
	switch s {
	case ScopeUserData:
		return 4 * time.Minute
	case ScopeMediaData, ScopeSearchResults:
		return 30 * time.Minute
	case ScopeMediaDetails:
		return time.Hour
	case ScopeTrending:
		return 24 * time.Hour
	default:
		return 30 * time.Minute
	}
}

// maxEntries returns the entry cap for the scope; older entries are
// evicted first once the cap is reached
func (s Scope) maxEntries() int {
	if s == ScopeSearchResults {
		return 200
	}
	return 500
}

// SetOptions controls a cache write
type SetOptions struct {
	Scope  Scope
	Source domain.Source // optional; becomes the key's middle segment owner
	TTL    time.Duration // 0 uses the scope default
	Tags   []string
}

// GetOptions controls a cache read
type GetOptions struct {
	TTL time.Duration // 0 uses the entry's TTL; TTLInfinite permits stale
}

// entry is one in-memory cache record
type entry struct {
	value      []byte
	createdAt  time.Time
	ttl        time.Duration
	tags       []string
	scope      Scope
	source     string
	lastAccess time.Time
}

// expired reports whether the entry is older than the effective TTL
func (e *entry) expired(now time.Time, override time.Duration) bool {
	ttl := e.ttl
	if override > 0 {
		ttl = override
	}
	return now.Sub(e.createdAt) > ttl
}

// hasTag reports whether the entry carries the tag
func (e *entry) hasTag(tag string) bool {
	for _, t := range e.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Stats is a point-in-time view of cache effectiveness
type Stats struct {
	Hits      uint64         `json:"hits"`
	Misses    uint64         `json:"misses"`
	Evictions uint64         `json:"evictions"`
	HitRate   float64        `json:"hitRate"`
	Size      int            `json:"cacheSize"`
	Breakdown map[string]int `json:"storeBreakdown"` // "scope|source" -> entries
}

// Store is the process-wide cache. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	hits      uint64
	misses    uint64
	evictions uint64

	db     *boltStore
	logger *slog.Logger
}

// NewStore opens the cache. An empty path disables persistence; the cache
// then runs memory-only, which is also the fallback when the database
// cannot be opened.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		entries: make(map[string]*entry),
		logger:  logger,
	}
	if path == "" {
		return s, nil
	}
	db, err := openBolt(path)
	if err != nil {
		logger.Warn("cache persistence unavailable, running memory-only", "path", path, "error", err)
		return s, nil
	}
	s.db = db
	return s, nil
}

// Close releases the persistence layer
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.close()
	}
	return nil
}

// Key assembles a structured cache key: scope|group|logical. Long logical
// segments are replaced with a digest to bound key size; short ones stay
// readable so substring invalidation by username keeps working.
func Key(scope Scope, group, logical string) string {
	if len(logical) > 64 {
		sum := sha256.Sum256([]byte(logical))
		logical = hex.EncodeToString(sum[:8])
	}
	return fmt.Sprintf("%s|%s|%s", scope, group, logical)
}

// scopeOf recovers the scope segment from a structured key
func scopeOf(key string) Scope {
	if i := strings.IndexByte(key, '|'); i > 0 {
		return Scope(key[:i])
	}
	return ""
}

// Get loads the value stored under key into dest. Returns false on miss or
// expiry. With opts.TTL == TTLInfinite any present value is returned; a
// positive opts.TTL overrides the entry's own freshness window. A nil dest
// checks presence only.
func (s *Store) Get(key string, dest any, opts GetOptions) bool {
	now := time.Now()

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		// Cold start: the entry may still live in the bolt tier
		e = s.promote(key, now)
		s.mu.Lock()
		if e == nil {
			s.misses++
			s.mu.Unlock()
			return false
		}
		s.entries[key] = e
	}

	stale := opts.TTL == TTLInfinite
	if !stale && e.expired(now, opts.TTL) {
		delete(s.entries, key)
		s.misses++
		s.mu.Unlock()
		s.deletePersisted(key)
		return false
	}

	e.lastAccess = now
	s.hits++
	value := e.value
	s.mu.Unlock()

	if dest == nil {
		return true
	}
	if err := json.Unmarshal(value, dest); err != nil {
		s.logger.Warn("cache entry undecodable, dropping", "key", key, "error", err)
		s.Delete(key)
		return false
	}
	return true
}

// Set stores value under key, replacing any previous entry
func (s *Store) Set(key string, value any, opts SetOptions) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}

	now := time.Now()
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = opts.Scope.DefaultTTL()
	}
	e := &entry{
		value:      data,
		createdAt:  now,
		ttl:        ttl,
		tags:       append([]string(nil), opts.Tags...),
		scope:      opts.Scope,
		source:     string(opts.Source),
		lastAccess: now,
	}

	s.mu.Lock()
	s.entries[key] = e
	s.enforceCap(opts.Scope, now)
	s.mu.Unlock()

	s.persist(key, e)
	return nil
}

// Delete removes a single entry
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	s.deletePersisted(key)
}

// Stats returns a snapshot of hit/miss counts and per-store entry counts
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		Size:      len(s.entries),
		Breakdown: make(map[string]int),
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	for _, e := range s.entries {
		bucket := string(e.scope)
		if e.source != "" {
			bucket += "|" + e.source
		}
		st.Breakdown[bucket]++
	}
	return st
}

// enforceCap bounds the scope's entry count, dropping expired entries
// first and then the least recently used. Caller holds the lock.
func (s *Store) enforceCap(scope Scope, now time.Time) {
	max := scope.maxEntries()
	count := 0
	for _, e := range s.entries {
		if e.scope == scope {
			count++
		}
	}
	if count <= max {
		return
	}

	// Expired entries go first
	for k, e := range s.entries {
		if count <= max {
			return
		}
		if e.scope == scope && e.expired(now, 0) {
			delete(s.entries, k)
			s.evictions++
			count--
		}
	}

	// Then least recently used
	for count > max {
		oldest := ""
		var oldestAt time.Time
		for k, e := range s.entries {
			if e.scope != scope {
				continue
			}
			if oldest == "" || e.lastAccess.Before(oldestAt) {
				oldest, oldestAt = k, e.lastAccess
			}
		}
		if oldest == "" {
			return
		}
		delete(s.entries, oldest)
		s.evictions++
		count--
	}
}
