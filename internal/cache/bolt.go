package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
)

// persistedEntry is the on-disk record behind each cache entry
type persistedEntry struct {
	Value     json.RawMessage `json:"v"`
	CreatedAt int64           `json:"c"` // unix milliseconds
	TTLMs     int64           `json:"t"`
	Tags      []string        `json:"g,omitempty"`
	Source    string          `json:"s,omitempty"`
}

// boltStore wraps the bolt database with one bucket per scope
type boltStore struct {
	db *bolt.DB
}

func openBolt(path string) (*boltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, scope := range Scopes() {
			if _, err := tx.CreateBucketIfNotExists([]byte(scope)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (b *boltStore) close() error { return b.db.Close() }

// persist writes the entry through to disk; failures degrade to memory-only
func (s *Store) persist(key string, e *entry) {
	if s.db == nil {
		return
	}
	rec := persistedEntry{
		Value:     json.RawMessage(e.value),
		CreatedAt: e.createdAt.UnixMilli(),
		TTLMs:     e.ttl.Milliseconds(),
		Tags:      e.tags,
		Source:    e.source,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("cache persist encode failed", "key", key, "error", err)
		return
	}
	err = s.db.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(e.scope))
		if bkt == nil {
			return nil
		}
		return bkt.Put([]byte(key), data)
	})
	if err != nil {
		s.logger.Warn("cache persist failed", "key", key, "error", err)
	}
}

// promote reads an entry from disk after a memory miss. Returns nil when
// the persisted tier has nothing usable.
func (s *Store) promote(key string, now time.Time) *entry {
	if s.db == nil {
		return nil
	}
	scope := scopeOf(key)
	if scope == "" {
		return nil
	}

	var data []byte
	s.db.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(scope))
		if bkt == nil {
			return nil
		}
		if v := bkt.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return nil
	}

	var rec persistedEntry
	if err := json.Unmarshal(data, &rec); err != nil {
		s.deletePersisted(key)
		return nil
	}
	return &entry{
		value:      []byte(rec.Value),
		createdAt:  time.UnixMilli(rec.CreatedAt),
		ttl:        time.Duration(rec.TTLMs) * time.Millisecond,
		tags:       rec.Tags,
		scope:      scope,
		source:     rec.Source,
		lastAccess: now,
	}
}

func (s *Store) deletePersisted(key string) {
	if s.db == nil {
		return
	}
	scope := scopeOf(key)
	if scope == "" {
		return
	}
	s.db.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(scope))
		if bkt != nil {
			bkt.Delete([]byte(key))
		}
		return nil
	})
}

// deletePersistedMatching removes every on-disk entry match reports true
// for. Buckets are scanned whole; invalidation is rare enough for that.
func (s *Store) deletePersistedMatching(scopes []Scope, match func(key string, rec persistedEntry) bool) {
	if s.db == nil {
		return
	}
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		for _, scope := range scopes {
			bkt := tx.Bucket([]byte(scope))
			if bkt == nil {
				continue
			}
			c := bkt.Cursor()
			var doomed [][]byte
			for k, v := c.First(); k != nil; k, v = c.Next() {
				var rec persistedEntry
				if err := json.Unmarshal(v, &rec); err != nil {
					doomed = append(doomed, append([]byte(nil), k...))
					continue
				}
				if match(string(k), rec) {
					doomed = append(doomed, append([]byte(nil), k...))
				}
			}
			for _, k := range doomed {
				if err := bkt.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("cache invalidation persist failed", "error", err)
	}
}

// emptyPersistedScope drops every on-disk entry in the scope by
// recreating its bucket
func (s *Store) emptyPersistedScope(scope Scope) {
	if s.db == nil {
		return
	}
	err := s.db.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(scope)) == nil {
			return nil
		}
		if err := tx.DeleteBucket([]byte(scope)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(scope))
		return err
	})
	if err != nil {
		s.logger.Warn("cache scope persist clear failed", "scope", scope, "error", err)
	}
}

// recHasTag reports whether a persisted record carries the tag
func recHasTag(rec persistedEntry, tag string) bool {
	for _, t := range rec.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// recMatchesUser applies the user-invalidation rule to a persisted record
func recMatchesUser(key string, rec persistedEntry, username string) bool {
	return recHasTag(rec, username) || strings.Contains(key, username)
}
