package cache

import (
	"fmt"
	"strings"

	"github.com/zoro-md/zoro/internal/domain"
)

// InvalidateByTag removes every entry whose tag set contains tag. An
// optional source narrows the sweep to entries written for that source.
// Returns the number of in-memory entries removed.
func (s *Store) InvalidateByTag(tag string, source ...domain.Source) int {
	var src string
	if len(source) > 0 {
		src = string(source[0])
	}

	s.mu.Lock()
	removed := 0
	for k, e := range s.entries {
		if !e.hasTag(tag) {
			continue
		}
		if src != "" && e.source != src {
			continue
		}
		delete(s.entries, k)
		removed++
	}
	s.mu.Unlock()

	s.deletePersistedMatching(Scopes(), func(key string, rec persistedEntry) bool {
		if !recHasTag(rec, tag) {
			return false
		}
		return src == "" || rec.Source == src
	})

	if removed > 0 {
		s.logger.Debug("cache invalidated by tag", "tag", tag, "removed", removed)
	}
	return removed
}

// InvalidateByUser removes every entry tagged with the username or whose
// key contains it. Called on logout and after list mutations.
func (s *Store) InvalidateByUser(username string) int {
	if username == "" {
		return 0
	}

	s.mu.Lock()
	removed := 0
	for k, e := range s.entries {
		if e.hasTag(username) || strings.Contains(k, username) {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()

	s.deletePersistedMatching(Scopes(), func(key string, rec persistedEntry) bool {
		return recMatchesUser(key, rec, username)
	})

	if removed > 0 {
		s.logger.Debug("cache invalidated by user", "username", username, "removed", removed)
	}
	return removed
}

// InvalidateByMedia removes every entry tagged with the media's ID tag
func (s *Store) InvalidateByMedia(mediaID int) int {
	return s.InvalidateByTag(MediaTag(mediaID))
}

// MediaTag is the tag convention binding entries to one media item
func MediaTag(mediaID int) string {
	return fmt.Sprintf("media:%d", mediaID)
}

// InvalidateScope removes every entry in the scope
func (s *Store) InvalidateScope(scope Scope) int {
	s.mu.Lock()
	removed := 0
	for k, e := range s.entries {
		if e.scope == scope {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()

	s.emptyPersistedScope(scope)

	if removed > 0 {
		s.logger.Debug("cache scope invalidated", "scope", scope, "removed", removed)
	}
	return removed
}

// Clear empties the whole cache, every scope, memory and disk
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	for _, scope := range Scopes() {
		s.emptyPersistedScope(scope)
	}
	s.logger.Debug("cache cleared")
}
