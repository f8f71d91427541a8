package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zoro-md/zoro/internal/cache"
	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/provider"
	"github.com/zoro-md/zoro/internal/queue"
)

// Editor routes entry mutations to the provider named by the entry's
// fetch metadata, after checking the operation against the provider's
// capability matrix. Every successful mutation invalidates the cached
// copies of the media and the user-data scope, so the next read shows
// the edit.
type Editor struct {
	registry *provider.Registry
	auth     map[domain.Source]domain.AuthManager
	cache    *cache.Store
	queue    *queue.Queue
	logger   *slog.Logger

	mu        sync.Mutex
	favSubs   map[int]func(mediaID int, favorite bool)
	favNextID int
}

// NewEditor creates the edit coordinator
func NewEditor(registry *provider.Registry, auth map[domain.Source]domain.AuthManager, cacheStore *cache.Store, q *queue.Queue, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	if auth == nil {
		auth = map[domain.Source]domain.AuthManager{}
	}
	return &Editor{
		registry: registry,
		auth:     auth,
		cache:    cacheStore,
		queue:    q,
		logger:   logger,
		favSubs:  make(map[int]func(int, bool)),
	}
}

// UpdateEntry applies a patch to the entry on its home provider and
// returns the stored result
func (e *Editor) UpdateEntry(ctx context.Context, entry *domain.Entry, patch domain.EntryPatch) (*domain.Entry, error) {
	src := entry.Meta.Source
	p, err := e.editTarget(src, "update")
	if err != nil {
		return nil, err
	}
	if err := validatePatch(entry, patch); err != nil {
		return nil, err
	}

	updated, err := e.mutate(ctx, src, "update", func(ctx context.Context) (any, error) {
		return p.UpdateEntry(ctx, entry, patch)
	})
	if err != nil {
		return nil, err
	}
	saved, ok := updated.(*domain.Entry)
	if !ok {
		return nil, fmt.Errorf("media: unexpected update result %T", updated)
	}

	e.invalidateAfterEdit(entry)
	e.logger.Info("entry updated", "source", src, "media", entry.Media.ID, "status", saved.StatusOrEmpty())
	return saved, nil
}

// RemoveEntry deletes the user's list record. Only providers with the
// remove capability accept it.
func (e *Editor) RemoveEntry(ctx context.Context, entry *domain.Entry) error {
	src := entry.Meta.Source
	p, err := e.editTarget(src, "remove")
	if err != nil {
		return err
	}
	if !p.Capabilities().Remove {
		return &domain.CapabilityError{Source: src, Operation: "remove"}
	}
	remover, ok := p.(domain.EntryRemover)
	if !ok {
		return &domain.CapabilityError{Source: src, Operation: "remove"}
	}

	if _, err := e.mutate(ctx, src, "remove", func(ctx context.Context) (any, error) {
		return nil, remover.RemoveEntry(ctx, entry)
	}); err != nil {
		return err
	}

	e.invalidateAfterEdit(entry)
	e.logger.Info("entry removed", "source", src, "media", entry.Media.ID)
	return nil
}

// ToggleFavorite flips the server-side favorite flag and returns the
// new state. AniList is the only provider with the capability.
func (e *Editor) ToggleFavorite(ctx context.Context, src domain.Source, mediaID int, mediaType domain.MediaType) (bool, error) {
	p, err := e.editTarget(src, "favorites")
	if err != nil {
		return false, err
	}
	if !p.Capabilities().Favorites {
		return false, &domain.CapabilityError{Source: src, Operation: "favorites"}
	}
	toggler, ok := p.(domain.FavoriteToggler)
	if !ok {
		return false, &domain.CapabilityError{Source: src, Operation: "favorites"}
	}

	result, err := e.mutate(ctx, src, "favorite", func(ctx context.Context) (any, error) {
		return toggler.ToggleFavorite(ctx, mediaID, mediaType)
	})
	if err != nil {
		return false, err
	}
	fav := result.(bool)

	e.cache.InvalidateByMedia(mediaID)
	e.broadcastFavorite(mediaID, fav)
	e.logger.Info("favorite toggled", "source", src, "media", mediaID, "favorite", fav)
	return fav, nil
}

// SubscribeFavorites registers fn to run after every favorite toggle,
// so visible renderings of the media can update in place. The returned
// function removes the subscription.
func (e *Editor) SubscribeFavorites(fn func(mediaID int, favorite bool)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.favNextID
	e.favNextID++
	e.favSubs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.favSubs, id)
	}
}

func (e *Editor) broadcastFavorite(mediaID int, fav bool) {
	e.mu.Lock()
	subs := make([]func(int, bool), 0, len(e.favSubs))
	for _, fn := range e.favSubs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	for _, fn := range subs {
		fn(mediaID, fav)
	}
}

// editTarget resolves the provider for a mutation; catalogs are never
// edit targets
func (e *Editor) editTarget(src domain.Source, op string) (domain.Provider, error) {
	if !src.IsListService() {
		return nil, &domain.CapabilityError{Source: src, Operation: op}
	}
	return e.registry.For(src)
}

// mutate runs one mutation through the queue with a session check in
// front. Mutations always require a login. A 401 marks the token
// rejected so the queue's retry refreshes before dispatching again.
func (e *Editor) mutate(ctx context.Context, src domain.Source, kind string, fn func(ctx context.Context) (any, error)) (any, error) {
	rejected := false
	return e.queue.Do(ctx, queue.Request{
		Source: src,
		Kind:   kind,
		Fn: func(ctx context.Context) (any, error) {
			mgr, ok := e.auth[src]
			if !ok {
				return nil, &domain.AuthError{Source: src, Reason: "no authentication for source", Err: domain.ErrLoginRequired}
			}
			if rejected {
				mgr.InvalidateToken()
			}
			if err := mgr.EnsureValidToken(ctx); err != nil {
				return nil, err
			}
			rejected = false
			v, err := fn(ctx)
			if domain.IsAuthFailure(err) {
				rejected = true
			}
			return v, err
		},
	})
}

// invalidateAfterEdit drops every cached copy that could show the
// pre-edit state: the media under all its known ids, and the whole
// user-data scope so list pages refetch
func (e *Editor) invalidateAfterEdit(entry *domain.Entry) {
	seen := map[int]bool{}
	for _, id := range []int{entry.Media.ID, entry.Media.IDs.AniList, entry.Media.IDs.MAL, entry.Media.IDs.Simkl, entry.Media.IDs.TMDB} {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		e.cache.InvalidateByMedia(id)
	}
	e.cache.InvalidateScope(cache.ScopeUserData)
}

// validatePatch enforces the cross-provider invariants before a patch
// leaves the process: status legality for the target, score range, and
// progress bounds against the known episode or chapter count
func validatePatch(entry *domain.Entry, patch domain.EntryPatch) error {
	if patch.IsEmpty() {
		return &domain.ValidationError{Field: "patch", Reason: "nothing to change"}
	}
	src := entry.Meta.Source
	mediaType := entry.Meta.MediaType

	if patch.Status != nil && !domain.StatusAllowed(src, mediaType, *patch.Status) {
		return &domain.CapabilityError{
			Source:    src,
			Operation: fmt.Sprintf("status %s for %s", *patch.Status, mediaType),
		}
	}
	if patch.Score != nil && (*patch.Score < 0 || *patch.Score > 10) {
		return &domain.ValidationError{Field: "score", Reason: fmt.Sprintf("%.1f outside 0-10", *patch.Score)}
	}
	if patch.Progress != nil {
		if *patch.Progress < 0 {
			return &domain.ValidationError{Field: "progress", Reason: "negative"}
		}
		if max := entry.Media.MaxProgress(); max > 0 && *patch.Progress > max {
			return &domain.ValidationError{Field: "progress", Reason: fmt.Sprintf("%d exceeds total %d", *patch.Progress, max)}
		}
	}
	if patch.Repeat != nil && *patch.Repeat < 0 {
		return &domain.ValidationError{Field: "repeat", Reason: "negative"}
	}
	return nil
}
