// Package trending serves cached per-source trending lists. Movie and
// TV trending always comes from TMDb and is enriched by the reconciler
// so edits have a Simkl home; manga trending never goes to Simkl,
// which does not track it.
package trending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zoro-md/zoro/internal/cache"
	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/provider"
	"github.com/zoro-md/zoro/internal/queue"
	"github.com/zoro-md/zoro/internal/reconcile"
)

// DefaultLimit is the trending list size when the caller names none
const DefaultLimit = 40

// Aggregator answers trending queries through the cache and the queue
type Aggregator struct {
	registry   *provider.Registry
	cache      *cache.Store
	queue      *queue.Queue
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

// New creates the trending aggregator. The reconciler may be nil;
// movie and TV results then keep their TMDb identity.
func New(registry *provider.Registry, cacheStore *cache.Store, q *queue.Queue, reconciler *reconcile.Reconciler, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		registry:   registry,
		cache:      cacheStore,
		queue:      q,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Route returns the sources trending queries for mediaType actually go
// to, in preference order. Movies and TV always route to TMDb; manga
// prefers AniList then MAL and never Simkl; anime honors the request.
func Route(requested domain.Source, mediaType domain.MediaType) []domain.Source {
	if mediaType.IsVideo() {
		return []domain.Source{domain.SourceTMDB}
	}
	if mediaType == domain.MediaTypeManga {
		if requested == domain.SourceMAL || requested == domain.SourceJikan {
			return []domain.Source{requested, domain.SourceAniList}
		}
		return []domain.Source{domain.SourceAniList, domain.SourceMAL}
	}
	if requested == "" {
		return []domain.Source{domain.SourceAniList}
	}
	return []domain.Source{requested}
}

// Fetch returns up to limit trending entries for the media type,
// routed per source policy and served from cache for a day. A failed
// live fetch falls back to the previous cached list when one exists.
func (a *Aggregator) Fetch(ctx context.Context, requested domain.Source, mediaType domain.MediaType, limit int) ([]domain.Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	route := Route(requested, mediaType)
	src := route[0]

	key := cache.Key(cache.ScopeTrending, "trending", fmt.Sprintf("%s_%s_%d", src, mediaType, limit))

	var cached []domain.Entry
	if a.cache.Get(key, &cached, cache.GetOptions{}) {
		return cached, nil
	}

	entries, err := a.fetchRoute(ctx, route, mediaType, limit)
	if err != nil {
		if a.cache.Get(key, &cached, cache.GetOptions{TTL: cache.TTLInfinite}) {
			a.logger.Warn("serving stale trending after fetch failure", "source", src, "type", mediaType, "error", err)
			return cached, nil
		}
		return nil, err
	}

	stamp(entries, mediaType)
	if a.reconciler != nil && mediaType.IsVideo() {
		entries = a.reconciler.EnrichVideo(ctx, entries)
	}

	if err := a.cache.Set(key, entries, cache.SetOptions{
		Scope:  cache.ScopeTrending,
		Source: src,
		Tags:   []string{"trending"},
	}); err != nil {
		a.logger.Warn("could not cache trending list", "key", key, "error", err)
	}
	return entries, nil
}

// fetchRoute tries each routed source in order, keeping the first
// success. Later sources are fallbacks, not merges.
func (a *Aggregator) fetchRoute(ctx context.Context, route []domain.Source, mediaType domain.MediaType, limit int) ([]domain.Entry, error) {
	var lastErr error
	for _, src := range route {
		feed, err := a.registry.TrendingFor(src)
		if err != nil {
			lastErr = err
			continue
		}
		entries, err := queue.Do[[]domain.Entry](ctx, a.queue, queue.Request{
			Source: src,
			Kind:   "trending",
			Fn: func(ctx context.Context) (any, error) {
				return feed.FetchTrending(ctx, mediaType, limit)
			},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			a.logger.Warn("trending source failed, trying next", "source", src, "error", err)
			lastErr = err
			continue
		}
		return entries, nil
	}
	return nil, lastErr
}

// stamp fills fetch metadata on entries whose provider left it empty
func stamp(entries []domain.Entry, mediaType domain.MediaType) {
	now := time.Now()
	for i := range entries {
		if entries[i].Meta.Source == "" {
			entries[i].Meta.Source = entries[i].Media.Source
		}
		if entries[i].Meta.MediaType == "" {
			entries[i].Meta.MediaType = mediaType
		}
		if entries[i].Meta.FetchedAt.IsZero() {
			entries[i].Meta.FetchedAt = now
		}
	}
}
