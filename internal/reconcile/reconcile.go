// Package reconcile cross-walks media identifiers between providers so
// one logical item resolves everywhere. Trending and search results
// from TMDb are enriched with IMDb ids and, when Simkl knows the item,
// re-homed onto Simkl so edits have somewhere to go. AniList idMal
// capture and MAL title-alias merging happen in the provider mappers;
// this package owns the lookups that need extra network calls.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/zoro-md/zoro/internal/cache"
	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/queue"
)

// maxEnrich bounds how many items of one batch get external-ID lookups
const maxEnrich = 20

// ID mappings are immutable in practice; keep them far longer than the
// media details they decorate
const idMapTTL = 7 * time.Hour

// ExternalIDSource resolves cross-walk ids for a TMDb item
type ExternalIDSource interface {
	ExternalIDs(ctx context.Context, tmdbID int, mediaType domain.MediaType) (domain.IDs, error)
}

// SimklResolver resolves a TMDb id to Simkl catalog candidates
type SimklResolver interface {
	LookupTMDB(ctx context.Context, tmdbID int, mediaType domain.MediaType) ([]domain.Media, error)
}

// Reconciler enriches entries with cross-provider ids. Lookups run
// through the request queue like any other outbound call, and results
// are cached well past the media TTL because id mappings do not move.
type Reconciler struct {
	tmdb   ExternalIDSource
	simkl  SimklResolver
	queue  *queue.Queue
	cache  *cache.Store
	logger *slog.Logger
}

// New creates a reconciler. simkl may be nil when Simkl is not
// configured; tmdb-to-simkl conversion is then skipped.
func New(tmdb ExternalIDSource, simkl SimklResolver, q *queue.Queue, cacheStore *cache.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		tmdb:   tmdb,
		simkl:  simkl,
		queue:  q,
		cache:  cacheStore,
		logger: logger,
	}
}

// EnrichVideo decorates movie and TV entries from TMDb: an IMDb id for
// up to maxEnrich items, then a Simkl identity when Simkl knows the
// item, so the edit path routes there. Lookup failures leave the entry
// as it was; enrichment never fails a batch.
func (r *Reconciler) EnrichVideo(ctx context.Context, entries []domain.Entry) []domain.Entry {
	enriched := 0
	for i := range entries {
		if enriched >= maxEnrich {
			break
		}
		e := &entries[i]
		if e.Meta.Source != domain.SourceTMDB || e.Media.IDs.TMDB == 0 || !e.Media.Type.IsVideo() {
			continue
		}
		enriched++

		if e.Media.IDs.IMDB == "" {
			if ids, err := r.externalIDs(ctx, e.Media.IDs.TMDB, e.Media.Type); err == nil {
				e.Media.IDs.Merge(ids)
			} else {
				r.logger.Debug("imdb enrichment skipped", "tmdb", e.Media.IDs.TMDB, "error", err)
			}
		}

		r.adoptSimkl(ctx, e)
	}
	return entries
}

// adoptSimkl re-homes one TMDb entry onto Simkl when the catalog knows
// it: the Simkl id becomes the primary identity and Meta.Source flips
// so edits route to Simkl.
func (r *Reconciler) adoptSimkl(ctx context.Context, e *domain.Entry) {
	if r.simkl == nil || e.Media.IDs.Simkl != 0 {
		return
	}
	match, err := r.simklMatch(ctx, e.Media)
	if err != nil {
		r.logger.Debug("simkl conversion skipped", "tmdb", e.Media.IDs.TMDB, "error", err)
		return
	}
	if match == nil {
		return
	}

	e.Media.IDs.Merge(match.IDs)
	e.Media.IDs.Simkl = simklIDOf(*match)
	e.Media.Source = domain.SourceSimkl
	e.Media.ID = e.Media.IDs.Simkl
	e.Meta.Source = domain.SourceSimkl
	r.logger.Debug("entry re-homed to simkl", "tmdb", e.Media.IDs.TMDB, "simkl", e.Media.ID)
}

// externalIDs is the cached TMDb external-IDs lookup
func (r *Reconciler) externalIDs(ctx context.Context, tmdbID int, mediaType domain.MediaType) (domain.IDs, error) {
	key := cache.Key(cache.ScopeMediaDetails, "idmap", fmt.Sprintf("tmdb_%s_%d", mediaType, tmdbID))

	var ids domain.IDs
	if r.cache != nil && r.cache.Get(key, &ids, cache.GetOptions{TTL: idMapTTL}) {
		return ids, nil
	}

	ids, err := queue.Do[domain.IDs](ctx, r.queue, queue.Request{
		Source: domain.SourceTMDB,
		Kind:   "external-ids",
		Fn: func(ctx context.Context) (any, error) {
			return r.tmdb.ExternalIDs(ctx, tmdbID, mediaType)
		},
	})
	if err != nil {
		return domain.IDs{}, err
	}

	if r.cache != nil {
		if err := r.cache.Set(key, ids, cache.SetOptions{
			Scope:  cache.ScopeMediaDetails,
			Source: domain.SourceTMDB,
			TTL:    idMapTTL,
			Tags:   []string{cache.MediaTag(tmdbID)},
		}); err != nil {
			r.logger.Warn("could not cache id mapping", "key", key, "error", err)
		}
	}
	return ids, nil
}

// simklMatch is the cached TMDb-to-Simkl lookup; a cached zero id
// records that Simkl does not know the item
func (r *Reconciler) simklMatch(ctx context.Context, m domain.Media) (*domain.Media, error) {
	key := cache.Key(cache.ScopeMediaDetails, "idmap", fmt.Sprintf("simkl_%s_%d", m.Type, m.IDs.TMDB))

	var cached domain.Media
	if r.cache != nil && r.cache.Get(key, &cached, cache.GetOptions{TTL: idMapTTL}) {
		if simklIDOf(cached) == 0 {
			return nil, nil
		}
		return &cached, nil
	}

	candidates, err := queue.Do[[]domain.Media](ctx, r.queue, queue.Request{
		Source: domain.SourceSimkl,
		Kind:   "lookup",
		Fn: func(ctx context.Context) (any, error) {
			return r.simkl.LookupTMDB(ctx, m.IDs.TMDB, m.Type)
		},
	})
	if err != nil {
		return nil, err
	}

	match := pickCandidate(m, candidates)
	var store domain.Media
	if match != nil {
		store = *match
	}
	if r.cache != nil {
		if err := r.cache.Set(key, store, cache.SetOptions{
			Scope:  cache.ScopeMediaDetails,
			Source: domain.SourceSimkl,
			TTL:    idMapTTL,
			Tags:   []string{cache.MediaTag(m.IDs.TMDB)},
		}); err != nil {
			r.logger.Warn("could not cache id mapping", "key", key, "error", err)
		}
	}
	return match, nil
}

// pickCandidate selects the Simkl candidate whose title best matches
// the item. A lone candidate wins outright; among several, fuzzy title
// ranking decides, falling back to the first when nothing matches.
func pickCandidate(m domain.Media, candidates []domain.Media) *domain.Media {
	usable := candidates[:0:0]
	for _, c := range candidates {
		if simklIDOf(c) != 0 {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return nil
	}
	if len(usable) == 1 {
		return &usable[0]
	}

	pattern := m.Title.Preferred()
	if pattern == "" {
		return &usable[0]
	}
	titles := make([]string, len(usable))
	for i, c := range usable {
		titles[i] = c.Title.Preferred()
	}
	matches := fuzzy.Find(pattern, titles)
	if len(matches) == 0 {
		return &usable[0]
	}
	return &usable[matches[0].Index]
}

func simklIDOf(m domain.Media) int {
	if m.IDs.Simkl != 0 {
		return m.IDs.Simkl
	}
	if m.Source == domain.SourceSimkl {
		return m.ID
	}
	return 0
}
