// Package media is the unified query and mutation surface over every
// provider. Reads go cache-first, then through the request queue with
// a token check ahead of the call; a failed live fetch falls back to a
// stale cache copy when one exists. Edits live in the coordinator and
// bypass the read cache entirely.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/zoro-md/zoro/internal/cache"
	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/provider"
	"github.com/zoro-md/zoro/internal/queue"
)

// Service answers list, item, search, and stats queries through the
// cache, the queue, and the provider registry
type Service struct {
	registry *provider.Registry
	auth     map[domain.Source]domain.AuthManager
	cache    *cache.Store
	queue    *queue.Queue
	logger   *slog.Logger
}

// NewService creates the query service. The auth map holds one manager
// per interactive provider; catalogs need none.
func NewService(registry *provider.Registry, auth map[domain.Source]domain.AuthManager, cacheStore *cache.Store, q *queue.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if auth == nil {
		auth = map[domain.Source]domain.AuthManager{}
	}
	return &Service{
		registry: registry,
		auth:     auth,
		cache:    cacheStore,
		queue:    q,
		logger:   logger,
	}
}

// List returns one page of a user's list, from cache when fresh
func (s *Service) List(ctx context.Context, src domain.Source, username string, mediaType domain.MediaType, listStatus *domain.Status, page domain.Page) ([]domain.Entry, error) {
	p, err := s.registry.For(src)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()

	status := ""
	if listStatus != nil {
		status = string(*listStatus)
	}
	key := cache.Key(cache.ScopeUserData, string(src),
		fmt.Sprintf("list_%s_%s_%s_%d_%d", username, mediaType, status, page.Page, page.PerPage))

	var cached []domain.Entry
	if s.cache.Get(key, &cached, cache.GetOptions{}) {
		return cached, nil
	}

	entries, err := fetch[[]domain.Entry](ctx, s, src, "list", func(ctx context.Context) (any, error) {
		return p.FetchList(ctx, username, mediaType, listStatus, page)
	})
	if err != nil {
		if staleWorthy(err) && s.cache.Get(key, &cached, cache.GetOptions{TTL: cache.TTLInfinite}) {
			s.logger.Warn("serving stale list after fetch failure", "source", src, "user", username, "error", err)
			return cached, nil
		}
		return nil, err
	}

	s.store(key, entries, cache.SetOptions{
		Scope:  cache.ScopeUserData,
		Source: src,
		Tags:   listTags(username, entries),
	})
	return entries, nil
}

// Item returns the user's entry for one media item; without a list
// record the entry carries the media alone, so rendering is uniform
func (s *Service) Item(ctx context.Context, src domain.Source, mediaID int, mediaType domain.MediaType) (*domain.Entry, error) {
	p, err := s.registry.For(src)
	if err != nil {
		return nil, err
	}

	key := cache.Key(cache.ScopeMediaDetails, string(src), fmt.Sprintf("item_%s_%d", mediaType, mediaID))

	var cached domain.Entry
	if s.cache.Get(key, &cached, cache.GetOptions{}) {
		return &cached, nil
	}

	entry, err := fetch[*domain.Entry](ctx, s, src, "item", func(ctx context.Context) (any, error) {
		return p.FetchItem(ctx, mediaID, mediaType)
	})
	if err != nil {
		if staleWorthy(err) && s.cache.Get(key, &cached, cache.GetOptions{TTL: cache.TTLInfinite}) {
			s.logger.Warn("serving stale item after fetch failure", "source", src, "media", mediaID, "error", err)
			return &cached, nil
		}
		return nil, err
	}

	s.store(key, entry, cache.SetOptions{
		Scope:  cache.ScopeMediaDetails,
		Source: src,
		Tags:   []string{cache.MediaTag(mediaID)},
	})
	return entry, nil
}

// Search queries the provider catalog and re-ranks results by title
// closeness to the query, since provider relevance ordering varies
func (s *Service) Search(ctx context.Context, src domain.Source, query string, mediaType domain.MediaType, page domain.Page) ([]domain.Entry, error) {
	p, err := s.registry.For(src)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()

	key := cache.Key(cache.ScopeSearchResults, string(src),
		fmt.Sprintf("search_%s_%s_%d_%d", mediaType, query, page.Page, page.PerPage))

	var cached []domain.Entry
	if s.cache.Get(key, &cached, cache.GetOptions{}) {
		return cached, nil
	}

	entries, err := fetch[[]domain.Entry](ctx, s, src, "search", func(ctx context.Context) (any, error) {
		return p.Search(ctx, query, mediaType, page)
	})
	if err != nil {
		if staleWorthy(err) && s.cache.Get(key, &cached, cache.GetOptions{TTL: cache.TTLInfinite}) {
			return cached, nil
		}
		return nil, err
	}

	entries = rankResults(query, entries)
	s.store(key, entries, cache.SetOptions{
		Scope:  cache.ScopeSearchResults,
		Source: src,
	})
	return entries, nil
}

// Stats returns the user's aggregate list statistics
func (s *Service) Stats(ctx context.Context, src domain.Source, username string) (*domain.UserStats, error) {
	p, err := s.registry.For(src)
	if err != nil {
		return nil, err
	}

	key := cache.Key(cache.ScopeUserData, string(src), "stats_"+username)

	var cached domain.UserStats
	if s.cache.Get(key, &cached, cache.GetOptions{}) {
		return &cached, nil
	}

	stats, err := fetch[*domain.UserStats](ctx, s, src, "stats", func(ctx context.Context) (any, error) {
		return p.FetchStats(ctx, username)
	})
	if err != nil {
		if staleWorthy(err) && s.cache.Get(key, &cached, cache.GetOptions{TTL: cache.TTLInfinite}) {
			return &cached, nil
		}
		return nil, err
	}

	s.store(key, stats, cache.SetOptions{
		Scope:  cache.ScopeUserData,
		Source: src,
		Tags:   []string{username},
	})
	return stats, nil
}

// AuthenticatedUsername resolves the logged-in user for a provider,
// for callers that fill a missing username from the session
func (s *Service) AuthenticatedUsername(ctx context.Context, src domain.Source) (string, error) {
	mgr, ok := s.auth[src]
	if !ok {
		return "", &domain.AuthError{Source: src, Reason: "no authentication for source", Err: domain.ErrLoginRequired}
	}
	return mgr.AuthenticatedUsername(ctx)
}

// fetch runs one provider call through the queue, validating the
// session first when the provider has one. The queue re-runs Fn after
// a 401; the closure remembers the rejection so the next attempt
// refreshes instead of reusing the same token.
func fetch[T any](ctx context.Context, s *Service, src domain.Source, kind string, fn func(ctx context.Context) (any, error)) (T, error) {
	rejected := false
	return queue.Do[T](ctx, s.queue, queue.Request{
		Source: src,
		Kind:   kind,
		Fn: func(ctx context.Context) (any, error) {
			if err := s.ensureSession(ctx, src, rejected); err != nil {
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

// ensureSession refreshes or validates the provider session before a
// call. Catalogs and logged-out interactive providers proceed
// anonymously; their calls fail with AuthError only if the endpoint
// itself demands a login. With rejected set the held token is marked
// unusable first, forcing a refresh where the provider supports one.
func (s *Service) ensureSession(ctx context.Context, src domain.Source, rejected bool) error {
	mgr, ok := s.auth[src]
	if !ok || !mgr.IsLoggedIn() {
		return nil
	}
	if rejected {
		mgr.InvalidateToken()
	}
	return mgr.EnsureValidToken(ctx)
}

func (s *Service) store(key string, value any, opts cache.SetOptions) {
	if err := s.cache.Set(key, value, opts); err != nil {
		s.logger.Warn("could not cache response", "key", key, "error", err)
	}
}

// listTags tags a list page with the owning user and every media id it
// contains, so a single edit invalidates the pages showing it
func listTags(username string, entries []domain.Entry) []string {
	tags := make([]string, 0, len(entries)+1)
	if username != "" {
		tags = append(tags, username)
	}
	for _, e := range entries {
		tags = append(tags, cache.MediaTag(e.Media.ID))
	}
	return tags
}

// staleWorthy reports whether a failure justifies serving expired
// cache: the provider was unreachable or refusing, not the request
// malformed
func staleWorthy(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrOffline) {
		return true
	}
	if domain.IsRateLimited(err) {
		return true
	}
	var pe *domain.ProviderError
	return errors.As(err, &pe) && pe.Status >= 500
}

// rankResults reorders search hits by fuzzy title distance to the
// query, keeping the provider's order among equals
func rankResults(query string, entries []domain.Entry) []domain.Entry {
	type ranked struct {
		entry domain.Entry
		rank  int
		pos   int
	}
	rs := make([]ranked, len(entries))
	for i, e := range entries {
		rank := fuzzy.RankMatchNormalizedFold(query, e.Media.DisplayTitle())
		if rank < 0 {
			// No subsequence match; park it after every match
			rank = 1 << 20
		}
		rs[i] = ranked{entry: e, rank: rank, pos: i}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].rank != rs[j].rank {
			return rs[i].rank < rs[j].rank
		}
		return rs[i].pos < rs[j].pos
	})
	out := make([]domain.Entry, len(entries))
	for i, r := range rs {
		out[i] = r.entry
	}
	return out
}
