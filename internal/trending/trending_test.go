package trending

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zoro-md/zoro/internal/cache"
	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/logging"
	"github.com/zoro-md/zoro/internal/provider"
	"github.com/zoro-md/zoro/internal/queue"
	"github.com/zoro-md/zoro/internal/ratelimit"
)

type fakeFeed struct {
	mu      sync.Mutex
	src     domain.Source
	calls   int
	entries []domain.Entry
	err     error
}

func (f *fakeFeed) FetchTrending(_ context.Context, mediaType domain.MediaType, limit int) ([]domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.entries
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func catalogEntry(src domain.Source, id int, mediaType domain.MediaType) domain.Entry {
	return domain.Entry{
		Media: domain.Media{Source: src, ID: id, Type: mediaType},
	}
}

func newAggregator(t *testing.T, feeds ...*fakeFeed) (*Aggregator, *cache.Store) {
	t.Helper()

	store, err := cache.NewStore("", logging.Null())
	if err != nil {
		t.Fatalf("cache.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	q := queue.New(ratelimit.NewRegistry(logging.Null()), queue.Options{
		Spacing:     time.Millisecond,
		TaskTimeout: 5 * time.Second,
		MaxAttempts: 1,
		RetryBase:   time.Millisecond,
	}, logging.Null())
	t.Cleanup(q.Close)

	reg := provider.NewRegistry()
	for _, f := range feeds {
		reg.RegisterTrending(f.src, f)
	}
	return New(reg, store, q, nil, logging.Null()), store
}

func TestRoutePolicy(t *testing.T) {
	tests := []struct {
		name      string
		requested domain.Source
		mediaType domain.MediaType
		want      []domain.Source
	}{
		{"movies always tmdb", domain.SourceSimkl, domain.MediaTypeMovie, []domain.Source{domain.SourceTMDB}},
		{"tv always tmdb", domain.SourceAniList, domain.MediaTypeTV, []domain.Source{domain.SourceTMDB}},
		{"manga default anilist then mal", "", domain.MediaTypeManga, []domain.Source{domain.SourceAniList, domain.SourceMAL}},
		{"manga never simkl", domain.SourceSimkl, domain.MediaTypeManga, []domain.Source{domain.SourceAniList, domain.SourceMAL}},
		{"manga mal honored", domain.SourceMAL, domain.MediaTypeManga, []domain.Source{domain.SourceMAL, domain.SourceAniList}},
		{"anime honors request", domain.SourceSimkl, domain.MediaTypeAnime, []domain.Source{domain.SourceSimkl}},
		{"anime default anilist", "", domain.MediaTypeAnime, []domain.Source{domain.SourceAniList}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Route(tt.requested, tt.mediaType)
			if len(got) != len(tt.want) {
				t.Fatalf("Route = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Route = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestFetchCachesForADay(t *testing.T) {
	feed := &fakeFeed{src: domain.SourceTMDB, entries: []domain.Entry{
		catalogEntry(domain.SourceTMDB, 603, domain.MediaTypeMovie),
	}}
	a, _ := newAggregator(t, feed)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := a.Fetch(ctx, domain.SourceSimkl, domain.MediaTypeMovie, 40)
		if err != nil {
			t.Fatalf("Fetch #%d: %v", i+1, err)
		}
		if len(got) != 1 {
			t.Fatalf("Fetch #%d returned %d entries", i+1, len(got))
		}
	}
	if feed.calls != 1 {
		t.Errorf("feed called %d times, want 1", feed.calls)
	}
}

func TestFetchStampsMeta(t *testing.T) {
	feed := &fakeFeed{src: domain.SourceTMDB, entries: []domain.Entry{
		catalogEntry(domain.SourceTMDB, 603, domain.MediaTypeMovie),
	}}
	a, _ := newAggregator(t, feed)

	got, err := a.Fetch(context.Background(), "", domain.MediaTypeMovie, 40)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	meta := got[0].Meta
	if meta.Source != domain.SourceTMDB || meta.MediaType != domain.MediaTypeMovie || meta.FetchedAt.IsZero() {
		t.Errorf("meta = %+v", meta)
	}
}

func TestMangaFallsBackToMAL(t *testing.T) {
	anilist := &fakeFeed{src: domain.SourceAniList, err: &domain.ProviderError{Source: domain.SourceAniList, Status: 500}}
	mal := &fakeFeed{src: domain.SourceMAL, entries: []domain.Entry{
		catalogEntry(domain.SourceMAL, 2, domain.MediaTypeManga),
	}}
	a, _ := newAggregator(t, anilist, mal)

	got, err := a.Fetch(context.Background(), domain.SourceAniList, domain.MediaTypeManga, 40)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].Media.Source != domain.SourceMAL {
		t.Fatalf("got %+v, want the MAL fallback list", got)
	}
	if anilist.calls == 0 {
		t.Error("anilist was never tried")
	}
}

func TestFetchServesStaleOnOutage(t *testing.T) {
	feed := &fakeFeed{src: domain.SourceTMDB, entries: []domain.Entry{
		catalogEntry(domain.SourceTMDB, 603, domain.MediaTypeMovie),
	}}
	a, store := newAggregator(t, feed)
	ctx := context.Background()

	if _, err := a.Fetch(ctx, "", domain.MediaTypeMovie, 40); err != nil {
		t.Fatalf("warm Fetch: %v", err)
	}

	// Age the cached list past its TTL, then break the feed
	key := cache.Key(cache.ScopeTrending, "trending", "tmdb_MOVIE_40")
	var warm []domain.Entry
	if !store.Get(key, &warm, cache.GetOptions{TTL: cache.TTLInfinite}) {
		t.Fatal("expected warm trending entry")
	}
	store.Delete(key)
	if err := store.Set(key, warm, cache.SetOptions{Scope: cache.ScopeTrending, Source: domain.SourceTMDB, TTL: time.Nanosecond}); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	time.Sleep(time.Millisecond)

	feed.mu.Lock()
	feed.err = &domain.NetworkError{Source: domain.SourceTMDB, Err: context.DeadlineExceeded}
	feed.mu.Unlock()

	got, err := a.Fetch(ctx, "", domain.MediaTypeMovie, 40)
	if err != nil {
		t.Fatalf("Fetch during outage: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("stale read returned %d entries", len(got))
	}
}

func TestFetchFailsWhenColdAndDown(t *testing.T) {
	feed := &fakeFeed{src: domain.SourceTMDB, err: &domain.ProviderError{Source: domain.SourceTMDB, Status: 500}}
	a, _ := newAggregator(t, feed)

	if _, err := a.Fetch(context.Background(), "", domain.MediaTypeMovie, 40); err == nil {
		t.Fatal("expected error with no cache to fall back on")
	}
}
