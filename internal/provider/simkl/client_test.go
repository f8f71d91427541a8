package simkl

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/logging"
)

// simklFake records requests, keeping POST bodies for sync assertions
type simklFake struct {
	mu     sync.Mutex
	reqs   []*http.Request
	bodies []string
}

func (f *simklFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *simklFake) at(i int) (*http.Request, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.reqs) {
		return nil, ""
	}
	return f.reqs[i], f.bodies[i]
}

func (f *simklFake) last() *http.Request {
	r, _ := f.at(f.count() - 1)
	return r
}

func newSimklServer(t *testing.T, respond func(r *http.Request) (int, string)) (*httptest.Server, *simklFake) {
	t.Helper()
	fake := &simklFake{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body string
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			body = string(raw)
		}
		fake.mu.Lock()
		fake.reqs = append(fake.reqs, r.Clone(context.Background()))
		fake.bodies = append(fake.bodies, body)
		fake.mu.Unlock()

		status, resp := respond(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, fake
}

func decodeSync(t *testing.T, body string) map[string][]map[string]any {
	t.Helper()
	out := map[string][]map[string]any{}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode sync body %q: %v", body, err)
	}
	return out
}

const animeRow = `{
	"title": "Sousou no Frieren",
	"en_title": "Frieren: Beyond Journey's End",
	"year": 2023,
	"anime_type": "tv",
	"ids": {"simkl": 1820766, "slug": "sousou-no-frieren", "mal": "52991", "anilist": "154587"},
	"poster": "18/1820766",
	"total_episodes": 28,
	"status": "ended",
	"first_aired": "2023-09-29T16:00:00Z",
	"network": "Madhouse",
	"genres": ["Adventure", "Fantasy"],
	"ratings": {"simkl": {"rating": 9.1, "votes": 9000}}
}`

const movieRow = `{
	"title": "The Matrix",
	"year": 1999,
	"type": "movie",
	"ids": {"simkl": 1074, "slug": "the-matrix", "tmdb": "603", "imdb": "tt0133093"},
	"poster": "00/1074",
	"released": "1999-03-31",
	"runtime": 136,
	"status": "released",
	"genres": ["Action", "Sci-Fi"],
	"ratings": {"simkl": {"rating": 8.6, "votes": 2412}}
}`

func animeList() string {
	return `{"anime": [
		{"status": "watching", "user_rating": 8, "watched_episodes_count": 12, "total_episodes_count": 28,
		 "last_watched_at": "2024-03-01T12:00:00Z", "show": ` + animeRow + `},
		{"status": "completed", "user_rating": null, "watched_episodes_count": 26, "total_episodes_count": 26,
		 "show": {"title": "Cowboy Bebop", "ids": {"simkl": 40130}}},
		{"status": "watching", "watched_episodes_count": 3,
		 "show": {"title": "Third", "ids": {"simkl": 77}}}
	]}`
}

func TestFetchListMapsEntries(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, animeList()
	})

	c := NewClient(srv.URL, nil, logging.Null())
	entries, err := c.FetchList(context.Background(), "", domain.MediaTypeAnime, nil, domain.Page{})
	if err != nil {
		t.Fatalf("FetchList: %v", err)
	}

	req := fake.last()
	if req.URL.Path != "/sync/all-items/anime" {
		t.Errorf("path = %q", req.URL.Path)
	}
	if req.URL.Query().Get("extended") != "full" {
		t.Errorf("query = %q", req.URL.RawQuery)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d", len(entries))
	}

	e := entries[0]
	if e.Media.ID != 1820766 || e.StatusOrEmpty() != string(domain.StatusCurrent) {
		t.Errorf("entry = %+v", e)
	}
	if e.Score == nil || *e.Score != 8 {
		t.Errorf("score = %v", e.Score)
	}
	if e.Progress != 12 || e.Media.Episodes != 28 {
		t.Errorf("progress = %d/%d", e.Progress, e.Media.Episodes)
	}
	if entries[1].Score != nil {
		t.Errorf("null user_rating mapped to %v", *entries[1].Score)
	}
}

func TestFetchListWindowsLocally(t *testing.T) {
	srv, _ := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, animeList()
	})

	c := NewClient(srv.URL, nil, logging.Null())
	entries, err := c.FetchList(context.Background(), "", domain.MediaTypeAnime, nil, domain.Page{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("FetchList: %v", err)
	}
	if len(entries) != 1 || entries[0].Media.ID != 77 {
		t.Fatalf("entries = %+v, want the third item alone", entries)
	}

	entries, err = c.FetchList(context.Background(), "", domain.MediaTypeAnime, nil, domain.Page{Page: 9, PerPage: 50})
	if err != nil {
		t.Fatalf("FetchList past end: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries past end = %d", len(entries))
	}
}

func TestFetchListStatusFilter(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `{"movies": []}`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	st := domain.StatusPlanning
	if _, err := c.FetchList(context.Background(), "", domain.MediaTypeMovie, &st, domain.Page{}); err != nil {
		t.Fatalf("FetchList: %v", err)
	}
	if fake.last().URL.Path != "/sync/all-items/movies/plantowatch" {
		t.Errorf("path = %q", fake.last().URL.Path)
	}
}

func TestFetchListRefusals(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `{}`
	})
	c := NewClient(srv.URL, nil, logging.Null())

	watching := domain.StatusCurrent
	repeating := domain.StatusRepeating
	cases := []struct {
		name      string
		mediaType domain.MediaType
		status    *domain.Status
	}{
		{"manga", domain.MediaTypeManga, nil},
		{"repeating", domain.MediaTypeAnime, &repeating},
		{"movie watching", domain.MediaTypeMovie, &watching},
	}
	for _, tc := range cases {
		_, err := c.FetchList(context.Background(), "", tc.mediaType, tc.status, domain.Page{})
		var cerr *domain.CapabilityError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: err = %v, want CapabilityError", tc.name, err)
		}
	}
	if fake.count() != 0 {
		t.Error("refusals must fail before any request")
	}
}

func TestFetchItemIsRecordless(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, movieRow
	})

	c := NewClient(srv.URL, nil, logging.Null())
	entry, err := c.FetchItem(context.Background(), 1074, domain.MediaTypeMovie)
	if err != nil {
		t.Fatalf("FetchItem: %v", err)
	}

	if fake.last().URL.Path != "/movies/1074" {
		t.Errorf("path = %q", fake.last().URL.Path)
	}
	if entry.HasRecord() {
		t.Errorf("entry = %+v, detail responses carry no record", entry)
	}
	if entry.Media.ID != 1074 || entry.Media.Title.Romaji != "The Matrix" {
		t.Errorf("media = %+v", entry.Media)
	}
	if entry.Media.AverageScore != 86 || entry.Media.Duration != 136 {
		t.Errorf("score = %d duration = %d", entry.Media.AverageScore, entry.Media.Duration)
	}
}

func TestFetchItemNotFound(t *testing.T) {
	srv, _ := newSimklServer(t, func(r *http.Request) (int, string) {
		return 404, `{"error": "not found"}`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	_, err := c.FetchItem(context.Background(), 9, domain.MediaTypeTV)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSearch(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `[` + movieRow + `]`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	entries, err := c.Search(context.Background(), "  matrix ", domain.MediaTypeMovie, domain.Page{Page: 2, PerPage: 25})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	req := fake.last()
	if req.URL.Path != "/search/movie" {
		t.Errorf("path = %q, search uses the singular form", req.URL.Path)
	}
	q := req.URL.Query()
	if q.Get("q") != "matrix" || q.Get("page") != "2" || q.Get("limit") != "25" {
		t.Errorf("query = %q", req.URL.RawQuery)
	}
	if len(entries) != 1 || entries[0].HasRecord() {
		t.Errorf("entries = %+v", entries)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `[]`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	_, err := c.Search(context.Background(), "   ", domain.MediaTypeTV, domain.Page{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if fake.count() != 0 {
		t.Error("empty query must fail before any request")
	}
}

func TestFetchTrending(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		// trending rows carry ids under simkl_id
		return 200, `[
			{"title": "One", "ids": {"simkl_id": 11}, "poster": "00/11"},
			{"title": "Two", "ids": {"simkl_id": 22}},
			{"title": "Three", "ids": {"simkl_id": 33}}
		]`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	entries, err := c.FetchTrending(context.Background(), domain.MediaTypeMovie, 2)
	if err != nil {
		t.Fatalf("FetchTrending: %v", err)
	}

	if fake.last().URL.Path != "/movies/trending" {
		t.Errorf("path = %q", fake.last().URL.Path)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want the limit applied", len(entries))
	}
	if entries[0].Media.ID != 11 || entries[0].Media.IDs.Simkl != 11 {
		t.Errorf("media = %+v, simkl_id spelling not honored", entries[0].Media)
	}
	if entries[0].Meta.Source != domain.SourceSimkl {
		t.Errorf("meta = %+v", entries[0].Meta)
	}
}

func TestFetchStats(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/users/settings"):
			return 200, `{"user": {"name": "takodachi"}, "account": {"id": 424242}}`
		case r.URL.Path == "/users/424242/stats":
			return 200, `{
				"total_mins": 99999,
				"anime": {
					"total_mins": 43920,
					"watching": {"count": 3, "watched_episodes_count": 30},
					"plantowatch": {"count": 10},
					"hold": {"count": 1, "watched_episodes_count": 4},
					"completed": {"count": 7, "watched_episodes_count": 150},
					"dropped": {"count": 2, "watched_episodes_count": 5}
				},
				"tv": {"total_mins": 1000},
				"movies": {"total_mins": 2000}
			}`
		}
		return 404, `{}`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	stats, err := c.FetchStats(context.Background(), "ignored")
	if err != nil {
		t.Fatalf("FetchStats: %v", err)
	}

	if fake.count() != 2 {
		t.Fatalf("requests = %d, want settings then stats", fake.count())
	}
	if stats.Username != "takodachi" || stats.Source != domain.SourceSimkl {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Anime.Count != 23 || stats.Anime.MinutesWatched != 43920 || stats.Anime.EpisodesWatched != 189 {
		t.Errorf("anime = %+v", stats.Anime)
	}
	if stats.Manga.Count != 0 {
		t.Errorf("manga = %+v, Simkl has no manga", stats.Manga)
	}
}

func simklEntry(mediaType domain.MediaType) *domain.Entry {
	return &domain.Entry{
		Media: domain.Media{Source: domain.SourceSimkl, ID: 1074, IDs: domain.IDs{Simkl: 1074}, Type: mediaType},
		Meta:  domain.Meta{Source: domain.SourceSimkl, MediaType: mediaType},
	}
}

func TestUpdateEntryStatusAndScore(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		if r.URL.Path == "/sync/add-to-list" {
			return 200, `{"added": {"movies": 1}, "not_found": {"movies": []}}`
		}
		return 200, `{}`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	status := domain.StatusCompleted
	score := 8.0
	saved, err := c.UpdateEntry(context.Background(), simklEntry(domain.MediaTypeMovie), domain.EntryPatch{Status: &status, Score: &score})
	if err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}

	if fake.count() != 2 {
		t.Fatalf("requests = %d, want list move then rating", fake.count())
	}

	listReq, listBody := fake.at(0)
	if listReq.URL.Path != "/sync/add-to-list" {
		t.Errorf("first path = %q", listReq.URL.Path)
	}
	sync := decodeSync(t, listBody)
	movies := sync["movies"]
	if len(movies) != 1 || movies[0]["to"] != "completed" {
		t.Errorf("sync body = %v", sync)
	}
	ids, _ := movies[0]["ids"].(map[string]any)
	if ids["simkl"] != float64(1074) {
		t.Errorf("ids = %v", ids)
	}

	rateReq, rateBody := fake.at(1)
	if rateReq.URL.Path != "/sync/ratings" {
		t.Errorf("second path = %q", rateReq.URL.Path)
	}
	rated := decodeSync(t, rateBody)
	if rated["movies"][0]["rating"] != float64(8) {
		t.Errorf("rating body = %v", rated)
	}

	if saved.StatusOrEmpty() != string(domain.StatusCompleted) || saved.Score == nil || *saved.Score != 8 {
		t.Errorf("saved = %+v", saved)
	}
	if saved.ID != 1074 {
		t.Errorf("saved.ID = %d", saved.ID)
	}
}

func TestUpdateEntryAnimeRidesShowsArray(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `{"added": {"shows": 1}, "not_found": {"shows": []}}`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	status := domain.StatusCurrent
	if _, err := c.UpdateEntry(context.Background(), simklEntry(domain.MediaTypeAnime), domain.EntryPatch{Status: &status}); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}

	_, body := fake.at(0)
	sync := decodeSync(t, body)
	if len(sync["shows"]) != 1 || sync["shows"][0]["to"] != "watching" {
		t.Errorf("sync body = %v", sync)
	}
}

func TestUpdateEntryScoreCleared(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `{}`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	score := 0.0
	saved, err := c.UpdateEntry(context.Background(), simklEntry(domain.MediaTypeMovie), domain.EntryPatch{Score: &score})
	if err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}

	req, body := fake.at(0)
	if req.URL.Path != "/sync/ratings/remove" {
		t.Errorf("path = %q, zero score must clear the rating", req.URL.Path)
	}
	if strings.Contains(body, "rating") {
		t.Errorf("body = %q, removals carry no rating", body)
	}
	if saved.Score != nil {
		t.Errorf("saved.Score = %v", *saved.Score)
	}
}

func TestUpdateEntryMovieWatchingRefused(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `{}`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	status := domain.StatusCurrent
	_, err := c.UpdateEntry(context.Background(), simklEntry(domain.MediaTypeMovie), domain.EntryPatch{Status: &status})
	var cerr *domain.CapabilityError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want CapabilityError", err)
	}
	if fake.count() != 0 {
		t.Error("illegal movie status must fail before any request")
	}
}

func TestUpdateEntryProgressRefused(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `{}`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	progress := 5
	_, err := c.UpdateEntry(context.Background(), simklEntry(domain.MediaTypeAnime), domain.EntryPatch{Progress: &progress})
	var cerr *domain.CapabilityError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want CapabilityError", err)
	}
	if fake.count() != 0 {
		t.Error("progress edits must fail before any request")
	}
}

func TestUpdateEntryNotOnSimkl(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `{}`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	entry := &domain.Entry{
		Media: domain.Media{Source: domain.SourceTMDB, ID: 603},
		Meta:  domain.Meta{Source: domain.SourceTMDB, MediaType: domain.MediaTypeMovie},
	}
	status := domain.StatusCompleted
	_, err := c.UpdateEntry(context.Background(), entry, domain.EntryPatch{Status: &status})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if fake.count() != 0 {
		t.Error("missing simkl id must fail before any request")
	}
}

func TestUpdateEntryNotFoundOnSync(t *testing.T) {
	srv, _ := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `{"added": {"movies": 0}, "not_found": {"movies": [{"simkl": 1074}]}}`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	status := domain.StatusCompleted
	_, err := c.UpdateEntry(context.Background(), simklEntry(domain.MediaTypeMovie), domain.EntryPatch{Status: &status})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupTMDB(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `[{"type": "movie", "title": "The Matrix", "year": 1999, "ids": {"simkl": 1074, "tmdb": "603"}}]`
	})

	c := NewClient(srv.URL, nil, logging.Null())
	media, err := c.LookupTMDB(context.Background(), 603, domain.MediaTypeMovie)
	if err != nil {
		t.Fatalf("LookupTMDB: %v", err)
	}

	req := fake.last()
	if req.URL.Path != "/search/id" {
		t.Errorf("path = %q", req.URL.Path)
	}
	q := req.URL.Query()
	if q.Get("tmdb") != "603" || q.Get("type") != "movie" {
		t.Errorf("query = %q", req.URL.RawQuery)
	}
	if len(media) != 1 || media[0].ID != 1074 || media[0].IDs.TMDB != 603 {
		t.Errorf("media = %+v", media)
	}
}

func TestCapabilitiesUpdateOnly(t *testing.T) {
	c := NewClient("", nil, logging.Null())
	caps := c.Capabilities()
	if !caps.Update || caps.Remove || caps.Favorites {
		t.Errorf("capabilities = %+v", caps)
	}
}

func TestHeaderHookAttachesKeyAndToken(t *testing.T) {
	srv, fake := newSimklServer(t, func(r *http.Request) (int, string) {
		return 200, `{"anime": []}`
	})

	headers := func(context.Context) (map[string]string, error) {
		return map[string]string{
			"Authorization": "Bearer tok123",
			"simkl-api-key": "cid",
		}, nil
	}
	c := NewClient(srv.URL, headers, logging.Null())
	if _, err := c.FetchList(context.Background(), "", domain.MediaTypeAnime, nil, domain.Page{}); err != nil {
		t.Fatalf("FetchList: %v", err)
	}

	req := fake.last()
	if req.Header.Get("Authorization") != "Bearer tok123" || req.Header.Get("simkl-api-key") != "cid" {
		t.Errorf("headers = %v", req.Header)
	}
}
