package jikan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/logging"
)

func newJikanServer(t *testing.T, respond func(r *http.Request) (int, string)) (*httptest.Server, *[]*http.Request) {
	t.Helper()
	var mu sync.Mutex
	var reqs []*http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, r.Clone(context.Background()))
		mu.Unlock()

		status, resp := respond(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

const animeRow = `{
	"mal_id": 52991,
	"url": "https://myanimelist.net/anime/52991/Sousou_no_Frieren",
	"images": {"jpg": {"image_url": "https://cdn.example/small.jpg", "large_image_url": "https://cdn.example/large.jpg"}},
	"title": "Sousou no Frieren",
	"title_english": "Frieren: Beyond Journey's End",
	"title_japanese": "葬送のフリーレン",
	"type": "TV",
	"episodes": 28,
	"status": "Finished Airing",
	"score": 9.31,
	"scored_by": 620000,
	"genres": [{"name": "Adventure"}, {"name": "Fantasy"}],
	"studios": [{"name": "Madhouse"}],
	"aired": {"from": "2023-09-29T00:00:00+00:00", "to": "2024-03-22T00:00:00+00:00"}
}`

func TestFetchTrendingMapsTopAnime(t *testing.T) {
	srv, reqs := newJikanServer(t, func(r *http.Request) (int, string) {
		if r.URL.Path != "/top/anime" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		return 200, `{"data": [` + animeRow + `], "pagination": {"has_next_page": false}}`
	})

	c := NewClient(srv.URL, logging.Null())
	entries, err := c.FetchTrending(context.Background(), domain.MediaTypeAnime, 40)
	if err != nil {
		t.Fatalf("FetchTrending: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got := (*reqs)[0].URL.Query().Get("filter"); got != "bypopularity" {
		t.Errorf("filter = %q", got)
	}

	m := entries[0].Media
	if m.Source != domain.SourceJikan || m.ID != 52991 || m.IDs.MAL != 52991 {
		t.Errorf("identity = %s/%d ids=%+v", m.Source, m.ID, m.IDs)
	}
	if m.Title.English != "Frieren: Beyond Journey's End" || m.Title.Romaji != "Sousou no Frieren" {
		t.Errorf("title = %+v", m.Title)
	}
	if m.AverageScore != 93 {
		t.Errorf("averageScore = %d, want 93", m.AverageScore)
	}
	if m.AiringStatus != "FINISHED" {
		t.Errorf("airingStatus = %q", m.AiringStatus)
	}
	if m.Studio != "Madhouse" {
		t.Errorf("studio = %q", m.Studio)
	}
	if m.CoverURL != "https://cdn.example/large.jpg" {
		t.Errorf("coverURL = %q", m.CoverURL)
	}
	if m.StartDate.Year != 2023 || m.EndDate.Year != 2024 {
		t.Errorf("dates = %+v .. %+v", m.StartDate, m.EndDate)
	}
	if entries[0].HasRecord() {
		t.Error("catalog entry should carry no list record")
	}
}

func TestFetchTrendingPagesUntilLimit(t *testing.T) {
	srv, reqs := newJikanServer(t, func(r *http.Request) (int, string) {
		return 200, `{"data": [` + animeRow + `], "pagination": {"has_next_page": true}}`
	})

	c := NewClient(srv.URL, logging.Null())
	entries, err := c.FetchTrending(context.Background(), domain.MediaTypeAnime, 3)
	if err != nil {
		t.Fatalf("FetchTrending: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if len(*reqs) != 3 {
		t.Errorf("made %d requests, want 3", len(*reqs))
	}
}

func TestFetchTrendingRejectsMovies(t *testing.T) {
	c := NewClient("http://unused", logging.Null())
	_, err := c.FetchTrending(context.Background(), domain.MediaTypeMovie, 40)
	var ce *domain.CapabilityError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CapabilityError", err)
	}
}

func TestSearchManga(t *testing.T) {
	srv, reqs := newJikanServer(t, func(r *http.Request) (int, string) {
		return 200, `{"data": [
			{"mal_id": 2, "title": "Berserk", "title_japanese": "ベルセルク", "type": "Manga",
			 "chapters": 0, "volumes": 0, "status": "Publishing", "score": 9.47,
			 "published": {"from": "1989-08-25T00:00:00+00:00"}}
		], "pagination": {"has_next_page": false}}`
	})

	c := NewClient(srv.URL, logging.Null())
	entries, err := c.Search(context.Background(), "berserk", domain.MediaTypeManga, domain.Page{PerPage: 50})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	req := (*reqs)[0]
	if req.URL.Path != "/manga" {
		t.Errorf("path = %s", req.URL.Path)
	}
	// Requested 50 but Jikan caps pages at 25
	if got := req.URL.Query().Get("limit"); got != "25" {
		t.Errorf("limit = %q, want 25", got)
	}

	m := entries[0].Media
	if m.Type != domain.MediaTypeManga || m.Format != "MANGA" {
		t.Errorf("type = %s format = %s", m.Type, m.Format)
	}
	if m.AiringStatus != "RELEASING" {
		t.Errorf("airingStatus = %q", m.AiringStatus)
	}
	if m.StartDate.Year != 1989 {
		t.Errorf("startDate = %+v", m.StartDate)
	}
}

func TestFetchItem(t *testing.T) {
	srv, reqs := newJikanServer(t, func(r *http.Request) (int, string) {
		return 200, `{"data": ` + animeRow + `}`
	})

	c := NewClient(srv.URL, logging.Null())
	entry, err := c.FetchItem(context.Background(), 52991, domain.MediaTypeAnime)
	if err != nil {
		t.Fatalf("FetchItem: %v", err)
	}
	if (*reqs)[0].URL.Path != "/anime/52991" {
		t.Errorf("path = %s", (*reqs)[0].URL.Path)
	}
	if entry.Media.ID != 52991 || entry.HasRecord() {
		t.Errorf("entry = %+v", entry)
	}
}

func TestEmptySearchRejected(t *testing.T) {
	c := NewClient("http://unused", logging.Null())
	_, err := c.Search(context.Background(), "  ", domain.MediaTypeAnime, domain.Page{})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
