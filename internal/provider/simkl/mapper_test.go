package simkl

import (
	"testing"
	"time"

	"github.com/zoro-md/zoro/internal/domain"
)

func floatp(v float64) *float64 { return &v }

func TestStatusToSimkl(t *testing.T) {
	cases := []struct {
		in   domain.Status
		want string
	}{
		{domain.StatusCurrent, "watching"},
		{domain.StatusPlanning, "plantowatch"},
		{domain.StatusCompleted, "completed"},
		{domain.StatusPaused, "hold"},
		{domain.StatusDropped, "dropped"},
		{domain.StatusRepeating, ""},
	}
	for _, tc := range cases {
		if got := statusToSimkl(tc.in); got != tc.want {
			t.Errorf("statusToSimkl(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStatusFromSimkl(t *testing.T) {
	cases := []struct {
		in   string
		want domain.Status
	}{
		{"watching", domain.StatusCurrent},
		{"plantowatch", domain.StatusPlanning},
		{"completed", domain.StatusCompleted},
		{"hold", domain.StatusPaused},
		{"dropped", domain.StatusDropped},
		{"notwatching", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := statusFromSimkl(tc.in); got != tc.want {
			t.Errorf("statusFromSimkl(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, st := range []domain.Status{
		domain.StatusCurrent, domain.StatusPlanning, domain.StatusCompleted,
		domain.StatusPaused, domain.StatusDropped,
	} {
		if got := statusFromSimkl(statusToSimkl(st)); got != st {
			t.Errorf("round trip of %s = %s", st, got)
		}
	}
}

func TestMovieStatusLegal(t *testing.T) {
	for _, st := range []domain.Status{domain.StatusPlanning, domain.StatusCompleted, domain.StatusDropped} {
		if !movieStatusLegal(st) {
			t.Errorf("movieStatusLegal(%s) = false", st)
		}
	}
	for _, st := range []domain.Status{domain.StatusCurrent, domain.StatusPaused, domain.StatusRepeating} {
		if movieStatusLegal(st) {
			t.Errorf("movieStatusLegal(%s) = true, movies have no such list", st)
		}
	}
}

func TestEndpointPaths(t *testing.T) {
	// movies are plural in catalog paths but singular in search, and
	// anime ride the shows array in sync bodies
	cases := []struct {
		t                          domain.MediaType
		list, detail, search, sync string
	}{
		{domain.MediaTypeAnime, "anime", "anime", "anime", "shows"},
		{domain.MediaTypeTV, "shows", "tv", "tv", "shows"},
		{domain.MediaTypeMovie, "movies", "movies", "movie", "movies"},
	}
	for _, tc := range cases {
		if got := listPath(tc.t); got != tc.list {
			t.Errorf("listPath(%s) = %q, want %q", tc.t, got, tc.list)
		}
		if got := detailPath(tc.t); got != tc.detail {
			t.Errorf("detailPath(%s) = %q, want %q", tc.t, got, tc.detail)
		}
		if got := searchPath(tc.t); got != tc.search {
			t.Errorf("searchPath(%s) = %q, want %q", tc.t, got, tc.search)
		}
		if got := syncKey(tc.t); got != tc.sync {
			t.Errorf("syncKey(%s) = %q, want %q", tc.t, got, tc.sync)
		}
	}
}

func TestImageURLs(t *testing.T) {
	if got := posterURL("00/1074"); got != "https://simkl.in/posters/00/1074_m.jpg" {
		t.Errorf("posterURL = %q", got)
	}
	if got := fanartURL("18/1820766f"); got != "https://simkl.in/fanart/18/1820766f_medium.jpg" {
		t.Errorf("fanartURL = %q", got)
	}
	if posterURL("") != "" || fanartURL("") != "" {
		t.Error("empty fragments must stay empty")
	}
}

func TestParseAirDate(t *testing.T) {
	cases := []struct {
		in   string
		want domain.FuzzyDate
	}{
		{"2023-09-29T16:00:00Z", domain.FuzzyDate{Year: 2023, Month: 9, Day: 29}},
		{"1999-03-31", domain.FuzzyDate{Year: 1999, Month: 3, Day: 31}},
		{"1999", domain.FuzzyDate{Year: 1999}},
		{"", domain.FuzzyDate{}},
		{"soon", domain.FuzzyDate{}},
	}
	for _, tc := range cases {
		if got := parseAirDate(tc.in); got != tc.want {
			t.Errorf("parseAirDate(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestIDsFrom(t *testing.T) {
	ids := idsFrom(simklIDs{Simkl: 1074, TMDB: "603", IMDB: "tt0133093", MAL: "not-a-number"})
	if ids.Simkl != 1074 || ids.TMDB != 603 || ids.IMDB != "tt0133093" {
		t.Errorf("ids = %+v", ids)
	}
	if ids.MAL != 0 {
		t.Errorf("ids.MAL = %d, unparsable cross-walk values must stay unknown", ids.MAL)
	}

	trending := idsFrom(simklIDs{SimklID: 99})
	if trending.Simkl != 99 {
		t.Errorf("trending ids = %+v, simkl_id spelling not honored", trending)
	}
}

func TestToMediaMovie(t *testing.T) {
	sh := &simklShow{
		Title:    "The Matrix",
		Year:     1999,
		Type:     "movie",
		IDs:      simklIDs{Simkl: 1074, Slug: "the-matrix", TMDB: "603", IMDB: "tt0133093"},
		Poster:   "00/1074",
		Released: "1999-03-31",
		Runtime:  136,
		Status:   "released",
		Genres:   []string{"Action", "Sci-Fi"},
		Overview: "A hacker learns the truth.",
		Ratings:  &simklRatings{Simkl: simklRating{Rating: 8.55, Votes: 2412}},
	}
	m := toMedia(sh, domain.MediaTypeMovie)

	if m.Source != domain.SourceSimkl || m.ID != 1074 {
		t.Fatalf("identity = %s/%d", m.Source, m.ID)
	}
	if m.Type != domain.MediaTypeMovie || m.Format != "MOVIE" {
		t.Errorf("type = %s format = %q", m.Type, m.Format)
	}
	if m.AverageScore != 86 || m.Votes != 2412 {
		t.Errorf("score = %d/%d, 0-10 ratings scale to 0-100", m.AverageScore, m.Votes)
	}
	if m.StartDate != (domain.FuzzyDate{Year: 1999, Month: 3, Day: 31}) || m.Year != 1999 {
		t.Errorf("dates = %+v year %d", m.StartDate, m.Year)
	}
	if m.SiteURL != "https://simkl.com/movies/1074/the-matrix" {
		t.Errorf("siteURL = %q", m.SiteURL)
	}
	if m.CoverURL != "https://simkl.in/posters/00/1074_m.jpg" {
		t.Errorf("coverURL = %q", m.CoverURL)
	}
	if m.IDs.TMDB != 603 || m.IDs.IMDB != "tt0133093" {
		t.Errorf("ids = %+v", m.IDs)
	}
}

func TestToMediaAnimeFormatAndYearFallback(t *testing.T) {
	sh := &simklShow{
		Title:         "Sousou no Frieren",
		EnTitle:       "Frieren: Beyond Journey's End",
		AnimeType:     "tv",
		IDs:           simklIDs{Simkl: 1820766, MAL: "52991", AniList: "154587"},
		TotalEpisodes: 28,
		FirstAired:    "2023-09-29T16:00:00Z",
		Network:       "Madhouse",
	}
	m := toMedia(sh, domain.MediaTypeAnime)

	if m.Format != "TV" {
		t.Errorf("format = %q, anime_type should win", m.Format)
	}
	if m.Year != 2023 {
		t.Errorf("year = %d, should fall back to first_aired", m.Year)
	}
	if m.Title.English != "Frieren: Beyond Journey's End" || m.Title.Romaji != "Sousou no Frieren" {
		t.Errorf("title = %+v", m.Title)
	}
	if m.Episodes != 28 || m.Studio != "Madhouse" {
		t.Errorf("episodes = %d studio = %q", m.Episodes, m.Studio)
	}
	if m.IDs.MAL != 52991 || m.IDs.AniList != 154587 {
		t.Errorf("ids = %+v", m.IDs)
	}
}

func TestEntryFromListRow(t *testing.T) {
	it := simklListItem{
		Status:               "watching",
		UserRating:           floatp(8),
		LastWatchedAt:        "2024-03-01T12:00:00Z",
		WatchedEpisodesCount: 12,
		TotalEpisodesCount:   28,
		Show: &simklShow{
			Title: "Sousou no Frieren",
			IDs:   simklIDs{Simkl: 1820766},
		},
	}
	e := entryFrom(it, domain.MediaTypeAnime)

	if !e.HasRecord() || e.ID != 1820766 {
		t.Fatalf("entry = %+v, list rows always carry a record", e)
	}
	if e.StatusOrEmpty() != string(domain.StatusCurrent) {
		t.Errorf("status = %q", e.StatusOrEmpty())
	}
	if e.Score == nil || *e.Score != 8 {
		t.Errorf("score = %v", e.Score)
	}
	if e.Progress != 12 || e.Media.Episodes != 28 {
		t.Errorf("progress = %d/%d", e.Progress, e.Media.Episodes)
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if !e.UpdatedAt.Equal(want) {
		t.Errorf("updatedAt = %v", e.UpdatedAt)
	}
	if e.Meta.Source != domain.SourceSimkl || e.Meta.MediaType != domain.MediaTypeAnime {
		t.Errorf("meta = %+v", e.Meta)
	}
}

func TestEntryFromMovieRow(t *testing.T) {
	it := simklListItem{
		Status: "completed",
		Movie:  &simklShow{Title: "The Matrix", IDs: simklIDs{Simkl: 1074}},
	}
	e := entryFrom(it, domain.MediaTypeMovie)

	if e.Media.ID != 1074 || e.Media.Type != domain.MediaTypeMovie {
		t.Errorf("media = %+v", e.Media)
	}
	if e.StatusOrEmpty() != string(domain.StatusCompleted) {
		t.Errorf("status = %q", e.StatusOrEmpty())
	}
	if e.Score != nil {
		t.Errorf("score = %v, unrated rows must stay nil", e.Score)
	}
}

func TestCatalogEntryHasNoRecord(t *testing.T) {
	e := catalogEntry(&simklShow{Title: "X", IDs: simklIDs{Simkl: 7}}, domain.MediaTypeTV)
	if e.HasRecord() {
		t.Errorf("entry = %+v, catalog rows carry no record", e)
	}
	if e.Media.ID != 7 || e.Meta.MediaType != domain.MediaTypeTV {
		t.Errorf("media = %+v meta = %+v", e.Media, e.Meta)
	}
}

func TestBucketSums(t *testing.T) {
	s := simklMediumStats{
		TotalMins:   1200,
		Watching:    simklBucket{Count: 3, WatchedEpisodesCount: 30},
		PlanToWatch: simklBucket{Count: 10},
		Hold:        simklBucket{Count: 1, WatchedEpisodesCount: 4},
		Completed:   simklBucket{Count: 7, WatchedEpisodesCount: 150},
		Dropped:     simklBucket{Count: 2, WatchedEpisodesCount: 5},
	}
	if got := bucketCount(s); got != 23 {
		t.Errorf("bucketCount = %d", got)
	}
	if got := watchedEpisodes(s); got != 189 {
		t.Errorf("watchedEpisodes = %d", got)
	}
}
