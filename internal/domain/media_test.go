package domain

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "canonical", input: "CURRENT", want: StatusCurrent},
		{name: "lowercase", input: "completed", want: StatusCompleted},
		{name: "reading alias", input: "READING", want: StatusCurrent},
		{name: "plan to watch with spaces", input: "plan to watch", want: StatusPlanning},
		{name: "hyphenated hold", input: "on-hold", want: StatusPaused},
		{name: "rewatching alias", input: "rewatching", want: StatusRepeating},
		{name: "surrounding whitespace", input: "  DROPPED  ", want: StatusDropped},
		{name: "unknown", input: "finished", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStatus(%q) = %v, want error", tt.input, got)
				}
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("ParseStatus(%q) error = %T, want *ValidationError", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    MediaType
		wantErr bool
	}{
		{name: "canonical", input: "ANIME", want: MediaTypeAnime},
		{name: "lowercase", input: "manga", want: MediaTypeManga},
		{name: "tv", input: "tv", want: MediaTypeTV},
		{name: "combined video bucket", input: "MOVIE_TV", want: MediaTypeMovie},
		{name: "combined bucket lowercase", input: "movie_tv", want: MediaTypeMovie},
		{name: "surrounding whitespace", input: " movie ", want: MediaTypeMovie},
		{name: "unknown", input: "book", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMediaType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMediaType(%q) = %v, want error", tt.input, got)
				}
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("ParseMediaType(%q) error = %T, want *ValidationError", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMediaType(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMediaType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStatusAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		source    Source
		mediaType MediaType
		status    Status
		want      bool
	}{
		{name: "anilist repeating", source: SourceAniList, mediaType: MediaTypeAnime, status: StatusRepeating, want: true},
		{name: "mal repeating rejected", source: SourceMAL, mediaType: MediaTypeAnime, status: StatusRepeating, want: false},
		{name: "simkl repeating rejected", source: SourceSimkl, mediaType: MediaTypeTV, status: StatusRepeating, want: false},
		{name: "simkl movie current rejected", source: SourceSimkl, mediaType: MediaTypeMovie, status: StatusCurrent, want: false},
		{name: "simkl movie paused rejected", source: SourceSimkl, mediaType: MediaTypeMovie, status: StatusPaused, want: false},
		{name: "simkl movie completed", source: SourceSimkl, mediaType: MediaTypeMovie, status: StatusCompleted, want: true},
		{name: "simkl movie planning", source: SourceSimkl, mediaType: MediaTypeMovie, status: StatusPlanning, want: true},
		{name: "simkl tv current", source: SourceSimkl, mediaType: MediaTypeTV, status: StatusCurrent, want: true},
		{name: "mal paused", source: SourceMAL, mediaType: MediaTypeManga, status: StatusPaused, want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StatusAllowed(tt.source, tt.mediaType, tt.status); got != tt.want {
				t.Errorf("StatusAllowed(%v, %v, %v) = %v, want %v",
					tt.source, tt.mediaType, tt.status, got, tt.want)
			}
		})
	}
}

func TestTitlePreferred(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title Title
		want  string
	}{
		{name: "english first", title: Title{English: "Attack on Titan", Romaji: "Shingeki no Kyojin"}, want: "Attack on Titan"},
		{name: "romaji fallback", title: Title{Romaji: "Shingeki no Kyojin", Native: "進撃の巨人"}, want: "Shingeki no Kyojin"},
		{name: "native last", title: Title{Native: "進撃の巨人"}, want: "進撃の巨人"},
		{name: "empty", title: Title{}, want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.title.Preferred(); got != tt.want {
				t.Errorf("Preferred() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFuzzyDateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		date FuzzyDate
		want string
	}{
		{name: "full", date: FuzzyDate{Year: 2024, Month: 1, Day: 5}, want: "2024-01-05"},
		{name: "year only", date: FuzzyDate{Year: 1998}, want: "1998-00-00"},
		{name: "unknown", date: FuzzyDate{}, want: "0000-00-00"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.date.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIDsMerge(t *testing.T) {
	t.Parallel()

	ids := IDs{AniList: 101, IMDB: "tt0112178"}
	ids.Merge(IDs{AniList: 999, MAL: 21, TMDB: 456, IMDB: "tt9999999"})

	if ids.AniList != 101 {
		t.Errorf("AniList overwritten: got %d, want 101", ids.AniList)
	}
	if ids.MAL != 21 {
		t.Errorf("MAL not filled: got %d, want 21", ids.MAL)
	}
	if ids.TMDB != 456 {
		t.Errorf("TMDB not filled: got %d, want 456", ids.TMDB)
	}
	if ids.IMDB != "tt0112178" {
		t.Errorf("IMDB overwritten: got %q, want tt0112178", ids.IMDB)
	}
}

func TestPageNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		page Page
		want Page
	}{
		{name: "zero values", page: Page{}, want: Page{Page: 1, PerPage: 50}},
		{name: "negative page", page: Page{Page: -3, PerPage: 25}, want: Page{Page: 1, PerPage: 25}},
		{name: "oversized perpage", page: Page{Page: 2, PerPage: 500}, want: Page{Page: 2, PerPage: 100}},
		{name: "valid untouched", page: Page{Page: 3, PerPage: 40}, want: Page{Page: 3, PerPage: 40}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.page.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if off := (Page{Page: 3, PerPage: 40}).Offset(); off != 80 {
		t.Errorf("Offset() = %d, want 80", off)
	}
}
