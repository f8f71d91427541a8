package anilist

import (
	"testing"

	"github.com/zoro-md/zoro/internal/domain"
)

func intp(v int) *int         { return &v }
func strp(v string) *string   { return &v }
func f64p(v float64) *float64 { return &v }

func TestToDateInput(t *testing.T) {
	if got := toDateInput(nil); got != nil {
		t.Errorf("nil date: got %+v", got)
	}
	if got := toDateInput(&domain.FuzzyDate{}); got != nil {
		t.Errorf("zero date: got %+v", got)
	}

	full := toDateInput(&domain.FuzzyDate{Year: 2024, Month: 3, Day: 1})
	if full == nil || *full.Year != 2024 || *full.Month != 3 || *full.Day != 1 {
		t.Errorf("full date: got %+v", full)
	}

	partial := toDateInput(&domain.FuzzyDate{Year: 2024})
	if partial == nil || *partial.Year != 2024 || partial.Month != nil || partial.Day != nil {
		t.Errorf("year-only date: got %+v", partial)
	}
}

func TestToMediaCoverFallback(t *testing.T) {
	m := gqlMedia{ID: 7}
	m.CoverImage.Medium = strp("https://img.test/medium.jpg")

	out := toMedia(m, domain.MediaTypeAnime)
	if out.CoverURL != "https://img.test/medium.jpg" {
		t.Errorf("CoverURL = %q, want medium fallback", out.CoverURL)
	}

	m.CoverImage.Large = strp("https://img.test/large.jpg")
	out = toMedia(m, domain.MediaTypeAnime)
	if out.CoverURL != "https://img.test/large.jpg" {
		t.Errorf("CoverURL = %q, want large preferred", out.CoverURL)
	}
}

func TestToMediaYearFallsBackToStartDate(t *testing.T) {
	m := gqlMedia{ID: 7, StartDate: gqlDate{Year: intp(1999)}}
	out := toMedia(m, domain.MediaTypeAnime)
	if out.Year != 1999 {
		t.Errorf("Year = %d, want start date year", out.Year)
	}

	m.SeasonYear = intp(2000)
	out = toMedia(m, domain.MediaTypeAnime)
	if out.Year != 2000 {
		t.Errorf("Year = %d, want season year when present", out.Year)
	}
}

func TestToMediaKeepsRequestedType(t *testing.T) {
	m := gqlMedia{ID: 7, Type: "ANIME"}
	out := toMedia(m, domain.MediaTypeMovie)
	if out.Type != domain.MediaTypeMovie {
		t.Errorf("Type = %s, movies browsed through AniList must stay movies", out.Type)
	}

	out = toMedia(m, "")
	if out.Type != domain.MediaTypeAnime {
		t.Errorf("Type = %s, want provider type when none requested", out.Type)
	}
}

func TestToEntryOmitsZeroScore(t *testing.T) {
	e := gqlListEntry{gqlRecord: gqlRecord{ID: 1, Status: "CURRENT", Score: f64p(0)}}
	out := toEntry(e, domain.MediaTypeAnime)
	if out.Score != nil {
		t.Errorf("Score = %v, want nil for unrated", out.Score)
	}

	e.Score = f64p(8.5)
	out = toEntry(e, domain.MediaTypeAnime)
	if out.Score == nil || *out.Score != 8.5 {
		t.Errorf("Score = %v, want 8.5", out.Score)
	}
}

func TestToEntryUnknownStatusLeftNil(t *testing.T) {
	e := gqlListEntry{gqlRecord: gqlRecord{ID: 1, Status: "SOMETHING_NEW"}}
	out := toEntry(e, domain.MediaTypeAnime)
	if out.Status != nil {
		t.Errorf("Status = %v, want nil for unknown provider status", out.Status)
	}
}

func TestToEntryVolumeProgress(t *testing.T) {
	e := gqlListEntry{gqlRecord: gqlRecord{ID: 1, Status: "CURRENT", Progress: 40, ProgressVolumes: intp(4)}}
	out := toEntry(e, domain.MediaTypeManga)
	if out.Progress != 40 || out.VolumeProgress != 4 {
		t.Errorf("progress = %d/%d, want 40/4", out.Progress, out.VolumeProgress)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []domain.Status{
		domain.StatusCurrent, domain.StatusPlanning, domain.StatusCompleted,
		domain.StatusDropped, domain.StatusPaused, domain.StatusRepeating,
	} {
		back, err := statusFromAniList(string(statusToAniList(s)))
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		if back != s {
			t.Errorf("%s round-tripped to %s", s, back)
		}
	}
}

func TestGqlMediaType(t *testing.T) {
	cases := []struct {
		in   domain.MediaType
		want MediaType
	}{
		{domain.MediaTypeAnime, "ANIME"},
		{domain.MediaTypeManga, "MANGA"},
		{domain.MediaTypeMovie, "ANIME"},
		{domain.MediaTypeTV, "ANIME"},
	}
	for _, tc := range cases {
		if got := gqlMediaType(tc.in); got != tc.want {
			t.Errorf("gqlMediaType(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
