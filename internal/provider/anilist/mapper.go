package anilist

import (
	"strings"
	"time"

	"github.com/zoro-md/zoro/internal/domain"
)

func strOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func intOf(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func toFuzzyDate(d gqlDate) domain.FuzzyDate {
	return domain.FuzzyDate{Year: intOf(d.Year), Month: intOf(d.Month), Day: intOf(d.Day)}
}

func toDateInput(d *domain.FuzzyDate) *FuzzyDateInput {
	if d == nil || d.IsZero() {
		return nil
	}
	in := &FuzzyDateInput{}
	if d.Year != 0 {
		y := d.Year
		in.Year = &y
	}
	if d.Month != 0 {
		m := d.Month
		in.Month = &m
	}
	if d.Day != 0 {
		day := d.Day
		in.Day = &day
	}
	return in
}

// toMedia normalizes an AniList media node. requested keeps the
// caller's media type so movies browsed through AniList stay movies.
func toMedia(m gqlMedia, requested domain.MediaType) domain.Media {
	mediaType := requested
	if mediaType == "" {
		if strings.EqualFold(m.Type, "MANGA") {
			mediaType = domain.MediaTypeManga
		} else {
			mediaType = domain.MediaTypeAnime
		}
	}

	cover := strOf(m.CoverImage.Large)
	if cover == "" {
		cover = strOf(m.CoverImage.Medium)
	}

	studio := ""
	if len(m.Studios.Nodes) > 0 {
		studio = m.Studios.Nodes[0].Name
	}

	fav := m.IsFavourite
	out := domain.Media{
		Source:       domain.SourceAniList,
		ID:           m.ID,
		IDs:          domain.IDs{AniList: m.ID, MAL: intOf(m.IDMal)},
		Type:         mediaType,
		Format:       strOf(m.Format),
		Title:        domain.Title{English: strOf(m.Title.English), Romaji: strOf(m.Title.Romaji), Native: strOf(m.Title.Native)},
		CoverURL:     cover,
		BannerURL:    strOf(m.BannerImage),
		Episodes:     intOf(m.Episodes),
		Chapters:     intOf(m.Chapters),
		Volumes:      intOf(m.Volumes),
		Duration:     intOf(m.Duration),
		AverageScore: intOf(m.AverageScore),
		Votes:        intOf(m.Popularity),
		Genres:       m.Genres,
		AiringStatus: strOf(m.Status),
		StartDate:    toFuzzyDate(m.StartDate),
		EndDate:      toFuzzyDate(m.EndDate),
		Year:         intOf(m.SeasonYear),
		IsFavourite:  &fav,
		SiteURL:      strOf(m.SiteURL),
		Studio:       studio,
		Description:  strOf(m.Description),
	}
	if out.Year == 0 {
		out.Year = out.StartDate.Year
	}
	return out
}

func toEntry(e gqlListEntry, requested domain.MediaType) domain.Entry {
	out := domain.Entry{
		ID:             e.ID,
		Media:          toMedia(e.Media, requested),
		Progress:       e.Progress,
		VolumeProgress: intOf(e.ProgressVolumes),
		Repeat:         e.Repeat,
		Meta: domain.Meta{
			Source:    domain.SourceAniList,
			MediaType: requested,
			FetchedAt: time.Now(),
		},
	}
	if st, err := statusFromAniList(e.Status); err == nil {
		out.Status = &st
	}
	if e.Score != nil && *e.Score > 0 {
		s := *e.Score
		out.Score = &s
	}
	if d := toFuzzyDate(e.StartedAt); !d.IsZero() {
		out.StartedAt = &d
	}
	if d := toFuzzyDate(e.CompletedAt); !d.IsZero() {
		out.CompletedAt = &d
	}
	if e.UpdatedAt > 0 {
		out.UpdatedAt = time.Unix(e.UpdatedAt, 0)
	}
	return out
}

// catalogEntry wraps a bare media node as a record-less entry so
// search and trending render through the same path as lists
func catalogEntry(m gqlMedia, requested domain.MediaType) domain.Entry {
	return domain.Entry{
		Media: toMedia(m, requested),
		Meta: domain.Meta{
			Source:    domain.SourceAniList,
			MediaType: requested,
			FetchedAt: time.Now(),
		},
	}
}

// statusFromAniList maps the provider status; the vocabularies are
// identical so this is a validated identity
func statusFromAniList(s string) (domain.Status, error) {
	return domain.ParseStatus(s)
}

// statusToAniList maps an internal status onto the AniList enum
func statusToAniList(s domain.Status) MediaListStatus {
	return MediaListStatus(s)
}

// gqlMediaType maps the internal media type onto AniList's two-value
// enum; movies and TV browse as ANIME there
func gqlMediaType(t domain.MediaType) MediaType {
	if t == domain.MediaTypeManga {
		return MediaType("MANGA")
	}
	return MediaType("ANIME")
}
