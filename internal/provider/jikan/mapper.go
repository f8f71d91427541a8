package jikan

import (
	"math"
	"strings"
	"time"

	"github.com/zoro-md/zoro/internal/domain"
)

func parseISODate(s string) domain.FuzzyDate {
	if s == "" {
		return domain.FuzzyDate{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return domain.FuzzyDate{}
	}
	return domain.FuzzyDateFrom(t)
}

// airingStatus folds Jikan's prose vocabulary onto the short form the
// other providers use
func airingStatus(s string) string {
	switch strings.ToLower(s) {
	case "currently airing", "publishing":
		return "RELEASING"
	case "finished airing", "finished":
		return "FINISHED"
	case "not yet aired", "not yet published":
		return "NOT_YET_RELEASED"
	case "on hiatus":
		return "HIATUS"
	case "discontinued":
		return "CANCELLED"
	default:
		return strings.ToUpper(s)
	}
}

func names(items []jikanNamed) []string {
	var out []string
	for _, it := range items {
		if it.Name != "" {
			out = append(out, it.Name)
		}
	}
	return out
}

func toMedia(it *jikanItem, mediaType domain.MediaType) domain.Media {
	dates := it.Aired
	if mediaType == domain.MediaTypeManga {
		dates = it.Published
	}

	cover := it.Images.JPG.LargeImageURL
	if cover == "" {
		cover = it.Images.JPG.ImageURL
	}

	var studio string
	if s := names(it.Studios); len(s) > 0 {
		studio = s[0]
	}

	start := parseISODate(dates.From)
	return domain.Media{
		Source:       domain.SourceJikan,
		ID:           it.MALID,
		IDs:          domain.IDs{MAL: it.MALID},
		Type:         mediaType,
		Format:       strings.ToUpper(it.Type),
		Title:        domain.Title{English: it.TitleEnglish, Romaji: it.Title, Native: it.TitleJapanese},
		CoverURL:     cover,
		Episodes:     it.Episodes,
		Chapters:     it.Chapters,
		Volumes:      it.Volumes,
		AverageScore: int(math.Round(it.Score * 10)),
		Votes:        it.ScoredBy,
		Genres:       names(it.Genres),
		AiringStatus: airingStatus(it.Status),
		StartDate:    start,
		EndDate:      parseISODate(dates.To),
		Year:         start.Year,
		SiteURL:      it.URL,
		Studio:       studio,
		Description:  it.Synopsis,
	}
}

// catalogEntry wraps catalog media as a record-less entry
func catalogEntry(it *jikanItem, mediaType domain.MediaType) domain.Entry {
	return domain.Entry{
		Media: toMedia(it, mediaType),
		Meta: domain.Meta{
			Source:    domain.SourceJikan,
			MediaType: mediaType,
			FetchedAt: time.Now(),
		},
	}
}
