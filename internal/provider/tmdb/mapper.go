package tmdb

import (
	"fmt"
	"math"
	"time"

	"github.com/zoro-md/zoro/internal/domain"
)

const imageHost = "https://image.tmdb.org/t/p"

// genreNames is TMDb's fixed genre id vocabulary, movie and TV lists
// merged. Result rows carry only the ids.
var genreNames = map[int]string{
	28:    "Action",
	12:    "Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	14:    "Fantasy",
	36:    "History",
	27:    "Horror",
	10402: "Music",
	9648:  "Mystery",
	10749: "Romance",
	878:   "Science Fiction",
	10770: "TV Movie",
	53:    "Thriller",
	10752: "War",
	37:    "Western",
	10759: "Action & Adventure",
	10762: "Kids",
	10763: "News",
	10764: "Reality",
	10765: "Sci-Fi & Fantasy",
	10766: "Soap",
	10767: "Talk",
	10768: "War & Politics",
}

func genresOf(ids []int) []string {
	var out []string
	for _, id := range ids {
		if name, ok := genreNames[id]; ok {
			out = append(out, name)
		}
	}
	return out
}

func posterURL(path string) string {
	if path == "" {
		return ""
	}
	return imageHost + "/w500" + path
}

func backdropURL(path string) string {
	if path == "" {
		return ""
	}
	return imageHost + "/original" + path
}

func parseDate(s string) domain.FuzzyDate {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return domain.FuzzyDate{}
	}
	return domain.FuzzyDateFrom(t)
}

func toMedia(it *tmdbItem, mediaType domain.MediaType) domain.Media {
	title := it.Title
	original := it.OriginalName
	date := it.ReleaseDate
	format := "MOVIE"
	if mediaType == domain.MediaTypeTV {
		title = it.Name
		original = it.OriginalTV
		date = it.FirstAirDate
		format = "TV"
	}

	start := parseDate(date)
	native := ""
	if original != title {
		native = original
	}

	return domain.Media{
		Source:       domain.SourceTMDB,
		ID:           it.ID,
		IDs:          domain.IDs{TMDB: it.ID},
		Type:         mediaType,
		Format:       format,
		Title:        domain.Title{English: title, Native: native},
		CoverURL:     posterURL(it.PosterPath),
		BannerURL:    backdropURL(it.BackdropPath),
		AverageScore: int(math.Round(it.VoteAverage * 10)),
		Votes:        it.VoteCount,
		Genres:       genresOf(it.GenreIDs),
		StartDate:    start,
		Year:         start.Year,
		SiteURL:      siteURL(it.ID, mediaType),
		Description:  it.Overview,
	}
}

func siteURL(id int, mediaType domain.MediaType) string {
	kind := "movie"
	if mediaType == domain.MediaTypeTV {
		kind = "tv"
	}
	return fmt.Sprintf("https://www.themoviedb.org/%s/%d", kind, id)
}

// catalogEntry wraps catalog media as a record-less entry
func catalogEntry(it *tmdbItem, mediaType domain.MediaType) domain.Entry {
	return domain.Entry{
		Media: toMedia(it, mediaType),
		Meta: domain.Meta{
			Source:    domain.SourceTMDB,
			MediaType: mediaType,
			FetchedAt: time.Now(),
		},
	}
}
