package simkl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zoro-md/zoro/internal/domain"
)

const imageHost = "https://simkl.in"

// statusToSimkl translates an internal status to Simkl's list names.
// REPEATING maps to nothing and the caller refuses it.
func statusToSimkl(s domain.Status) string {
	switch s {
	case domain.StatusCurrent:
		return "watching"
	case domain.StatusPlanning:
		return "plantowatch"
	case domain.StatusCompleted:
		return "completed"
	case domain.StatusPaused:
		return "hold"
	case domain.StatusDropped:
		return "dropped"
	}
	return ""
}

func statusFromSimkl(s string) domain.Status {
	switch s {
	case "watching":
		return domain.StatusCurrent
	case "plantowatch":
		return domain.StatusPlanning
	case "completed":
		return domain.StatusCompleted
	case "hold":
		return domain.StatusPaused
	case "dropped":
		return domain.StatusDropped
	}
	return ""
}

// movieStatusLegal reports whether a status exists for Simkl movies,
// which have no watching or hold lists
func movieStatusLegal(s domain.Status) bool {
	switch s {
	case domain.StatusPlanning, domain.StatusCompleted, domain.StatusDropped:
		return true
	}
	return false
}

// listPath names the sync/all-items section for a media type
func listPath(t domain.MediaType) string {
	switch t {
	case domain.MediaTypeMovie:
		return "movies"
	case domain.MediaTypeTV:
		return "shows"
	default:
		return "anime"
	}
}

// detailPath names the catalog root for detail and trending endpoints
func detailPath(t domain.MediaType) string {
	switch t {
	case domain.MediaTypeMovie:
		return "movies"
	case domain.MediaTypeTV:
		return "tv"
	default:
		return "anime"
	}
}

// searchPath names the text-search endpoint, which is singular where
// the catalog root is plural
func searchPath(t domain.MediaType) string {
	switch t {
	case domain.MediaTypeMovie:
		return "movie"
	case domain.MediaTypeTV:
		return "tv"
	default:
		return "anime"
	}
}

// syncKey names the array a mutation rides under; anime sync as shows
func syncKey(t domain.MediaType) string {
	if t == domain.MediaTypeMovie {
		return "movies"
	}
	return "shows"
}

func syncBody(t domain.MediaType, item simklSyncItem) simklSyncRequest {
	if syncKey(t) == "movies" {
		return simklSyncRequest{Movies: []simklSyncItem{item}}
	}
	return simklSyncRequest{Shows: []simklSyncItem{item}}
}

// lookupType names the type filter of the ID-lookup endpoint
func lookupType(t domain.MediaType) string {
	switch t {
	case domain.MediaTypeMovie:
		return "movie"
	case domain.MediaTypeTV:
		return "show"
	default:
		return "anime"
	}
}

func posterURL(fragment string) string {
	if fragment == "" {
		return ""
	}
	return imageHost + "/posters/" + fragment + "_m.jpg"
}

func fanartURL(fragment string) string {
	if fragment == "" {
		return ""
	}
	return imageHost + "/fanart/" + fragment + "_medium.jpg"
}

// parseAirDate reads YYYY-MM-DD, tolerating a trailing time component
// and missing parts
func parseAirDate(s string) domain.FuzzyDate {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	var d domain.FuzzyDate
	for i, part := range strings.SplitN(s, "-", 3) {
		n, err := strconv.Atoi(part)
		if err != nil {
			break
		}
		switch i {
		case 0:
			d.Year = n
		case 1:
			d.Month = n
		case 2:
			d.Day = n
		}
	}
	return d
}

// idsFrom converts the wire ID bag, whose cross-walk values arrive as
// strings, into the numeric domain bag
func idsFrom(ids simklIDs) domain.IDs {
	out := domain.IDs{Simkl: ids.id(), IMDB: ids.IMDB}
	if n, err := strconv.Atoi(ids.TMDB); err == nil {
		out.TMDB = n
	}
	if n, err := strconv.Atoi(ids.MAL); err == nil {
		out.MAL = n
	}
	if n, err := strconv.Atoi(ids.AniList); err == nil {
		out.AniList = n
	}
	return out
}

func formatOf(sh *simklShow, mediaType domain.MediaType) string {
	if sh.AnimeType != "" {
		return strings.ToUpper(sh.AnimeType)
	}
	switch mediaType {
	case domain.MediaTypeMovie:
		return "MOVIE"
	case domain.MediaTypeTV:
		return "TV"
	}
	return strings.ToUpper(sh.Type)
}

func siteURL(mediaType domain.MediaType, id int, slug string) string {
	if id == 0 {
		return ""
	}
	u := fmt.Sprintf("https://simkl.com/%s/%d", detailPath(mediaType), id)
	if slug != "" {
		u += "/" + slug
	}
	return u
}

func toMedia(sh *simklShow, mediaType domain.MediaType) domain.Media {
	episodes := sh.TotalEpisodes
	if episodes == 0 {
		episodes = sh.EpCount
	}

	var score, votes int
	if sh.Ratings != nil {
		score = int(math.Round(sh.Ratings.Simkl.Rating * 10))
		votes = sh.Ratings.Simkl.Votes
	}

	aired := sh.FirstAired
	if aired == "" {
		aired = sh.Released
	}
	start := parseAirDate(aired)
	year := sh.Year
	if year == 0 {
		year = start.Year
	}

	id := sh.IDs.id()
	return domain.Media{
		Source:       domain.SourceSimkl,
		ID:           id,
		IDs:          idsFrom(sh.IDs),
		Type:         mediaType,
		Format:       formatOf(sh, mediaType),
		Title:        domain.Title{English: sh.EnTitle, Romaji: sh.Title},
		CoverURL:     posterURL(sh.Poster),
		BannerURL:    fanartURL(sh.Fanart),
		Episodes:     episodes,
		Duration:     sh.Runtime,
		AverageScore: score,
		Votes:        votes,
		Genres:       sh.Genres,
		AiringStatus: strings.ToUpper(sh.Status),
		StartDate:    start,
		Year:         year,
		SiteURL:      siteURL(mediaType, id, sh.IDs.Slug),
		Studio:       sh.Network,
		Description:  sh.Overview,
	}
}

// entryFrom maps one list row. Simkl keys records by media id, so the
// record reuses it as the entry id.
func entryFrom(it simklListItem, requested domain.MediaType) domain.Entry {
	sh := it.media()
	if sh == nil {
		sh = &simklShow{}
	}
	out := domain.Entry{
		Media:    toMedia(sh, requested),
		Progress: it.WatchedEpisodesCount,
		Meta: domain.Meta{
			Source:    domain.SourceSimkl,
			MediaType: requested,
			FetchedAt: time.Now(),
		},
	}
	if out.Media.Episodes == 0 {
		out.Media.Episodes = it.TotalEpisodesCount
	}
	if st := statusFromSimkl(it.Status); st != "" {
		out.ID = out.Media.ID
		out.Status = &st
	}
	if it.UserRating != nil && *it.UserRating > 0 {
		v := *it.UserRating
		out.Score = &v
	}
	if it.LastWatchedAt != "" {
		if ts, err := time.Parse(time.RFC3339, it.LastWatchedAt); err == nil {
			out.UpdatedAt = ts
		}
	}
	return out
}

// catalogEntry wraps record-less media from detail, search, and
// trending responses
func catalogEntry(sh *simklShow, requested domain.MediaType) domain.Entry {
	return domain.Entry{
		Media: toMedia(sh, requested),
		Meta: domain.Meta{
			Source:    domain.SourceSimkl,
			MediaType: requested,
			FetchedAt: time.Now(),
		},
	}
}

func bucketCount(s simklMediumStats) int {
	return s.Watching.Count + s.PlanToWatch.Count + s.Hold.Count +
		s.Completed.Count + s.Dropped.Count
}

func watchedEpisodes(s simklMediumStats) int {
	return s.Watching.WatchedEpisodesCount + s.Hold.WatchedEpisodesCount +
		s.Completed.WatchedEpisodesCount + s.Dropped.WatchedEpisodesCount
}
