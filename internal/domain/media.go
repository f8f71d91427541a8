package domain

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies a tracked service or metadata catalog
type Source string

const (
	SourceAniList Source = "anilist"
	SourceMAL     Source = "mal"
	SourceSimkl   Source = "simkl"
	SourceTMDB    Source = "tmdb"
	SourceJikan   Source = "jikan"
)

// ParseSource normalizes a source name from user input
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceAniList:
		return SourceAniList, nil
	case SourceMAL, "myanimelist":
		return SourceMAL, nil
	case SourceSimkl:
		return SourceSimkl, nil
	case SourceTMDB:
		return SourceTMDB, nil
	case SourceJikan:
		return SourceJikan, nil
	}
	return "", &ValidationError{Field: "source", Reason: fmt.Sprintf("unknown source %q", s)}
}

// IsListService returns true for sources that hold user lists (not read-only catalogs)
func (s Source) IsListService() bool {
	return s == SourceAniList || s == SourceMAL || s == SourceSimkl
}

// String returns the canonical lowercase name
func (s Source) String() string { return string(s) }

// MediaType distinguishes content types
type MediaType string

const (
	MediaTypeAnime MediaType = "ANIME"
	MediaTypeManga MediaType = "MANGA"
	MediaTypeMovie MediaType = "MOVIE"
	MediaTypeTV    MediaType = "TV"
)

// ParseMediaType normalizes a media type name from user input. The
// combined "MOVIE_TV" bucket is accepted as an alias for the video
// path and resolves to MOVIE.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(strings.ToUpper(strings.TrimSpace(s))) {
	case MediaTypeAnime:
		return MediaTypeAnime, nil
	case MediaTypeManga:
		return MediaTypeManga, nil
	case MediaTypeMovie, "MOVIE_TV":
		return MediaTypeMovie, nil
	case MediaTypeTV:
		return MediaTypeTV, nil
	}
	return "", &ValidationError{Field: "mediaType", Reason: fmt.Sprintf("unknown media type %q", s)}
}

// IsVideo returns true for movie and TV content
func (t MediaType) IsVideo() bool {
	return t == MediaTypeMovie || t == MediaTypeTV
}

// String returns the canonical uppercase name
func (t MediaType) String() string { return string(t) }

// Status is the internal list-entry status enum. Provider-specific status
// vocabularies are mapped to and from this set by the provider clients.
type Status string

const (
	StatusCurrent   Status = "CURRENT"
	StatusPlanning  Status = "PLANNING"
	StatusCompleted Status = "COMPLETED"
	StatusDropped   Status = "DROPPED"
	StatusPaused    Status = "PAUSED"
	StatusRepeating Status = "REPEATING"
)

// ParseStatus normalizes a status name from user input. Spaces and hyphens
// are folded to underscores and reading-flavored aliases are accepted.
func ParseStatus(s string) (Status, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch Status(norm) {
	case StatusCurrent, "READING", "WATCHING":
		return StatusCurrent, nil
	case StatusPlanning, "PLAN_TO_READ", "PLAN_TO_WATCH":
		return StatusPlanning, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusDropped:
		return StatusDropped, nil
	case StatusPaused, "ON_HOLD":
		return StatusPaused, nil
	case StatusRepeating, "REREADING", "REWATCHING":
		return StatusRepeating, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
}

// String returns the canonical uppercase name
func (s Status) String() string { return string(s) }

// AllowedStatuses returns the statuses a source accepts for a media type.
// REPEATING exists only on AniList; Simkl movies support a reduced set.
func AllowedStatuses(src Source, mediaType MediaType) []Status {
	if src == SourceSimkl && mediaType == MediaTypeMovie {
		return []Status{StatusPlanning, StatusCompleted, StatusDropped}
	}
	base := []Status{StatusCurrent, StatusPlanning, StatusCompleted, StatusDropped, StatusPaused}
	if src == SourceAniList {
		return append(base, StatusRepeating)
	}
	return base
}

// StatusAllowed reports whether a source accepts status for a media type
func StatusAllowed(src Source, mediaType MediaType, status Status) bool {
	for _, s := range AllowedStatuses(src, mediaType) {
		if s == status {
			return true
		}
	}
	return false
}

// IDs carries every cross-provider identifier known for a media item.
// Zero values mean unknown; IMDb IDs are tt-prefixed strings.
type IDs struct {
	AniList int    `json:"anilist,omitempty"`
	MAL     int    `json:"mal,omitempty"`
	Simkl   int    `json:"simkl,omitempty"`
	TMDB    int    `json:"tmdb,omitempty"`
	IMDB    string `json:"imdb,omitempty"`
}

// Merge fills unknown fields from other without overwriting known ones
func (i *IDs) Merge(other IDs) {
	if i.AniList == 0 {
		i.AniList = other.AniList
	}
	if i.MAL == 0 {
		i.MAL = other.MAL
	}
	if i.Simkl == 0 {
		i.Simkl = other.Simkl
	}
	if i.TMDB == 0 {
		i.TMDB = other.TMDB
	}
	if i.IMDB == "" {
		i.IMDB = other.IMDB
	}
}

// Title holds the known title variants for a media item
type Title struct {
	English string `json:"english,omitempty"`
	Romaji  string `json:"romaji,omitempty"`
	Native  string `json:"native,omitempty"`
}

// Preferred returns the best display title: English, then Romaji, then Native
func (t Title) Preferred() string {
	if t.English != "" {
		return t.English
	}
	if t.Romaji != "" {
		return t.Romaji
	}
	return t.Native
}

// FuzzyDate is a calendar date with optional components, as list services
// store them. Zero components mean unknown.
type FuzzyDate struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// IsZero returns true when no component is known
func (d FuzzyDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats the date as YYYY-MM-DD with unknown components zeroed,
// so a fully unknown date renders as "0000-00-00".
func (d FuzzyDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// FuzzyDateFrom converts a wall-clock time to a fuzzy date
func FuzzyDateFrom(t time.Time) FuzzyDate {
	if t.IsZero() {
		return FuzzyDate{}
	}
	return FuzzyDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Media is the normalized description of one film, series, anime, or manga.
// Identity is (Source, ID); the IDs bag carries cross-walk identifiers.
type Media struct {
	Source Source `json:"source"`
	ID     int    `json:"id"`
	IDs    IDs    `json:"ids"`

	Type   MediaType `json:"type"`
	Format string    `json:"format,omitempty"` // provider format: TV, MOVIE, OVA, MANGA, NOVEL, ...
	Title  Title     `json:"title"`

	CoverURL  string `json:"coverUrl,omitempty"`
	BannerURL string `json:"bannerUrl,omitempty"`

	Episodes int `json:"episodes,omitempty"` // 0 = unknown/ongoing
	Chapters int `json:"chapters,omitempty"`
	Volumes  int `json:"volumes,omitempty"`
	Duration int `json:"duration,omitempty"` // minutes per episode or total runtime

	AverageScore int      `json:"averageScore,omitempty"` // community score on a 0-100 scale
	Votes        int      `json:"votes,omitempty"`
	Genres       []string `json:"genres,omitempty"`

	AiringStatus string    `json:"airingStatus,omitempty"` // RELEASING, FINISHED, ...
	StartDate    FuzzyDate `json:"startDate"`
	EndDate      FuzzyDate `json:"endDate"`
	Year         int       `json:"year,omitempty"`

	IsFavourite *bool  `json:"isFavourite,omitempty"` // AniList only
	SiteURL     string `json:"siteUrl,omitempty"`
	Studio      string `json:"studio,omitempty"`
	Description string `json:"description,omitempty"`
}

// MaxProgress returns the progress ceiling for the media, 0 when unknown
func (m Media) MaxProgress() int {
	if m.Type == MediaTypeManga {
		return m.Chapters
	}
	return m.Episodes
}

// DisplayTitle returns the preferred title, falling back to the site URL slug
func (m Media) DisplayTitle() string {
	if t := m.Title.Preferred(); t != "" {
		return t
	}
	return fmt.Sprintf("%s #%d", m.Source, m.ID)
}

// Meta records where and when an entry was fetched. Edits route to
// Meta.Source, which the reconciler may rewrite after an ID cross-walk.
type Meta struct {
	Source    Source    `json:"source"`
	MediaType MediaType `json:"mediaType"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Entry is a user's list record about one media item. A zero ID with nil
// Status and Score represents "on no list yet"; rendering stays uniform.
type Entry struct {
	ID    int   `json:"id,omitempty"`
	Media Media `json:"media"`

	Status         *Status    `json:"status,omitempty"`
	Score          *float64   `json:"score,omitempty"` // 0-10 internal scale, nil = unrated
	Progress       int        `json:"progress"`
	VolumeProgress int        `json:"volumeProgress,omitempty"`
	Repeat         int        `json:"repeat,omitempty"`
	StartedAt      *FuzzyDate `json:"startedAt,omitempty"`
	CompletedAt    *FuzzyDate `json:"completedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	Meta Meta `json:"_meta"`
}

// HasRecord returns true when the user has a list record for the media
func (e Entry) HasRecord() bool { return e.ID != 0 || e.Status != nil }

// StatusOrEmpty returns the status name or "" when the entry has none
func (e Entry) StatusOrEmpty() string {
	if e.Status == nil {
		return ""
	}
	return e.Status.String()
}

// MediumStats aggregates one medium (anime or manga) of a user's statistics
type MediumStats struct {
	Count           int     `json:"count"`
	MeanScore       float64 `json:"meanScore"`
	MinutesWatched  int     `json:"minutesWatched,omitempty"`
	EpisodesWatched int     `json:"episodesWatched,omitempty"`
	ChaptersRead    int     `json:"chaptersRead,omitempty"`
	VolumesRead     int     `json:"volumesRead,omitempty"`
}

// UserStats is a user's aggregate list statistics as a provider reports them
type UserStats struct {
	Source   Source      `json:"source"`
	Username string      `json:"username"`
	Anime    MediumStats `json:"anime"`
	Manga    MediumStats `json:"manga"`
}

// Page is a 1-based pagination request
type Page struct {
	Page    int
	PerPage int
}

// Normalize clamps a page request to sane bounds
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 50
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
	return p
}

// Offset returns the 0-based item offset for REST providers
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PerPage
}
