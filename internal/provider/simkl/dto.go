package simkl

import "github.com/zoro-md/zoro/internal/domain"

// Simkl wire types. The media object is shared by list rows, detail
// responses, search hits, and trending rows; fields missing from one
// shape simply stay zero.

type simklIDs struct {
	Simkl   int    `json:"simkl,omitempty"`
	SimklID int    `json:"simkl_id,omitempty"` // trending rows spell the key this way
	Slug    string `json:"slug,omitempty"`
	TMDB    string `json:"tmdb,omitempty"`
	IMDB    string `json:"imdb,omitempty"`
	MAL     string `json:"mal,omitempty"`
	AniList string `json:"anilist,omitempty"`
}

func (i simklIDs) id() int {
	if i.Simkl != 0 {
		return i.Simkl
	}
	return i.SimklID
}

type simklRating struct {
	Rating float64 `json:"rating"`
	Votes  int     `json:"votes"`
}

type simklRatings struct {
	Simkl simklRating `json:"simkl"`
}

type simklShow struct {
	Title         string        `json:"title"`
	EnTitle       string        `json:"en_title"`
	Year          int           `json:"year"`
	Type          string        `json:"type"` // anime, movie, tv
	IDs           simklIDs      `json:"ids"`
	Poster        string        `json:"poster"` // path fragment, see posterURL
	Fanart        string        `json:"fanart"`
	AnimeType     string        `json:"anime_type"` // tv, movie, ova, ona, special
	TotalEpisodes int           `json:"total_episodes"`
	EpCount       int           `json:"ep_count"` // search rows use this spelling
	Status        string        `json:"status"`   // airing, ended, released
	FirstAired    string        `json:"first_aired"`
	Released      string        `json:"released"` // movies: YYYY-MM-DD
	Runtime       int           `json:"runtime"`  // minutes
	Network       string        `json:"network"`
	Genres        []string      `json:"genres"`
	Overview      string        `json:"overview"`
	Ratings       *simklRatings `json:"ratings"`
}

// simklListItem is one row of a sync/all-items response. The media sits
// under "show" for anime and tv and under "movie" for movies.
type simklListItem struct {
	Status               string     `json:"status"`
	UserRating           *float64   `json:"user_rating"`
	LastWatchedAt        string     `json:"last_watched_at"`
	WatchedEpisodesCount int        `json:"watched_episodes_count"`
	TotalEpisodesCount   int        `json:"total_episodes_count"`
	Show                 *simklShow `json:"show"`
	Movie                *simklShow `json:"movie"`
}

func (it simklListItem) media() *simklShow {
	if it.Movie != nil {
		return it.Movie
	}
	return it.Show
}

type simklAllItems struct {
	Anime  []simklListItem `json:"anime"`
	Shows  []simklListItem `json:"shows"`
	Movies []simklListItem `json:"movies"`
}

func (r simklAllItems) section(t domain.MediaType) []simklListItem {
	switch t {
	case domain.MediaTypeMovie:
		return r.Movies
	case domain.MediaTypeTV:
		return r.Shows
	default:
		return r.Anime
	}
}

// simklSyncItem is one mutation in a sync request body
type simklSyncItem struct {
	To     string   `json:"to,omitempty"`
	Rating int      `json:"rating,omitempty"`
	IDs    simklIDs `json:"ids"`
}

type simklSyncRequest struct {
	Movies []simklSyncItem `json:"movies,omitempty"`
	Shows  []simklSyncItem `json:"shows,omitempty"`
}

type simklSyncResponse struct {
	Added    map[string]int        `json:"added"`
	NotFound map[string][]simklIDs `json:"not_found"`
}

type simklSettings struct {
	User struct {
		Name string `json:"name"`
	} `json:"user"`
	Account struct {
		ID int `json:"id"`
	} `json:"account"`
}

type simklBucket struct {
	Count                int `json:"count"`
	WatchedEpisodesCount int `json:"watched_episodes_count"`
}

type simklMediumStats struct {
	TotalMins   int         `json:"total_mins"`
	Watching    simklBucket `json:"watching"`
	PlanToWatch simklBucket `json:"plantowatch"`
	Hold        simklBucket `json:"hold"`
	Completed   simklBucket `json:"completed"`
	Dropped     simklBucket `json:"dropped"`
}

type simklStats struct {
	TotalMins int              `json:"total_mins"`
	Anime     simklMediumStats `json:"anime"`
	TV        simklMediumStats `json:"tv"`
	Movies    simklMediumStats `json:"movies"`
}

// simklPin is the device-code grant issued at login start
type simklPin struct {
	Result          string `json:"result"`
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"` // seconds
	Interval        int    `json:"interval"`   // seconds between polls
}

// simklPinStatus is one poll of the device-code endpoint. An empty
// body or 404 means the user has not confirmed yet.
type simklPinStatus struct {
	Result      string `json:"result"`
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}
