package mal

// API v2 response shapes. Only the fields the mapper reads are
// declared; the fields query parameter keeps responses this small.

type malPicture struct {
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type malNamed struct {
	Name string `json:"name"`
}

type malNode struct {
	ID          int         `json:"id"`
	Title       string      `json:"title"`
	MainPicture *malPicture `json:"main_picture"`

	AlternativeTitles *struct {
		En string `json:"en"`
		Ja string `json:"ja"`
	} `json:"alternative_titles"`

	MediaType string     `json:"media_type"`
	Status    string     `json:"status"`
	Genres    []malNamed `json:"genres"`

	NumEpisodes int `json:"num_episodes"`
	NumChapters int `json:"num_chapters"`
	NumVolumes  int `json:"num_volumes"`

	Mean            float64 `json:"mean"`
	NumScoringUsers int     `json:"num_scoring_users"`

	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	AverageEpisodeDuration int        `json:"average_episode_duration"` // seconds
	Studios                []malNamed `json:"studios"`
	Synopsis               string     `json:"synopsis"`
}

// malRecord is the user's list status. Anime and manga variants share
// the shape; the unused counters stay zero.
type malRecord struct {
	Status string `json:"status"`
	Score  int    `json:"score"`

	NumEpisodesWatched int `json:"num_episodes_watched"`
	NumChaptersRead    int `json:"num_chapters_read"`
	NumVolumesRead     int `json:"num_volumes_read"`

	NumTimesRewatched int `json:"num_times_rewatched"`
	NumTimesReread    int `json:"num_times_reread"`

	StartDate  string `json:"start_date"`
	FinishDate string `json:"finish_date"`
	UpdatedAt  string `json:"updated_at"`
}

type malListItem struct {
	Node       malNode    `json:"node"`
	ListStatus *malRecord `json:"list_status"`
}

type malPage struct {
	Data   []malListItem `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// malDetail is the /anime/{id} and /manga/{id} response
type malDetail struct {
	malNode
	MyListStatus *malRecord `json:"my_list_status"`
}

// malUser is the /users/@me response with anime statistics
type malUser struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	AnimeStatistics *struct {
		NumItems    int     `json:"num_items"`
		NumEpisodes int     `json:"num_episodes"`
		NumDays     float64 `json:"num_days"`
		MeanScore   float64 `json:"mean_score"`
	} `json:"anime_statistics"`
}
