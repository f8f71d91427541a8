package tmdb

// tmdbItem is one result row; movie and TV rows differ only in which
// title and date fields are populated
type tmdbItem struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`          // movies
	OriginalName string  `json:"original_title"` // movies
	Name         string  `json:"name"`           // tv
	OriginalTV   string  `json:"original_name"`  // tv
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"` // 0-10
	VoteCount    int     `json:"vote_count"`
	GenreIDs     []int   `json:"genre_ids"`
	ReleaseDate  string  `json:"release_date"`   // movies, YYYY-MM-DD
	FirstAirDate string  `json:"first_air_date"` // tv
}

type tmdbPage struct {
	Page         int        `json:"page"`
	Results      []tmdbItem `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

type tmdbExternalIDs struct {
	IMDBID string `json:"imdb_id"`
	TVDBID int    `json:"tvdb_id"`
}
