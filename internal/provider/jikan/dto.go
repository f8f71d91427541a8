package jikan

type jikanNamed struct {
	Name string `json:"name"`
}

type jikanImages struct {
	JPG struct {
		ImageURL      string `json:"image_url"`
		LargeImageURL string `json:"large_image_url"`
	} `json:"jpg"`
}

type jikanDates struct {
	From string `json:"from"` // ISO-8601 or empty
	To   string `json:"to"`
}

// jikanItem is one catalog row; anime and manga rows share the shape,
// differing in which count and date fields are populated
type jikanItem struct {
	MALID         int          `json:"mal_id"`
	URL           string       `json:"url"`
	Images        jikanImages  `json:"images"`
	Title         string       `json:"title"`
	TitleEnglish  string       `json:"title_english"`
	TitleJapanese string       `json:"title_japanese"`
	Type          string       `json:"type"` // TV, Movie, OVA, Manga, Novel, ...
	Episodes      int          `json:"episodes"`
	Chapters      int          `json:"chapters"`
	Volumes       int          `json:"volumes"`
	Status        string       `json:"status"` // "Currently Airing", "Finished Airing", "Publishing", ...
	Score         float64      `json:"score"`  // 0-10
	ScoredBy      int          `json:"scored_by"`
	Synopsis      string       `json:"synopsis"`
	Genres        []jikanNamed `json:"genres"`
	Studios       []jikanNamed `json:"studios"`
	Aired         jikanDates   `json:"aired"`
	Published     jikanDates   `json:"published"`
}

type jikanPagination struct {
	HasNextPage bool `json:"has_next_page"`
}

type jikanPage struct {
	Data       []jikanItem     `json:"data"`
	Pagination jikanPagination `json:"pagination"`
}

type jikanDetail struct {
	Data jikanItem `json:"data"`
}
