package anilist

// GraphQL scalar and input types. The Go type names double as the
// GraphQL type names in variable declarations, so they must match the
// AniList schema exactly.

// MediaListStatus is the AniList list-status enum
type MediaListStatus string

// MediaType is the AniList media-type enum (ANIME or MANGA)
type MediaType string

// ScoreFormat is the AniList score-format enum
type ScoreFormat string

// FuzzyDateInput is the AniList partial-date input object
type FuzzyDateInput struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

type gqlDate struct {
	Year  *int `graphql:"year"`
	Month *int `graphql:"month"`
	Day   *int `graphql:"day"`
}

// gqlMedia is the media selection shared by every query
type gqlMedia struct {
	ID     int     `graphql:"id"`
	IDMal  *int    `graphql:"idMal"`
	Type   string  `graphql:"type"`
	Format *string `graphql:"format"`
	Title  struct {
		English *string `graphql:"english"`
		Romaji  *string `graphql:"romaji"`
		Native  *string `graphql:"native"`
	} `graphql:"title"`
	CoverImage struct {
		Large  *string `graphql:"large"`
		Medium *string `graphql:"medium"`
	} `graphql:"coverImage"`
	BannerImage  *string  `graphql:"bannerImage"`
	Episodes     *int     `graphql:"episodes"`
	Chapters     *int     `graphql:"chapters"`
	Volumes      *int     `graphql:"volumes"`
	Duration     *int     `graphql:"duration"`
	AverageScore *int     `graphql:"averageScore"`
	Popularity   *int     `graphql:"popularity"`
	Genres       []string `graphql:"genres"`
	Status       *string  `graphql:"status"`
	StartDate    gqlDate  `graphql:"startDate"`
	EndDate      gqlDate  `graphql:"endDate"`
	SeasonYear   *int     `graphql:"seasonYear"`
	IsFavourite  bool     `graphql:"isFavourite"`
	SiteURL      *string  `graphql:"siteUrl"`
	Studios      struct {
		Nodes []struct {
			Name string `graphql:"name"`
		} `graphql:"nodes"`
	} `graphql:"studios(isMain: true)"`
	Description *string `graphql:"description(asHtml: false)"`
}

// gqlRecord is the user's list record without the media selection.
// Scores are requested decimal-normalized so the internal 0-10 scale
// holds regardless of the account's score format.
type gqlRecord struct {
	ID              int      `graphql:"id"`
	Status          string   `graphql:"status"`
	Score           *float64 `graphql:"score(format: POINT_10_DECIMAL)"`
	Progress        int      `graphql:"progress"`
	ProgressVolumes *int     `graphql:"progressVolumes"`
	Repeat          int      `graphql:"repeat"`
	StartedAt       gqlDate  `graphql:"startedAt"`
	CompletedAt     gqlDate  `graphql:"completedAt"`
	UpdatedAt       int64    `graphql:"updatedAt"`
}

// gqlListEntry is a list record with its media
type gqlListEntry struct {
	gqlRecord
	Media gqlMedia `graphql:"media"`
}
