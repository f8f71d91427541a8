package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zoro-md/zoro/internal/domain"
)

// imdbHeader matches IMDb's own ratings-export column set so the file
// round-trips through IMDb list import
var imdbHeader = []string{
	"Const", "Your Rating", "Date Rated", "Title", "URL", "Title Type",
	"IMDb Rating", "Runtime (mins)", "Year", "Genres", "Num Votes",
	"Release Date", "Directors",
}

// IMDbCSV renders movie and TV entries in IMDb's export shape.
// Entries without an IMDb id are skipped; there is nothing to key the
// row on.
func IMDbCSV(entries []domain.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(imdbHeader); err != nil {
		return nil, fmt.Errorf("export: write header: %w", err)
	}
	for _, e := range entries {
		if e.Media.IDs.IMDB == "" || !e.Media.Type.IsVideo() {
			continue
		}
		if err := w.Write(imdbRow(e)); err != nil {
			return nil, fmt.Errorf("export: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: flush: %w", err)
	}
	return buf.Bytes(), nil
}

func imdbRow(e domain.Entry) []string {
	m := e.Media
	rating := ""
	dateRated := ""
	if e.Score != nil && *e.Score > 0 {
		rating = strconv.Itoa(int(math.Round(*e.Score)))
		if !e.UpdatedAt.IsZero() {
			dateRated = e.UpdatedAt.Format("2006-01-02")
		}
	}

	imdbRating := ""
	if m.AverageScore > 0 {
		imdbRating = strconv.FormatFloat(float64(m.AverageScore)/10, 'f', 1, 64)
	}

	return []string{
		m.IDs.IMDB,
		rating,
		dateRated,
		m.DisplayTitle(),
		"https://www.imdb.com/title/" + m.IDs.IMDB + "/",
		imdbTitleType(m.Type),
		imdbRating,
		countField(m.Duration),
		countField(m.Year),
		strings.Join(m.Genres, ", "),
		countField(m.Votes),
		mediaDate(m.StartDate),
		"", // directors are not tracked
	}
}

func imdbTitleType(t domain.MediaType) string {
	if t == domain.MediaTypeTV {
		return "tvSeries"
	}
	return "movie"
}
