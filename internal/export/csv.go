// Package export serializes user libraries to interchange formats:
// one unified CSV per provider, MAL-compatible XML for anime and
// manga, and an IMDb-compatible CSV for Simkl movies and TV. The
// serializers are pure; the exporter fetches and the host writes.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/zoro-md/zoro/internal/domain"
)

// unifiedHeader is the stable unified CSV column set. Provider
// additions go at the tail only.
var unifiedHeader = []string{
	"ListName", "Status", "Progress", "Score", "Repeat",
	"StartedAt", "CompletedAt", "MediaID", "Type", "Format",
	"TitleRomaji", "TitleEnglish", "TitleNative",
	"Episodes", "Chapters", "Volumes", "MediaStart", "MediaEnd",
	"AverageScore", "Genres", "MainStudio", "URL", "MAL_ID",
}

// UnifiedCSV renders entries as the provider-independent CSV artifact
func UnifiedCSV(entries []domain.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(unifiedHeader); err != nil {
		return nil, fmt.Errorf("export: write header: %w", err)
	}
	for _, e := range entries {
		if err := w.Write(unifiedRow(e)); err != nil {
			return nil, fmt.Errorf("export: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: flush: %w", err)
	}
	return buf.Bytes(), nil
}

func unifiedRow(e domain.Entry) []string {
	m := e.Media
	return []string{
		listName(e),
		e.StatusOrEmpty(),
		strconv.Itoa(e.Progress),
		scoreField(e.Score),
		strconv.Itoa(e.Repeat),
		dateField(e.StartedAt),
		dateField(e.CompletedAt),
		strconv.Itoa(m.ID),
		string(m.Type),
		m.Format,
		m.Title.Romaji,
		m.Title.English,
		m.Title.Native,
		countField(m.Episodes),
		countField(m.Chapters),
		countField(m.Volumes),
		mediaDate(m.StartDate),
		mediaDate(m.EndDate),
		countField(m.AverageScore),
		strings.Join(m.Genres, "; "),
		m.Studio,
		m.SiteURL,
		countField(m.IDs.MAL),
	}
}

// listName renders the human list the entry sits on, by status and
// medium ("Watching" vs "Reading")
func listName(e domain.Entry) string {
	if e.Status == nil {
		return ""
	}
	reading := e.Meta.MediaType == domain.MediaTypeManga
	switch *e.Status {
	case domain.StatusCurrent:
		if reading {
			return "Reading"
		}
		return "Watching"
	case domain.StatusPlanning:
		if reading {
			return "Plan to Read"
		}
		return "Plan to Watch"
	case domain.StatusCompleted:
		return "Completed"
	case domain.StatusDropped:
		return "Dropped"
	case domain.StatusPaused:
		return "On-Hold"
	case domain.StatusRepeating:
		if reading {
			return "Rereading"
		}
		return "Rewatching"
	default:
		return string(*e.Status)
	}
}

// scoreField renders the internal 0-10 score with one decimal; unrated
// entries stay empty
func scoreField(score *float64) string {
	if score == nil || *score <= 0 {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', 1, 64)
}

// dateField renders an entry date, empty when unset
func dateField(d *domain.FuzzyDate) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.String()
}

// mediaDate renders a media calendar date, empty when unknown
func mediaDate(d domain.FuzzyDate) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

// countField renders a count, empty when unknown
func countField(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
