package mal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zoro-md/zoro/internal/domain"
)

// parseDate reads MAL's partial ISO dates: "2023-09-29", "2023-09",
// or a bare "2023"
func parseDate(s string) domain.FuzzyDate {
	var d domain.FuzzyDate
	parts := strings.SplitN(s, "-", 3)
	if len(parts) > 0 {
		d.Year, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		d.Month, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		d.Day, _ = strconv.Atoi(parts[2])
	}
	return d
}

// fullDate renders a date for the list-status form; MAL rejects
// partial dates so those are withheld
func fullDate(d *domain.FuzzyDate) string {
	if d == nil || d.Year == 0 || d.Month == 0 || d.Day == 0 {
		return ""
	}
	return d.String()
}

func toMedia(n malNode, requested domain.MediaType) domain.Media {
	mediaType := requested
	if mediaType == "" {
		mediaType = guessType(n.MediaType)
	}

	cover := ""
	if n.MainPicture != nil {
		cover = n.MainPicture.Large
		if cover == "" {
			cover = n.MainPicture.Medium
		}
	}

	english, native := "", ""
	if n.AlternativeTitles != nil {
		english = n.AlternativeTitles.En
		native = n.AlternativeTitles.Ja
	}

	studio := ""
	if len(n.Studios) > 0 {
		studio = n.Studios[0].Name
	}

	genres := make([]string, 0, len(n.Genres))
	for _, g := range n.Genres {
		genres = append(genres, g.Name)
	}

	start := parseDate(n.StartDate)
	return domain.Media{
		Source:       domain.SourceMAL,
		ID:           n.ID,
		IDs:          domain.IDs{MAL: n.ID},
		Type:         mediaType,
		Format:       strings.ToUpper(n.MediaType),
		Title:        domain.Title{English: english, Romaji: n.Title, Native: native},
		CoverURL:     cover,
		Episodes:     n.NumEpisodes,
		Chapters:     n.NumChapters,
		Volumes:      n.NumVolumes,
		Duration:     n.AverageEpisodeDuration / 60,
		AverageScore: int(math.Round(n.Mean * 10)),
		Votes:        n.NumScoringUsers,
		Genres:       genres,
		AiringStatus: strings.ToUpper(n.Status),
		StartDate:    start,
		EndDate:      parseDate(n.EndDate),
		Year:         start.Year,
		SiteURL:      fmt.Sprintf("https://myanimelist.net/%s/%d", mediaPath(mediaType), n.ID),
		Studio:       studio,
		Description:  n.Synopsis,
	}
}

// entryFrom joins a media with an optional list record. MAL keys
// records by media id, so the record reuses it as the entry id.
func entryFrom(media domain.Media, rec *malRecord, requested domain.MediaType) domain.Entry {
	out := domain.Entry{
		Media: media,
		Meta: domain.Meta{
			Source:    domain.SourceMAL,
			MediaType: requested,
			FetchedAt: time.Now(),
		},
	}
	if rec == nil {
		return out
	}

	out.ID = media.ID
	st := statusFromMAL(rec)
	if st != "" {
		out.Status = &st
	}
	if rec.Score > 0 {
		s := float64(rec.Score)
		out.Score = &s
	}
	if requested == domain.MediaTypeManga {
		out.Progress = rec.NumChaptersRead
		out.VolumeProgress = rec.NumVolumesRead
		out.Repeat = rec.NumTimesReread
	} else {
		out.Progress = rec.NumEpisodesWatched
		out.Repeat = rec.NumTimesRewatched
	}
	if d := parseDate(rec.StartDate); !d.IsZero() {
		out.StartedAt = &d
	}
	if d := parseDate(rec.FinishDate); !d.IsZero() {
		out.CompletedAt = &d
	}
	if rec.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, rec.UpdatedAt); err == nil {
			out.UpdatedAt = ts
		}
	}
	return out
}

// statusFromMAL maps the provider vocabulary onto the internal enum
func statusFromMAL(rec *malRecord) domain.Status {
	switch rec.Status {
	case "watching", "reading":
		return domain.StatusCurrent
	case "completed":
		return domain.StatusCompleted
	case "on_hold":
		return domain.StatusPaused
	case "dropped":
		return domain.StatusDropped
	case "plan_to_watch", "plan_to_read":
		return domain.StatusPlanning
	}
	return ""
}

// statusToMAL maps an internal status onto MAL's vocabulary. MAL has
// no REPEATING status, so that maps to nothing and the caller refuses.
func statusToMAL(s domain.Status, mediaType domain.MediaType) string {
	manga := mediaType == domain.MediaTypeManga
	switch s {
	case domain.StatusCurrent:
		if manga {
			return "reading"
		}
		return "watching"
	case domain.StatusPlanning:
		if manga {
			return "plan_to_read"
		}
		return "plan_to_watch"
	case domain.StatusCompleted:
		return "completed"
	case domain.StatusPaused:
		return "on_hold"
	case domain.StatusDropped:
		return "dropped"
	}
	return ""
}

// guessType reads MAL's media_type when the caller did not pin one
func guessType(malType string) domain.MediaType {
	switch malType {
	case "manga", "novel", "light_novel", "one_shot", "doujinshi", "manhwa", "manhua", "oel":
		return domain.MediaTypeManga
	}
	return domain.MediaTypeAnime
}

// mediaPath returns MAL's URL segment for a media type
func mediaPath(t domain.MediaType) string {
	if t == domain.MediaTypeManga {
		return "manga"
	}
	return "anime"
}

// listPath returns the list endpoint segment for a media type
func listPath(t domain.MediaType) string {
	if t == domain.MediaTypeManga {
		return "mangalist"
	}
	return "animelist"
}
