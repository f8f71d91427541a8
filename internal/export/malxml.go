package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"

	"github.com/zoro-md/zoro/internal/domain"
)

// MAL's user_export_type discriminator: 1 for anime lists, 2 for manga
const (
	exportTypeAnime = 1
	exportTypeManga = 2
)

// cdata wraps free text in a CDATA section, the form MAL's importer
// expects for every textual field
type cdata struct {
	Value string `xml:",cdata"`
}

type malInfo struct {
	UserID         string `xml:"user_id"`
	Username       cdata  `xml:"user_name"`
	UserExportType int    `xml:"user_export_type"`
	TotalEntries   int    `xml:"user_total_entries"`
}

type malAnime struct {
	XMLName        xml.Name `xml:"anime"`
	SeriesID       int      `xml:"series_animedb_id"`
	SeriesTitle    cdata    `xml:"series_title"`
	SeriesType     cdata    `xml:"series_type"`
	SeriesEpisodes int      `xml:"series_episodes"`
	MyID           int      `xml:"my_id"`
	WatchedEps     int      `xml:"my_watched_episodes"`
	StartDate      string   `xml:"my_start_date"`
	FinishDate     string   `xml:"my_finish_date"`
	Score          int      `xml:"my_score"`
	Status         cdata    `xml:"my_status"`
	TimesWatched   int      `xml:"my_times_watched"`
	UpdateOnImport int      `xml:"update_on_import"`
}

type malManga struct {
	XMLName        xml.Name `xml:"manga"`
	SeriesID       int      `xml:"manga_mangadb_id"`
	SeriesTitle    cdata    `xml:"manga_title"`
	SeriesVolumes  int      `xml:"manga_volumes"`
	SeriesChapters int      `xml:"manga_chapters"`
	MyID           int      `xml:"my_id"`
	ReadVolumes    int      `xml:"my_read_volumes"`
	ReadChapters   int      `xml:"my_read_chapters"`
	StartDate      string   `xml:"my_start_date"`
	FinishDate     string   `xml:"my_finish_date"`
	Score          int      `xml:"my_score"`
	Status         cdata    `xml:"my_status"`
	TimesRead      int      `xml:"my_times_read"`
	UpdateOnImport int      `xml:"update_on_import"`
}

type malAnimeList struct {
	XMLName xml.Name   `xml:"myanimelist"`
	Info    malInfo    `xml:"myinfo"`
	Entries []malAnime `xml:"anime"`
}

type malMangaList struct {
	XMLName xml.Name   `xml:"myanimelist"`
	Info    malInfo    `xml:"myinfo"`
	Entries []malManga `xml:"manga"`
}

// MALAnimeXML renders an anime list as a MAL-importable XML document
func MALAnimeXML(username string, entries []domain.Entry) ([]byte, error) {
	doc := malAnimeList{
		Info: malInfo{
			Username:       cdata{username},
			UserExportType: exportTypeAnime,
			TotalEntries:   len(entries),
		},
	}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, malAnime{
			SeriesID:       e.Media.IDs.MAL,
			SeriesTitle:    cdata{exportTitle(e.Media)},
			SeriesType:     cdata{e.Media.Format},
			SeriesEpisodes: e.Media.Episodes,
			WatchedEps:     e.Progress,
			StartDate:      malDate(e.StartedAt),
			FinishDate:     malDate(e.CompletedAt),
			Score:          malScore(e.Score),
			Status:         cdata{malStatus(e.Status, false)},
			TimesWatched:   e.Repeat,
			UpdateOnImport: 1,
		})
	}
	return renderXML(doc)
}

// MALMangaXML renders a manga list as a MAL-importable XML document
func MALMangaXML(username string, entries []domain.Entry) ([]byte, error) {
	doc := malMangaList{
		Info: malInfo{
			Username:       cdata{username},
			UserExportType: exportTypeManga,
			TotalEntries:   len(entries),
		},
	}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, malManga{
			SeriesID:       e.Media.IDs.MAL,
			SeriesTitle:    cdata{exportTitle(e.Media)},
			SeriesVolumes:  e.Media.Volumes,
			SeriesChapters: e.Media.Chapters,
			ReadVolumes:    e.VolumeProgress,
			ReadChapters:   e.Progress,
			StartDate:      malDate(e.StartedAt),
			FinishDate:     malDate(e.CompletedAt),
			Score:          malScore(e.Score),
			Status:         cdata{malStatus(e.Status, true)},
			TimesRead:      e.Repeat,
			UpdateOnImport: 1,
		})
	}
	return renderXML(doc)
}

func renderXML(doc any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "\t")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("export: encode xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// malStatus maps the internal status onto MAL's XML vocabulary.
// REPEATING has no MAL equivalent and exports as the active status.
func malStatus(s *domain.Status, reading bool) string {
	if s == nil {
		return ""
	}
	switch *s {
	case domain.StatusCurrent, domain.StatusRepeating:
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
	default:
		return string(*s)
	}
}

// malDate renders an entry date as YYYY-MM-DD with missing components
// zeroed, MAL's convention for unknown dates
func malDate(d *domain.FuzzyDate) string {
	if d == nil {
		return "0000-00-00"
	}
	return d.String()
}

// malScore rounds the internal 0-10 score to MAL's integer scale;
// unrated exports as zero
func malScore(score *float64) int {
	if score == nil {
		return 0
	}
	return int(math.Round(*score))
}

func exportTitle(m domain.Media) string {
	if m.Title.Romaji != "" {
		return m.Title.Romaji
	}
	return m.DisplayTitle()
}
