package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zoro-md/zoro/internal/domain"
)

const (
	exportDir     = "Zoro/Export"
	exportPerPage = 100
)

// Lister is the read surface the exporter pulls lists through. It is the
// media service in production and a fake in tests.
type Lister interface {
	List(ctx context.Context, src domain.Source, username string, mediaType domain.MediaType, listStatus *domain.Status, page domain.Page) ([]domain.Entry, error)
	AuthenticatedUsername(ctx context.Context, src domain.Source) (string, error)
}

// Exporter pulls a provider's full lists and writes the export artifacts
// into the vault. Serialization is delegated to the pure renderers in this
// package; all I/O stays here.
type Exporter struct {
	lister Lister
	fs     domain.VaultFS
	logger *slog.Logger

	// Progress, when set, is called after each fetched page with the
	// running entry count for the current media type
	Progress func(mediaType domain.MediaType, fetched int)
}

func NewExporter(lister Lister, fs domain.VaultFS, logger *slog.Logger) *Exporter {
	return &Exporter{lister: lister, fs: fs, logger: logger}
}

// exportTypes lists the media types each provider's export covers
func exportTypes(src domain.Source) []domain.MediaType {
	switch src {
	case domain.SourceSimkl:
		return []domain.MediaType{domain.MediaTypeAnime, domain.MediaTypeMovie, domain.MediaTypeTV}
	case domain.SourceAniList, domain.SourceMAL:
		return []domain.MediaType{domain.MediaTypeAnime, domain.MediaTypeManga}
	default:
		return nil
	}
}

func providerLabel(src domain.Source) string {
	switch src {
	case domain.SourceAniList:
		return "AniList"
	case domain.SourceMAL:
		return "MAL"
	case domain.SourceSimkl:
		return "Simkl"
	default:
		return string(src)
	}
}

// Export fetches every list page for the provider and writes the artifact
// set: always a unified CSV, MAL XML per anime/manga list with entries, and
// an IMDb CSV for Simkl video entries. Returns the vault-relative paths of
// the files written.
func (x *Exporter) Export(ctx context.Context, src domain.Source, username string) ([]string, error) {
	types := exportTypes(src)
	if types == nil {
		return nil, &domain.CapabilityError{Source: src, Operation: "export"}
	}
	username, err := x.resolveUser(ctx, src, username)
	if err != nil {
		return nil, err
	}

	byType := make(map[domain.MediaType][]domain.Entry, len(types))
	var all []domain.Entry
	for _, mt := range types {
		entries, err := x.fetchAll(ctx, src, username, mt)
		if err != nil {
			return nil, err
		}
		byType[mt] = entries
		all = append(all, entries...)
	}

	if err := x.fs.MkdirAll(exportDir); err != nil {
		return nil, fmt.Errorf("export: create directory: %w", err)
	}

	label := providerLabel(src)
	var written []string
	write := func(name string, data []byte) error {
		rel := exportDir + "/" + name
		if err := x.fs.WriteFile(rel, data); err != nil {
			return fmt.Errorf("export: write %s: %w", rel, err)
		}
		written = append(written, rel)
		return nil
	}

	unified, err := UnifiedCSV(all)
	if err != nil {
		return nil, err
	}
	if err := write(fmt.Sprintf("Zoro_%s_Unified.csv", label), unified); err != nil {
		return nil, err
	}

	if anime := byType[domain.MediaTypeAnime]; len(anime) > 0 {
		data, err := MALAnimeXML(username, anime)
		if err != nil {
			return nil, err
		}
		if err := write(fmt.Sprintf("Zoro_%s_Anime.xml", label), data); err != nil {
			return nil, err
		}
	}
	if manga := byType[domain.MediaTypeManga]; len(manga) > 0 {
		data, err := MALMangaXML(username, manga)
		if err != nil {
			return nil, err
		}
		if err := write(fmt.Sprintf("Zoro_%s_Manga.xml", label), data); err != nil {
			return nil, err
		}
	}

	if src == domain.SourceSimkl {
		video := append(byType[domain.MediaTypeMovie], byType[domain.MediaTypeTV]...)
		if len(video) > 0 {
			data, err := IMDbCSV(video)
			if err != nil {
				return nil, err
			}
			if err := write(fmt.Sprintf("Zoro_%s_IMDb.csv", label), data); err != nil {
				return nil, err
			}
		}
	}

	x.logger.Info("export complete", "source", src, "user", username, "files", len(written), "entries", len(all))
	return written, nil
}

func (x *Exporter) resolveUser(ctx context.Context, src domain.Source, username string) (string, error) {
	if username != "" {
		return username, nil
	}
	name, err := x.lister.AuthenticatedUsername(ctx, src)
	if err != nil {
		return "", err
	}
	return name, nil
}

// fetchAll pages through the full list for one media type. A short page
// ends the walk.
func (x *Exporter) fetchAll(ctx context.Context, src domain.Source, username string, mt domain.MediaType) ([]domain.Entry, error) {
	var out []domain.Entry
	for page := 1; ; page++ {
		entries, err := x.lister.List(ctx, src, username, mt, nil, domain.Page{Page: page, PerPage: exportPerPage})
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
		if x.Progress != nil {
			x.Progress(mt, len(out))
		}
		if len(entries) < exportPerPage {
			return out, nil
		}
	}
}
