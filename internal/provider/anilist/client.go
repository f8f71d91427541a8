// Package anilist implements the AniList GraphQL client and its
// PIN/code-paste login flow. AniList is the only provider with the
// full capability set: update, remove, and favorites.
package anilist

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/shurcooL/graphql"

	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/provider"
)

const apiURL = "https://graphql.anilist.co"

// Client implements domain.Provider plus remove, favorites, and
// trending for AniList
type Client struct {
	gql    *graphql.Client
	logger *slog.Logger
}

// NewClient creates an AniList client. baseURL overrides the API
// endpoint when non-empty; headers supplies the bearer token when the
// user is logged in, and anonymous catalog reads work without it.
func NewClient(baseURL string, headers provider.HeaderFunc, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = apiURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpc := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &provider.Transport{
			Source:  domain.SourceAniList,
			Headers: headers,
		},
	}
	return &Client{
		gql:    graphql.NewClient(baseURL, httpc),
		logger: logger,
	}
}

// Source returns the provider identity
func (c *Client) Source() domain.Source { return domain.SourceAniList }

// Capabilities returns the full AniList edit matrix
func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{Update: true, Remove: true, Favorites: true}
}

// FetchList returns one chunk of a user's list, skipping custom lists
// so entries are not duplicated across their status list
func (c *Client) FetchList(ctx context.Context, username string, mediaType domain.MediaType, listStatus *domain.Status, page domain.Page) ([]domain.Entry, error) {
	page = page.Normalize()

	var q struct {
		MediaListCollection struct {
			Lists []struct {
				Name         string `graphql:"name"`
				IsCustomList bool   `graphql:"isCustomList"`
				Entries      []gqlListEntry
			} `graphql:"lists"`
		} `graphql:"MediaListCollection(userName: $userName, type: $type, status: $status, sort: [UPDATED_TIME_DESC], perChunk: $perChunk, chunk: $chunk)"`
	}
	vars := map[string]any{
		"userName": graphql.String(username),
		"type":     gqlMediaType(mediaType),
		"status":   optStatus(listStatus),
		"perChunk": graphql.Int(page.PerPage),
		"chunk":    graphql.Int(page.Page),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, gqlError(err)
	}

	var out []domain.Entry
	for _, list := range q.MediaListCollection.Lists {
		if list.IsCustomList {
			continue
		}
		for _, e := range list.Entries {
			out = append(out, toEntry(e, mediaType))
		}
	}
	c.logger.Debug("anilist list fetched", "user", username, "type", mediaType, "entries", len(out))
	return out, nil
}

// FetchItem returns the media with the viewer's list record when one
// exists; without a record the entry carries the media alone
func (c *Client) FetchItem(ctx context.Context, mediaID int, mediaType domain.MediaType) (*domain.Entry, error) {
	var q struct {
		Media struct {
			gqlMedia
			MediaListEntry *gqlRecord `graphql:"mediaListEntry"`
		} `graphql:"Media(id: $id, type: $type)"`
	}
	vars := map[string]any{
		"id":   graphql.Int(mediaID),
		"type": gqlMediaType(mediaType),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, gqlError(err)
	}

	if q.Media.MediaListEntry != nil {
		entry := toEntry(gqlListEntry{gqlRecord: *q.Media.MediaListEntry, Media: q.Media.gqlMedia}, mediaType)
		return &entry, nil
	}
	entry := catalogEntry(q.Media.gqlMedia, mediaType)
	return &entry, nil
}

// Search queries the AniList catalog
func (c *Client) Search(ctx context.Context, query string, mediaType domain.MediaType, page domain.Page) ([]domain.Entry, error) {
	page = page.Normalize()

	var q struct {
		Page struct {
			Media []gqlMedia `graphql:"media(search: $search, type: $type, sort: SEARCH_MATCH)"`
		} `graphql:"Page(page: $page, perPage: $perPage)"`
	}
	vars := map[string]any{
		"search":  graphql.String(query),
		"type":    gqlMediaType(mediaType),
		"page":    graphql.Int(page.Page),
		"perPage": graphql.Int(page.PerPage),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, gqlError(err)
	}

	out := make([]domain.Entry, 0, len(q.Page.Media))
	for _, m := range q.Page.Media {
		out = append(out, catalogEntry(m, mediaType))
	}
	return out, nil
}

// FetchTrending returns the catalog's currently-trending media
func (c *Client) FetchTrending(ctx context.Context, mediaType domain.MediaType, limit int) ([]domain.Entry, error) {
	if limit <= 0 {
		limit = 40
	}
	var q struct {
		Page struct {
			Media []gqlMedia `graphql:"media(type: $type, sort: TRENDING_DESC)"`
		} `graphql:"Page(page: 1, perPage: $perPage)"`
	}
	vars := map[string]any{
		"type":    gqlMediaType(mediaType),
		"perPage": graphql.Int(limit),
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, gqlError(err)
	}

	out := make([]domain.Entry, 0, len(q.Page.Media))
	for _, m := range q.Page.Media {
		out = append(out, catalogEntry(m, mediaType))
	}
	return out, nil
}

// FetchStats returns the user's aggregate statistics. AniList reports
// mean scores on the 100-point scale; they are normalized to 0-10.
func (c *Client) FetchStats(ctx context.Context, username string) (*domain.UserStats, error) {
	var q struct {
		User struct {
			Statistics struct {
				Anime struct {
					Count           int     `graphql:"count"`
					MeanScore       float64 `graphql:"meanScore"`
					MinutesWatched  int     `graphql:"minutesWatched"`
					EpisodesWatched int     `graphql:"episodesWatched"`
				} `graphql:"anime"`
				Manga struct {
					Count        int     `graphql:"count"`
					MeanScore    float64 `graphql:"meanScore"`
					ChaptersRead int     `graphql:"chaptersRead"`
					VolumesRead  int     `graphql:"volumesRead"`
				} `graphql:"manga"`
			} `graphql:"statistics"`
		} `graphql:"User(name: $name)"`
	}
	vars := map[string]any{"name": graphql.String(username)}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return nil, gqlError(err)
	}

	st := q.User.Statistics
	return &domain.UserStats{
		Source:   domain.SourceAniList,
		Username: username,
		Anime: domain.MediumStats{
			Count:           st.Anime.Count,
			MeanScore:       st.Anime.MeanScore / 10,
			MinutesWatched:  st.Anime.MinutesWatched,
			EpisodesWatched: st.Anime.EpisodesWatched,
		},
		Manga: domain.MediumStats{
			Count:        st.Manga.Count,
			MeanScore:    st.Manga.MeanScore / 10,
			ChaptersRead: st.Manga.ChaptersRead,
			VolumesRead:  st.Manga.VolumesRead,
		},
	}, nil
}

// UpdateEntry saves the patched entry. The full merged state is sent;
// scores travel as raw 0-100 so the account's score format is moot.
func (c *Client) UpdateEntry(ctx context.Context, entry *domain.Entry, patch domain.EntryPatch) (*domain.Entry, error) {
	id := anilistID(entry.Media)
	if id == 0 {
		return nil, &domain.ValidationError{Field: "mediaId", Reason: "no AniList id known for media"}
	}
	next := patch.Apply(*entry)

	var m struct {
		SaveMediaListEntry gqlListEntry `graphql:"SaveMediaListEntry(mediaId: $mediaId, status: $status, scoreRaw: $scoreRaw, progress: $progress, repeat: $repeat, startedAt: $startedAt, completedAt: $completedAt)"`
	}
	scoreRaw := 0
	if next.Score != nil {
		scoreRaw = int(math.Round(*next.Score * 10))
	}
	vars := map[string]any{
		"mediaId":     graphql.Int(id),
		"status":      optStatus(next.Status),
		"scoreRaw":    graphql.Int(scoreRaw),
		"progress":    graphql.Int(next.Progress),
		"repeat":      graphql.Int(next.Repeat),
		"startedAt":   toDateInput(next.StartedAt),
		"completedAt": toDateInput(next.CompletedAt),
	}
	if err := c.gql.Mutate(ctx, &m, vars); err != nil {
		return nil, gqlError(err)
	}

	saved := toEntry(m.SaveMediaListEntry, entry.Meta.MediaType)
	c.logger.Info("anilist entry saved", "mediaId", id, "status", saved.StatusOrEmpty(), "progress", saved.Progress)
	return &saved, nil
}

// RemoveEntry deletes the user's list record
func (c *Client) RemoveEntry(ctx context.Context, entry *domain.Entry) error {
	if entry.ID == 0 {
		return &domain.NotFoundError{Source: domain.SourceAniList, Kind: "entry", Key: entry.Media.DisplayTitle()}
	}

	var m struct {
		DeleteMediaListEntry struct {
			Deleted bool `graphql:"deleted"`
		} `graphql:"DeleteMediaListEntry(id: $id)"`
	}
	vars := map[string]any{"id": graphql.Int(entry.ID)}
	if err := c.gql.Mutate(ctx, &m, vars); err != nil {
		return gqlError(err)
	}
	if !m.DeleteMediaListEntry.Deleted {
		return &domain.ProviderError{Source: domain.SourceAniList, Status: 200, Body: "entry was not deleted"}
	}
	c.logger.Info("anilist entry removed", "entryId", entry.ID)
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new state,
// read back from the favorites collection in the response
func (c *Client) ToggleFavorite(ctx context.Context, mediaID int, mediaType domain.MediaType) (bool, error) {
	type favPage struct {
		Nodes []struct {
			ID int `graphql:"id"`
		} `graphql:"nodes"`
	}

	var ids []int
	if mediaType == domain.MediaTypeManga {
		var m struct {
			ToggleFavourite struct {
				Manga favPage `graphql:"manga(page: 1, perPage: 50)"`
			} `graphql:"ToggleFavourite(mangaId: $id)"`
		}
		if err := c.gql.Mutate(ctx, &m, map[string]any{"id": graphql.Int(mediaID)}); err != nil {
			return false, gqlError(err)
		}
		for _, n := range m.ToggleFavourite.Manga.Nodes {
			ids = append(ids, n.ID)
		}
	} else {
		var m struct {
			ToggleFavourite struct {
				Anime favPage `graphql:"anime(page: 1, perPage: 50)"`
			} `graphql:"ToggleFavourite(animeId: $id)"`
		}
		if err := c.gql.Mutate(ctx, &m, map[string]any{"id": graphql.Int(mediaID)}); err != nil {
			return false, gqlError(err)
		}
		for _, n := range m.ToggleFavourite.Anime.Nodes {
			ids = append(ids, n.ID)
		}
	}

	for _, id := range ids {
		if id == mediaID {
			return true, nil
		}
	}
	return false, nil
}

func optStatus(s *domain.Status) *MediaListStatus {
	if s == nil {
		return nil
	}
	v := statusToAniList(*s)
	return &v
}

func anilistID(m domain.Media) int {
	if m.IDs.AniList != 0 {
		return m.IDs.AniList
	}
	if m.Source == domain.SourceAniList {
		return m.ID
	}
	return 0
}

// gqlError unwraps transport-level typed errors and wraps pure
// GraphQL failures as provider errors
func gqlError(err error) error {
	if err == nil {
		return nil
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.ProviderError{Source: domain.SourceAniList, Status: 200, Body: err.Error()}
}
