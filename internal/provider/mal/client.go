// Package mal implements the MyAnimeList API v2 client and its PKCE
// login flow. MAL supports update and remove but has no favorites API.
package mal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/provider"
)

const apiURL = "https://api.myanimelist.net/v2"

// Client implements domain.Provider plus remove and trending for MAL
type Client struct {
	rest   *provider.REST
	logger *slog.Logger
}

// NewClient creates a MAL client. baseURL overrides the API endpoint
// when non-empty. The header hook supplies either the user's bearer
// token or the public X-MAL-CLIENT-ID header for anonymous reads.
func NewClient(baseURL string, headers provider.HeaderFunc, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = apiURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rest:   provider.NewREST(domain.SourceMAL, baseURL, headers, nil, logger),
		logger: logger,
	}
}

// Source returns the provider identity
func (c *Client) Source() domain.Source { return domain.SourceMAL }

// Capabilities returns MAL's edit matrix: update only. Removal and
// favorites stay off so the edit coordinator refuses them up front.
func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{Update: true}
}

func nodeFields(t domain.MediaType) string {
	base := "id,title,main_picture,alternative_titles,media_type,status,genres,mean,num_scoring_users,start_date,end_date,synopsis"
	if t == domain.MediaTypeManga {
		return base + ",num_chapters,num_volumes"
	}
	return base + ",num_episodes,average_episode_duration,studios"
}

// recordFields builds the list-status field selector. The list
// endpoints expose it as list_status, the detail endpoints as
// my_list_status.
func recordFields(key string, t domain.MediaType) string {
	if t == domain.MediaTypeManga {
		return key + "{status,score,num_chapters_read,num_volumes_read,num_times_reread,start_date,finish_date,updated_at}"
	}
	return key + "{status,score,num_episodes_watched,num_times_rewatched,start_date,finish_date,updated_at}"
}

// FetchList returns one page of a user's list. An empty username
// reads the authenticated user's list.
func (c *Client) FetchList(ctx context.Context, username string, mediaType domain.MediaType, listStatus *domain.Status, page domain.Page) ([]domain.Entry, error) {
	page = page.Normalize()
	user := username
	if user == "" {
		user = "@me"
	}

	q := url.Values{}
	q.Set("fields", nodeFields(mediaType)+","+recordFields("list_status", mediaType))
	q.Set("limit", strconv.Itoa(page.PerPage))
	q.Set("offset", strconv.Itoa(page.Offset()))
	q.Set("nsfw", "true")
	if listStatus != nil {
		st := statusToMAL(*listStatus, mediaType)
		if st == "" {
			return nil, &domain.CapabilityError{Source: domain.SourceMAL, Operation: fmt.Sprintf("status %s", *listStatus)}
		}
		q.Set("status", st)
	}

	var out malPage
	path := fmt.Sprintf("/users/%s/%s", url.PathEscape(user), listPath(mediaType))
	if err := c.rest.Get(ctx, path, q, &out); err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(out.Data))
	for _, item := range out.Data {
		entries = append(entries, entryFrom(toMedia(item.Node, mediaType), item.ListStatus, mediaType))
	}
	c.logger.Debug("mal list fetched", "user", user, "type", mediaType, "entries", len(entries))
	return entries, nil
}

// FetchItem returns the media with the authenticated user's record
// when one exists
func (c *Client) FetchItem(ctx context.Context, mediaID int, mediaType domain.MediaType) (*domain.Entry, error) {
	q := url.Values{}
	q.Set("fields", nodeFields(mediaType)+","+recordFields("my_list_status", mediaType))

	var out malDetail
	path := fmt.Sprintf("/%s/%d", mediaPath(mediaType), mediaID)
	if err := c.rest.Get(ctx, path, q, &out); err != nil {
		return nil, err
	}

	entry := entryFrom(toMedia(out.malNode, mediaType), out.MyListStatus, mediaType)
	return &entry, nil
}

// Search queries the MAL catalog. MAL rejects queries shorter than
// three characters, so those fail fast.
func (c *Client) Search(ctx context.Context, query string, mediaType domain.MediaType, page domain.Page) ([]domain.Entry, error) {
	query = strings.TrimSpace(query)
	if len(query) < 3 {
		return nil, &domain.ValidationError{Field: "query", Reason: "mal search needs at least 3 characters"}
	}
	page = page.Normalize()

	q := url.Values{}
	q.Set("q", query)
	q.Set("fields", nodeFields(mediaType))
	q.Set("limit", strconv.Itoa(page.PerPage))
	q.Set("offset", strconv.Itoa(page.Offset()))
	q.Set("nsfw", "true")

	var out malPage
	if err := c.rest.Get(ctx, "/"+mediaPath(mediaType), q, &out); err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(out.Data))
	for _, item := range out.Data {
		entries = append(entries, entryFrom(toMedia(item.Node, mediaType), nil, mediaType))
	}
	return entries, nil
}

// FetchTrending returns currently-airing anime or popular manga from
// the ranking endpoint
func (c *Client) FetchTrending(ctx context.Context, mediaType domain.MediaType, limit int) ([]domain.Entry, error) {
	if limit <= 0 {
		limit = 40
	}
	rankingType := "airing"
	if mediaType == domain.MediaTypeManga {
		rankingType = "bypopularity"
	}

	q := url.Values{}
	q.Set("ranking_type", rankingType)
	q.Set("fields", nodeFields(mediaType))
	q.Set("limit", strconv.Itoa(limit))

	var out malPage
	path := fmt.Sprintf("/%s/ranking", mediaPath(mediaType))
	if err := c.rest.Get(ctx, path, q, &out); err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(out.Data))
	for _, item := range out.Data {
		entries = append(entries, entryFrom(toMedia(item.Node, mediaType), nil, mediaType))
	}
	return entries, nil
}

// FetchStats returns the authenticated user's statistics. MAL only
// exposes anime statistics, and only for the token's owner; the
// username argument is informational.
func (c *Client) FetchStats(ctx context.Context, username string) (*domain.UserStats, error) {
	q := url.Values{}
	q.Set("fields", "anime_statistics")

	var out malUser
	if err := c.rest.Get(ctx, "/users/@me", q, &out); err != nil {
		return nil, err
	}

	stats := &domain.UserStats{Source: domain.SourceMAL, Username: out.Name}
	if st := out.AnimeStatistics; st != nil {
		stats.Anime = domain.MediumStats{
			Count:           st.NumItems,
			MeanScore:       st.MeanScore,
			MinutesWatched:  int(math.Round(st.NumDays * 24 * 60)),
			EpisodesWatched: st.NumEpisodes,
		}
	}
	return stats, nil
}

// UpdateEntry patches the user's list record with the merged
// post-edit state and returns the saved entry
func (c *Client) UpdateEntry(ctx context.Context, entry *domain.Entry, patch domain.EntryPatch) (*domain.Entry, error) {
	id := malID(entry.Media)
	if id == 0 {
		return nil, &domain.ValidationError{Field: "mediaId", Reason: "no MAL id known for media"}
	}
	mediaType := entry.Meta.MediaType
	next := patch.Apply(*entry)

	form := url.Values{}
	if next.Status != nil {
		st := statusToMAL(*next.Status, mediaType)
		if st == "" {
			return nil, &domain.CapabilityError{Source: domain.SourceMAL, Operation: fmt.Sprintf("status %s", *next.Status)}
		}
		form.Set("status", st)
	}

	score := 0
	if next.Score != nil {
		score = int(math.Round(*next.Score))
	}
	form.Set("score", strconv.Itoa(score))

	if mediaType == domain.MediaTypeManga {
		form.Set("num_chapters_read", strconv.Itoa(next.Progress))
		form.Set("num_times_reread", strconv.Itoa(next.Repeat))
		if next.VolumeProgress > 0 {
			form.Set("num_volumes_read", strconv.Itoa(next.VolumeProgress))
		}
	} else {
		form.Set("num_watched_episodes", strconv.Itoa(next.Progress))
		form.Set("num_times_rewatched", strconv.Itoa(next.Repeat))
	}

	if d := fullDate(next.StartedAt); d != "" {
		form.Set("start_date", d)
	}
	if d := fullDate(next.CompletedAt); d != "" {
		form.Set("finish_date", d)
	}

	var saved malRecord
	path := fmt.Sprintf("/%s/%d/my_list_status", mediaPath(mediaType), id)
	if err := c.rest.PatchForm(ctx, path, form, &saved); err != nil {
		return nil, err
	}

	result := entryFrom(entry.Media, &saved, mediaType)
	c.logger.Info("mal entry saved", "mediaId", id, "status", result.StatusOrEmpty(), "progress", result.Progress)
	return &result, nil
}

func malID(m domain.Media) int {
	if m.IDs.MAL != 0 {
		return m.IDs.MAL
	}
	if m.Source == domain.SourceMAL {
		return m.ID
	}
	return 0
}
