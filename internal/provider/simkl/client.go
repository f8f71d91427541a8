// Package simkl implements the Simkl REST client and its device-code
// login flow. Simkl tracks anime, TV, and movies; manga never routes
// here. Every call carries the simkl-api-key header next to the
// bearer token.
package simkl

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/provider"
)

const apiURL = "https://api.simkl.com"

// Client implements domain.Provider plus trending and ID lookup for
// Simkl
type Client struct {
	rest   *provider.REST
	logger *slog.Logger
}

// NewClient creates a Simkl client. baseURL overrides the API endpoint
// when non-empty. The header hook must supply the simkl-api-key header
// and, for user data, the bearer token.
func NewClient(baseURL string, headers provider.HeaderFunc, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = apiURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rest:   provider.NewREST(domain.SourceSimkl, baseURL, headers, nil, logger),
		logger: logger,
	}
}

// Source returns the provider identity
func (c *Client) Source() domain.Source { return domain.SourceSimkl }

// Capabilities returns Simkl's edit matrix: update only
func (c *Client) Capabilities() domain.Capabilities {
	return domain.Capabilities{Update: true}
}

func checkType(mediaType domain.MediaType) error {
	if mediaType == domain.MediaTypeManga {
		return &domain.CapabilityError{Source: domain.SourceSimkl, Operation: "manga"}
	}
	return nil
}

// FetchList returns one page of the authenticated user's list. Simkl
// has no per-user public lists and returns whole lists at once, so the
// username is ignored and paging is a local window over the response.
func (c *Client) FetchList(ctx context.Context, username string, mediaType domain.MediaType, listStatus *domain.Status, page domain.Page) ([]domain.Entry, error) {
	if err := checkType(mediaType); err != nil {
		return nil, err
	}
	page = page.Normalize()

	path := "/sync/all-items/" + listPath(mediaType)
	if listStatus != nil {
		st := statusToSimkl(*listStatus)
		if st == "" {
			return nil, &domain.CapabilityError{Source: domain.SourceSimkl, Operation: fmt.Sprintf("status %s", *listStatus)}
		}
		if mediaType == domain.MediaTypeMovie && !movieStatusLegal(*listStatus) {
			return nil, &domain.CapabilityError{Source: domain.SourceSimkl, Operation: fmt.Sprintf("status %s for movies", *listStatus)}
		}
		path += "/" + st
	}

	q := url.Values{}
	q.Set("extended", "full")

	var out simklAllItems
	if err := c.rest.Get(ctx, path, q, &out); err != nil {
		return nil, err
	}

	items := out.section(mediaType)
	start := page.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + page.PerPage
	if end > len(items) {
		end = len(items)
	}

	entries := make([]domain.Entry, 0, end-start)
	for _, item := range items[start:end] {
		entries = append(entries, entryFrom(item, mediaType))
	}
	c.logger.Debug("simkl list fetched", "type", mediaType, "entries", len(entries))
	return entries, nil
}

// FetchItem returns the catalog detail for one media item. Simkl has
// no single-item record endpoint, so the entry is always record-less;
// callers merge the user's record from the cached list when they hold
// one.
func (c *Client) FetchItem(ctx context.Context, mediaID int, mediaType domain.MediaType) (*domain.Entry, error) {
	if err := checkType(mediaType); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("extended", "full")

	var sh simklShow
	path := fmt.Sprintf("/%s/%d", detailPath(mediaType), mediaID)
	if err := c.rest.Get(ctx, path, q, &sh); err != nil {
		return nil, err
	}
	if sh.IDs.id() == 0 {
		sh.IDs.Simkl = mediaID
	}

	entry := catalogEntry(&sh, mediaType)
	return &entry, nil
}

// Search queries the Simkl catalog
func (c *Client) Search(ctx context.Context, query string, mediaType domain.MediaType, page domain.Page) ([]domain.Entry, error) {
	if err := checkType(mediaType); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &domain.ValidationError{Field: "query", Reason: "empty search"}
	}
	page = page.Normalize()

	q := url.Values{}
	q.Set("q", query)
	q.Set("extended", "full")
	q.Set("page", strconv.Itoa(page.Page))
	q.Set("limit", strconv.Itoa(page.PerPage))

	var rows []simklShow
	if err := c.rest.Get(ctx, "/search/"+searchPath(mediaType), q, &rows); err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, catalogEntry(&rows[i], mediaType))
	}
	c.logger.Debug("simkl search", "query", query, "entries", len(entries))
	return entries, nil
}

// FetchTrending returns up to limit currently-trending items
func (c *Client) FetchTrending(ctx context.Context, mediaType domain.MediaType, limit int) ([]domain.Entry, error) {
	if err := checkType(mediaType); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 40
	}

	q := url.Values{}
	q.Set("extended", "full")

	var rows []simklShow
	if err := c.rest.Get(ctx, "/"+detailPath(mediaType)+"/trending", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	entries := make([]domain.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, catalogEntry(&rows[i], mediaType))
	}
	c.logger.Debug("simkl trending fetched", "type", mediaType, "entries", len(entries))
	return entries, nil
}

// FetchStats returns the authenticated account's watch statistics.
// Simkl keys stats by numeric account id, so the account is resolved
// through the settings endpoint first and the username is ignored.
func (c *Client) FetchStats(ctx context.Context, username string) (*domain.UserStats, error) {
	var settings simklSettings
	if err := c.rest.PostJSON(ctx, "/users/settings", struct{}{}, &settings); err != nil {
		return nil, err
	}
	if settings.Account.ID == 0 {
		return nil, &domain.AuthError{Source: domain.SourceSimkl, Reason: "settings response carries no account", Err: domain.ErrLoginRequired}
	}

	var stats simklStats
	if err := c.rest.Get(ctx, fmt.Sprintf("/users/%d/stats", settings.Account.ID), nil, &stats); err != nil {
		return nil, err
	}

	return &domain.UserStats{
		Source:   domain.SourceSimkl,
		Username: settings.User.Name,
		Anime: domain.MediumStats{
			Count:           bucketCount(stats.Anime),
			MinutesWatched:  stats.Anime.TotalMins,
			EpisodesWatched: watchedEpisodes(stats.Anime),
		},
	}, nil
}

// UpdateEntry moves the entry between lists and stores its rating.
// Simkl's sync endpoints cover status and rating only; progress,
// repeat, and date edits are refused.
func (c *Client) UpdateEntry(ctx context.Context, entry *domain.Entry, patch domain.EntryPatch) (*domain.Entry, error) {
	mediaType := entry.Meta.MediaType
	if err := checkType(mediaType); err != nil {
		return nil, err
	}
	id := simklID(entry.Media)
	if id == 0 {
		return nil, &domain.ValidationError{Field: "media", Reason: "no simkl id on entry"}
	}
	if patch.Progress != nil || patch.Repeat != nil {
		return nil, &domain.CapabilityError{Source: domain.SourceSimkl, Operation: "progress edits"}
	}
	if patch.StartedAt != nil || patch.CompletedAt != nil {
		return nil, &domain.CapabilityError{Source: domain.SourceSimkl, Operation: "date edits"}
	}
	if patch.Status == nil && patch.Score == nil {
		return nil, &domain.ValidationError{Field: "patch", Reason: "nothing to change"}
	}

	if patch.Status != nil {
		st := statusToSimkl(*patch.Status)
		if st == "" {
			return nil, &domain.CapabilityError{Source: domain.SourceSimkl, Operation: fmt.Sprintf("status %s", *patch.Status)}
		}
		if mediaType == domain.MediaTypeMovie && !movieStatusLegal(*patch.Status) {
			return nil, &domain.CapabilityError{Source: domain.SourceSimkl, Operation: fmt.Sprintf("status %s for movies", *patch.Status)}
		}
		if err := c.moveToList(ctx, mediaType, id, st); err != nil {
			return nil, err
		}
	}
	if patch.Score != nil {
		if err := c.rate(ctx, mediaType, id, *patch.Score); err != nil {
			return nil, err
		}
	}

	next := patch.Apply(*entry)
	next.ID = id
	next.UpdatedAt = time.Now()
	c.logger.Debug("simkl entry updated", "media", id)
	return &next, nil
}

func (c *Client) moveToList(ctx context.Context, mediaType domain.MediaType, id int, status string) error {
	body := syncBody(mediaType, simklSyncItem{To: status, IDs: simklIDs{Simkl: id}})
	var out simklSyncResponse
	if err := c.rest.PostJSON(ctx, "/sync/add-to-list", body, &out); err != nil {
		return err
	}
	for _, missing := range out.NotFound {
		if len(missing) > 0 {
			return &domain.NotFoundError{Source: domain.SourceSimkl, Kind: "media", Key: strconv.Itoa(id)}
		}
	}
	return nil
}

// rate stores a 1-10 rating; zero clears it through the remove endpoint
func (c *Client) rate(ctx context.Context, mediaType domain.MediaType, id int, score float64) error {
	rating := int(math.Round(score))
	item := simklSyncItem{IDs: simklIDs{Simkl: id}}
	path := "/sync/ratings/remove"
	if rating > 0 {
		item.Rating = rating
		path = "/sync/ratings"
	}
	return c.rest.PostJSON(ctx, path, syncBody(mediaType, item), nil)
}

// LookupTMDB resolves a TMDb id to Simkl catalog candidates. The
// reconciler uses it to route trending movie and TV edits to Simkl.
func (c *Client) LookupTMDB(ctx context.Context, tmdbID int, mediaType domain.MediaType) ([]domain.Media, error) {
	if err := checkType(mediaType); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("tmdb", strconv.Itoa(tmdbID))
	q.Set("type", lookupType(mediaType))

	var rows []simklShow
	if err := c.rest.Get(ctx, "/search/id", q, &rows); err != nil {
		return nil, err
	}

	out := make([]domain.Media, 0, len(rows))
	for i := range rows {
		out = append(out, toMedia(&rows[i], mediaType))
	}
	return out, nil
}

// simklID picks the Simkl id for a media, whichever field carries it
func simklID(m domain.Media) int {
	if m.IDs.Simkl != 0 {
		return m.IDs.Simkl
	}
	if m.Source == domain.SourceSimkl {
		return m.ID
	}
	return 0
}
