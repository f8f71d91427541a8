// Package tmdb implements the read-only TMDb catalog client. It backs
// movie and TV trending and supplies the external-ID lookups the
// reconciler cross-walks with. Every request carries the api_key query
// parameter; there is no user auth.
package tmdb

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/provider"
)

const apiURL = "https://api.themoviedb.org/3"

// KeyFunc supplies the TMDb API key at call time, so a key added in
// settings takes effect without rebuilding the client
type KeyFunc func() (string, error)

// Client is the TMDb catalog reader
type Client struct {
	rest   *provider.REST
	key    KeyFunc
	logger *slog.Logger
}

// NewClient creates a TMDb client. baseURL overrides the API endpoint
// when non-empty.
func NewClient(baseURL string, key KeyFunc, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = apiURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rest:   provider.NewREST(domain.SourceTMDB, baseURL, nil, nil, logger),
		key:    key,
		logger: logger,
	}
}

// Source returns the provider identity
func (c *Client) Source() domain.Source { return domain.SourceTMDB }

func typePath(t domain.MediaType) (string, error) {
	switch t {
	case domain.MediaTypeMovie:
		return "movie", nil
	case domain.MediaTypeTV:
		return "tv", nil
	default:
		return "", &domain.CapabilityError{Source: domain.SourceTMDB, Operation: strings.ToLower(string(t))}
	}
}

func (c *Client) query(extra url.Values) (url.Values, error) {
	key, err := c.key()
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("api_key", key)
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return q, nil
}

// FetchTrending returns up to limit items trending this week
func (c *Client) FetchTrending(ctx context.Context, mediaType domain.MediaType, limit int) ([]domain.Entry, error) {
	path, err := typePath(mediaType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 40
	}

	// One TMDb page holds 20 results; fetch pages until limit is met
	var entries []domain.Entry
	for page := 1; len(entries) < limit && page <= (limit+19)/20; page++ {
		q, err := c.query(url.Values{"page": {strconv.Itoa(page)}})
		if err != nil {
			return nil, err
		}
		var out tmdbPage
		if err := c.rest.Get(ctx, "/trending/"+path+"/week", q, &out); err != nil {
			if len(entries) > 0 {
				break
			}
			return nil, err
		}
		for i := range out.Results {
			if len(entries) >= limit {
				break
			}
			entries = append(entries, catalogEntry(&out.Results[i], mediaType))
		}
		if page >= out.TotalPages {
			break
		}
	}
	c.logger.Debug("tmdb trending fetched", "type", mediaType, "entries", len(entries))
	return entries, nil
}

// Search queries the TMDb catalog
func (c *Client) Search(ctx context.Context, query string, mediaType domain.MediaType, page domain.Page) ([]domain.Entry, error) {
	path, err := typePath(mediaType)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &domain.ValidationError{Field: "query", Reason: "empty search"}
	}
	page = page.Normalize()

	q, err := c.query(url.Values{
		"query": {query},
		"page":  {strconv.Itoa(page.Page)},
	})
	if err != nil {
		return nil, err
	}

	var out tmdbPage
	if err := c.rest.Get(ctx, "/search/"+path, q, &out); err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(out.Results))
	for i := range out.Results {
		entries = append(entries, catalogEntry(&out.Results[i], mediaType))
	}
	c.logger.Debug("tmdb search", "query", query, "entries", len(entries))
	return entries, nil
}

// ExternalIDs returns the cross-walk identifiers TMDb knows for one
// item, notably the IMDb id
func (c *Client) ExternalIDs(ctx context.Context, tmdbID int, mediaType domain.MediaType) (domain.IDs, error) {
	path, err := typePath(mediaType)
	if err != nil {
		return domain.IDs{}, err
	}
	q, err := c.query(nil)
	if err != nil {
		return domain.IDs{}, err
	}

	var out tmdbExternalIDs
	if err := c.rest.Get(ctx, fmt.Sprintf("/%s/%d/external_ids", path, tmdbID), q, &out); err != nil {
		return domain.IDs{}, err
	}
	return domain.IDs{TMDB: tmdbID, IMDB: out.IMDBID}, nil
}
