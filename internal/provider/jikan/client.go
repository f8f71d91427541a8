// Package jikan implements the read-only Jikan catalog client, a
// public MAL mirror used for top/trending lists and anonymous catalog
// reads. No authentication of any kind.
package jikan

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

const apiURL = "https://api.jikan.moe/v4"

// Jikan caps page size at 25
const maxPageSize = 25

// Client is the Jikan catalog reader
type Client struct {
	rest   *provider.REST
	logger *slog.Logger
}

// NewClient creates a Jikan client. baseURL overrides the API endpoint
// when non-empty.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = apiURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rest:   provider.NewREST(domain.SourceJikan, baseURL, nil, nil, logger),
		logger: logger,
	}
}

// Source returns the provider identity
func (c *Client) Source() domain.Source { return domain.SourceJikan }

func typePath(t domain.MediaType) (string, error) {
	switch t {
	case domain.MediaTypeAnime:
		return "anime", nil
	case domain.MediaTypeManga:
		return "manga", nil
	default:
		return "", &domain.CapabilityError{Source: domain.SourceJikan, Operation: strings.ToLower(string(t))}
	}
}

// FetchTrending returns up to limit top-ranked items. Jikan exposes no
// trending feed; the top list by popularity stands in.
func (c *Client) FetchTrending(ctx context.Context, mediaType domain.MediaType, limit int) ([]domain.Entry, error) {
	path, err := typePath(mediaType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 40
	}

	var entries []domain.Entry
	for page := 1; len(entries) < limit; page++ {
		q := url.Values{}
		q.Set("filter", "bypopularity")
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(maxPageSize))

		var out jikanPage
		if err := c.rest.Get(ctx, "/top/"+path, q, &out); err != nil {
			if len(entries) > 0 {
				break
			}
			return nil, err
		}
		for i := range out.Data {
			if len(entries) >= limit {
				break
			}
			entries = append(entries, catalogEntry(&out.Data[i], mediaType))
		}
		if !out.Pagination.HasNextPage {
			break
		}
	}
	c.logger.Debug("jikan top fetched", "type", mediaType, "entries", len(entries))
	return entries, nil
}

// Search queries the catalog
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
	if page.PerPage > maxPageSize {
		page.PerPage = maxPageSize
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page.Page))
	q.Set("limit", strconv.Itoa(page.PerPage))

	var out jikanPage
	if err := c.rest.Get(ctx, "/"+path, q, &out); err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(out.Data))
	for i := range out.Data {
		entries = append(entries, catalogEntry(&out.Data[i], mediaType))
	}
	c.logger.Debug("jikan search", "query", query, "entries", len(entries))
	return entries, nil
}

// FetchItem returns the catalog detail for one MAL id. Jikan holds no
// user lists, so the entry is always record-less.
func (c *Client) FetchItem(ctx context.Context, mediaID int, mediaType domain.MediaType) (*domain.Entry, error) {
	path, err := typePath(mediaType)
	if err != nil {
		return nil, err
	}

	var out jikanDetail
	if err := c.rest.Get(ctx, fmt.Sprintf("/%s/%d", path, mediaID), nil, &out); err != nil {
		return nil, err
	}
	entry := catalogEntry(&out.Data, mediaType)
	return &entry, nil
}
