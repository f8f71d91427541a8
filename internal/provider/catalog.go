package provider

import (
	"context"

	"github.com/zoro-md/zoro/internal/domain"
)

// ItemFetcher is the optional single-item surface of a catalog client
type ItemFetcher interface {
	FetchItem(ctx context.Context, mediaID int, mediaType domain.MediaType) (*domain.Entry, error)
}

// Catalog adapts a read-only metadata service to the Provider contract
// so the media service can route search and item queries to it. List
// and edit operations fail with CapabilityError; the capability matrix
// keeps the edit coordinator away from them in the first place.
type Catalog struct {
	source domain.Source
	search domain.SearchRepository
	items  ItemFetcher // nil when the service has no item endpoint
}

// NewCatalog wraps a search-only client. items may be nil.
func NewCatalog(source domain.Source, search domain.SearchRepository, items ItemFetcher) *Catalog {
	return &Catalog{source: source, search: search, items: items}
}

func (c *Catalog) Source() domain.Source { return c.source }

func (c *Catalog) Capabilities() domain.Capabilities { return domain.Capabilities{} }

func (c *Catalog) Search(ctx context.Context, query string, mediaType domain.MediaType, page domain.Page) ([]domain.Entry, error) {
	return c.search.Search(ctx, query, mediaType, page)
}

func (c *Catalog) FetchItem(ctx context.Context, mediaID int, mediaType domain.MediaType) (*domain.Entry, error) {
	if c.items == nil {
		return nil, &domain.CapabilityError{Source: c.source, Operation: "item lookup"}
	}
	return c.items.FetchItem(ctx, mediaID, mediaType)
}

func (c *Catalog) FetchList(context.Context, string, domain.MediaType, *domain.Status, domain.Page) ([]domain.Entry, error) {
	return nil, &domain.CapabilityError{Source: c.source, Operation: "list"}
}

func (c *Catalog) FetchStats(context.Context, string) (*domain.UserStats, error) {
	return nil, &domain.CapabilityError{Source: c.source, Operation: "stats"}
}

func (c *Catalog) UpdateEntry(context.Context, *domain.Entry, domain.EntryPatch) (*domain.Entry, error) {
	return nil, &domain.CapabilityError{Source: c.source, Operation: "update"}
}
