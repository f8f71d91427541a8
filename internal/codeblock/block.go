// Package codeblock turns embedded "key: value" request blocks into
// render payloads. A block names a view over one provider (a list, a
// single item, a search, stats, or trending); the processor resolves
// defaults, validates the request, and dispatches it through the media
// and trending services.
package codeblock

import (
	"github.com/zoro-md/zoro/internal/domain"
)

// Kind selects the view a block renders
type Kind string

const (
	KindList     Kind = "list"
	KindSingle   Kind = "single"
	KindSearch   Kind = "search"
	KindStats    Kind = "stats"
	KindTrending Kind = "trending"
)

// Block is a fully resolved request: every field the dispatcher needs
// is populated, either from the block text or from defaults.
type Block struct {
	Kind      Kind
	Source    domain.Source
	Username  string
	MediaType domain.MediaType
	ListType  *domain.Status
	Layout    string
	Search    string
	MediaID   int
	Page      int
	PerPage   int
}

// PageRequest returns the pagination the block asks for
func (b Block) PageRequest() domain.Page {
	return domain.Page{Page: b.Page, PerPage: b.PerPage}.Normalize()
}

// SearchDescriptor tells the renderer how to drive a search view. The
// processor does not run the query itself; the view issues it through
// the media service as the user types.
type SearchDescriptor struct {
	Query     string
	Source    domain.Source
	MediaType domain.MediaType
	Page      domain.Page
}

// RenderPayload is the dispatch result. Kind selects which field is
// populated; Block carries the resolved request for the renderer.
type RenderPayload struct {
	Kind  Kind
	Block Block

	Entries []domain.Entry    // list, trending
	Entry   *domain.Entry     // single
	Search  *SearchDescriptor // search
	Stats   *domain.UserStats // stats
}
