package codeblock

import (
	"context"
	"log/slog"

	"github.com/zoro-md/zoro/internal/config"
	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/trending"
)

// MediaService is the read surface the dispatcher drives. The media
// service implements it in production.
type MediaService interface {
	List(ctx context.Context, src domain.Source, username string, mediaType domain.MediaType, listStatus *domain.Status, page domain.Page) ([]domain.Entry, error)
	Item(ctx context.Context, src domain.Source, mediaID int, mediaType domain.MediaType) (*domain.Entry, error)
	Stats(ctx context.Context, src domain.Source, username string) (*domain.UserStats, error)
	AuthenticatedUsername(ctx context.Context, src domain.Source) (string, error)
}

// TrendingService fetches trending lists; the aggregator implements it
type TrendingService interface {
	Fetch(ctx context.Context, requested domain.Source, mediaType domain.MediaType, limit int) ([]domain.Entry, error)
}

// Processor resolves and dispatches request blocks
type Processor struct {
	media    MediaService
	trending TrendingService
	settings func() config.Settings
	logger   *slog.Logger
}

func NewProcessor(media MediaService, trendingSvc TrendingService, settings func() config.Settings, logger *slog.Logger) *Processor {
	return &Processor{media: media, trending: trendingSvc, settings: settings, logger: logger}
}

// Process parses the block text, applies defaults, validates, and
// dispatches. The returned payload carries the resolved block so the
// renderer sees the request exactly as it was executed.
func (p *Processor) Process(ctx context.Context, text string) (*RenderPayload, error) {
	raw, err := parse(text)
	if err != nil {
		return nil, err
	}
	if err := checkRaw(raw); err != nil {
		return nil, err
	}
	block, err := p.resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	return p.dispatch(ctx, block)
}

// resolve fills in defaults and runs the cross-field checks
func (p *Processor) resolve(ctx context.Context, raw rawBlock) (Block, error) {
	settings := p.settings()

	block := Block{
		Kind:      resolveKind(raw),
		Username:  raw.Username,
		MediaType: domain.MediaTypeAnime,
		Search:    raw.Search,
		MediaID:   raw.MediaID,
		Page:      raw.Page,
		PerPage:   raw.PerPage,
		Layout:    raw.Layout,
	}
	if raw.MediaType != "" {
		block.MediaType = domain.MediaType(raw.MediaType)
	}
	if block.Layout == "" {
		block.Layout = settings.DefaultLayout
	}
	if raw.ListType != "" {
		s := domain.Status(raw.ListType)
		block.ListType = &s
	}

	block.Source = resolveSource(raw, block.MediaType, settings.DefaultSource())

	if block.ListType != nil && *block.ListType == domain.StatusRepeating && block.Source != domain.SourceAniList {
		return Block{}, &domain.ValidationError{Field: "listtype", Reason: "REPEATING is only available on anilist"}
	}
	if block.Source == domain.SourceSimkl && block.MediaType == domain.MediaTypeManga {
		return Block{}, &domain.ValidationError{Field: "mediatype", Reason: "simkl does not track manga"}
	}

	if needsUsername(block.Kind) {
		username, err := p.resolveUsername(ctx, block.Source, raw.Username, settings.DefaultUsername)
		if err != nil {
			return Block{}, err
		}
		block.Username = username
	}
	return block, nil
}

// resolveKind infers the view when the block does not name one: a
// query means search, a media id means single, otherwise a list
func resolveKind(raw rawBlock) Kind {
	if raw.Kind != "" {
		return Kind(raw.Kind)
	}
	if raw.Search != "" {
		return KindSearch
	}
	if raw.MediaID > 0 {
		return KindSingle
	}
	return KindList
}

// resolveSource picks the provider when the block names none: movies
// and TV live on simkl, manga avoids simkl, everything else uses the
// configured default
func resolveSource(raw rawBlock, mediaType domain.MediaType, fallback domain.Source) domain.Source {
	if raw.Source != "" {
		return domain.Source(raw.Source)
	}
	if mediaType.IsVideo() {
		return domain.SourceSimkl
	}
	if mediaType == domain.MediaTypeManga {
		if fallback == domain.SourceSimkl {
			return domain.SourceMAL
		}
		return fallback
	}
	return fallback
}

func needsUsername(kind Kind) bool {
	return kind == KindList || kind == KindStats
}

// resolveUsername works through explicit block value, configured
// default, then the logged-in account
func (p *Processor) resolveUsername(ctx context.Context, src domain.Source, explicit, configured string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if configured != "" {
		return configured, nil
	}
	if name, err := p.media.AuthenticatedUsername(ctx, src); err == nil && name != "" {
		return name, nil
	}
	return "", &domain.ConfigError{Field: "username", Reason: "no username in block, settings, or active login"}
}

func (p *Processor) dispatch(ctx context.Context, block Block) (*RenderPayload, error) {
	payload := &RenderPayload{Kind: block.Kind, Block: block}

	switch block.Kind {
	case KindList:
		entries, err := p.media.List(ctx, block.Source, block.Username, block.MediaType, block.ListType, block.PageRequest())
		if err != nil {
			return nil, err
		}
		payload.Entries = entries

	case KindSingle:
		if block.MediaID <= 0 {
			return nil, &domain.ValidationError{Field: "mediaid", Reason: "required for a single-item block"}
		}
		entry, err := p.media.Item(ctx, block.Source, block.MediaID, block.MediaType)
		if err != nil {
			return nil, err
		}
		payload.Entry = entry

	case KindSearch:
		if block.Search == "" {
			return nil, &domain.ValidationError{Field: "search", Reason: "required for a search block"}
		}
		payload.Search = &SearchDescriptor{
			Query:     block.Search,
			Source:    block.Source,
			MediaType: block.MediaType,
			Page:      block.PageRequest(),
		}

	case KindStats:
		stats, err := p.media.Stats(ctx, block.Source, block.Username)
		if err != nil {
			return nil, err
		}
		payload.Stats = stats

	case KindTrending:
		limit := block.PerPage
		if limit <= 0 {
			limit = trending.DefaultLimit
		}
		entries, err := p.trending.Fetch(ctx, block.Source, block.MediaType, limit)
		if err != nil {
			return nil, err
		}
		payload.Entries = entries

	default:
		return nil, &domain.ValidationError{Field: "type", Reason: "unknown block type"}
	}

	p.logger.Debug("block dispatched", "kind", block.Kind, "source", block.Source, "mediaType", block.MediaType)
	return payload, nil
}
