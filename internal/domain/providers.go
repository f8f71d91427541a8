package domain

import (
	"context"
)

// Capabilities is the per-provider feature matrix consulted before routing
// an edit. AniList supports all three; MAL and Simkl support update only.
type Capabilities struct {
	Update    bool
	Remove    bool
	Favorites bool
}

// EntryPatch is a partial update to a list entry. Nil fields are left
// unchanged; a Score pointing at 0 clears the rating.
type EntryPatch struct {
	Status      *Status
	Score       *float64
	Progress    *int
	Repeat      *int
	StartedAt   *FuzzyDate
	CompletedAt *FuzzyDate
}

// IsEmpty returns true when the patch changes nothing
func (p EntryPatch) IsEmpty() bool {
	return p.Status == nil && p.Score == nil && p.Progress == nil &&
		p.Repeat == nil && p.StartedAt == nil && p.CompletedAt == nil
}

// Apply folds the patch into a copy of the entry, producing the full
// post-edit state for providers that take whole records. A zero or
// negative patched score clears the rating.
func (p EntryPatch) Apply(e Entry) Entry {
	if p.Status != nil {
		s := *p.Status
		e.Status = &s
	}
	if p.Score != nil {
		if *p.Score <= 0 {
			e.Score = nil
		} else {
			v := *p.Score
			e.Score = &v
		}
	}
	if p.Progress != nil {
		e.Progress = *p.Progress
	}
	if p.Repeat != nil {
		e.Repeat = *p.Repeat
	}
	if p.StartedAt != nil {
		d := *p.StartedAt
		e.StartedAt = &d
	}
	if p.CompletedAt != nil {
		d := *p.CompletedAt
		e.CompletedAt = &d
	}
	return e
}

// ListRepository provides read access to a user's media lists
type ListRepository interface {
	// FetchList returns one page of a user's list, optionally filtered to a
	// single list status
	FetchList(ctx context.Context, username string, mediaType MediaType, listStatus *Status, page Page) ([]Entry, error)

	// FetchItem returns the user's entry for one media item. When the user
	// has no list record the entry carries the media with zero ID, nil
	// status, and nil score.
	FetchItem(ctx context.Context, mediaID int, mediaType MediaType) (*Entry, error)
}

// SearchRepository provides catalog search
type SearchRepository interface {
	// Search queries the provider catalog and returns matching entries
	Search(ctx context.Context, query string, mediaType MediaType, page Page) ([]Entry, error)
}

// StatsRepository provides aggregate user statistics
type StatsRepository interface {
	// FetchStats returns the user's list statistics
	FetchStats(ctx context.Context, username string) (*UserStats, error)
}

// EntryEditor mutates list entries on the provider
type EntryEditor interface {
	// UpdateEntry applies a patch to the entry and returns the stored result
	UpdateEntry(ctx context.Context, entry *Entry, patch EntryPatch) (*Entry, error)
}

// EntryRemover deletes list entries; only providers with the remove
// capability implement it
type EntryRemover interface {
	// RemoveEntry deletes the user's list record for the entry
	RemoveEntry(ctx context.Context, entry *Entry) error
}

// FavoriteToggler flips server-side favorite state; AniList only
type FavoriteToggler interface {
	// ToggleFavorite flips the favorite flag and returns the new state
	ToggleFavorite(ctx context.Context, mediaID int, mediaType MediaType) (bool, error)
}

// TrendingRepository provides trending or top catalog lists
type TrendingRepository interface {
	// FetchTrending returns up to limit currently-trending entries
	FetchTrending(ctx context.Context, mediaType MediaType, limit int) ([]Entry, error)
}

// Provider is the full contract of an interactive list service (A, M, S).
// Read-only catalogs (T, J) implement only the repository subsets.
type Provider interface {
	// Source returns the provider identity used for routing and cache keys
	Source() Source

	// Capabilities returns the provider's supported edit operations
	Capabilities() Capabilities

	ListRepository
	SearchRepository
	StatsRepository
	EntryEditor
}

// LoginTicket describes an in-progress interactive login for the host to
// present: the URL to open and, per flow, the code the user must confirm
// (device flows) or paste back (PIN flows).
type LoginTicket struct {
	Source   Source
	URL      string // authorization or verification URL to open
	UserCode string // device flow: code the user enters at the URL
	State    string // redirect flows: CSRF state registered with the router
}

// AuthManager is the shared token-lifecycle contract of the three
// interactive providers. Flow-specific steps (code paste, redirect
// completion, device polling) live on the concrete managers.
type AuthManager interface {
	// Source returns the provider this manager authenticates
	Source() Source

	// IsLoggedIn returns true when a usable access token is held
	IsLoggedIn() bool

	// EnsureValidToken refreshes or validates the token before a call.
	// Returns ErrLoginRequired when no credentials are held and an
	// AuthError when they are held but unusable.
	EnsureValidToken(ctx context.Context) error

	// InvalidateToken marks the held token as rejected, after a provider
	// answered 401 despite the recorded expiry. The next EnsureValidToken
	// must revalidate instead of trusting the expiry; providers without a
	// refresh path may treat this as a no-op.
	InvalidateToken()

	// AuthHeaders returns the authorization headers for an API call
	AuthHeaders() (map[string]string, error)

	// AuthenticatedUsername returns the logged-in user's name, using the
	// persisted profile without a network call when possible
	AuthenticatedUsername(ctx context.Context) (string, error)

	// Logout clears tokens and cached user identity
	Logout(ctx context.Context) error
}
