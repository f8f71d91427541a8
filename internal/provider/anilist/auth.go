package anilist

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shurcooL/graphql"
	"golang.org/x/oauth2"

	"github.com/zoro-md/zoro/internal/auth"
	"github.com/zoro-md/zoro/internal/cache"
	"github.com/zoro-md/zoro/internal/config"
	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/provider"
)

const (
	defaultAuthURL  = "https://anilist.co/api/v2/oauth/authorize"
	defaultTokenURL = "https://anilist.co/api/v2/oauth/token"

	// AniList has no custom-scheme redirect; the pin page displays the
	// authorization code for the user to paste back.
	pinRedirectURL = "https://anilist.co/api/v2/oauth/pin"
)

// Manager owns the AniList token lifecycle. Login is a code-paste
// flow: the browser opens the authorize URL, AniList shows the code
// on its pin page, and the user pastes it back. A deep-link redirect
// tagged "anilist" completes the same flow when the user's client
// app is configured with a custom scheme instead.
type Manager struct {
	store    *config.Store
	cache    *cache.Store
	router   *auth.Router
	launcher domain.BrowserLauncher
	logger   *slog.Logger

	httpc    *http.Client
	apiURL   string
	authURL  string
	tokenURL string

	mu         sync.Mutex
	cancelFlow func()
}

// NewManager creates the AniList auth manager. launcher may be nil
// when the host cannot open a browser; the ticket URL is still
// returned for manual opening.
func NewManager(store *config.Store, cacheStore *cache.Store, router *auth.Router, launcher domain.BrowserLauncher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		cache:    cacheStore,
		router:   router,
		launcher: launcher,
		logger:   logger,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		apiURL:   apiURL,
		authURL:  defaultAuthURL,
		tokenURL: defaultTokenURL,
	}
}

// Source returns the provider this manager authenticates
func (m *Manager) Source() domain.Source { return domain.SourceAniList }

// LoginStart opens the authorize URL and registers the flow with the
// redirect router. Completion arrives either through the router or
// through CompleteWithCode when the user pastes the code.
func (m *Manager) LoginStart(ctx context.Context) (*domain.LoginTicket, error) {
	id, _, err := m.store.Get().AniListClientCredentials()
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("client_id", id)
	q.Set("redirect_uri", pinRedirectURL)
	q.Set("response_type", "code")
	loginURL := m.authURL + "?" + q.Encode()

	m.mu.Lock()
	if m.cancelFlow != nil {
		m.cancelFlow()
	}
	m.cancelFlow = m.router.Expect(domain.SourceAniList, "", func(ctx context.Context, c auth.Completion) error {
		if c.Err != nil {
			m.logger.Warn("anilist login rejected", "error", c.Err)
			return c.Err
		}
		return m.CompleteWithCode(ctx, c.Code)
	})
	m.mu.Unlock()

	if m.launcher != nil {
		if err := m.launcher.Open(loginURL); err != nil {
			m.logger.Warn("could not open browser", "error", err)
		}
	}
	m.logger.Info("anilist login started")
	return &domain.LoginTicket{Source: domain.SourceAniList, URL: loginURL}, nil
}

// CompleteWithCode exchanges a pasted (or routed) authorization code
// for a token, resolves the viewer identity, and persists both
func (m *Manager) CompleteWithCode(ctx context.Context, code string) error {
	if code == "" {
		return &domain.AuthError{Source: domain.SourceAniList, Reason: "empty authorization code"}
	}
	id, secret, err := m.store.Get().AniListClientCredentials()
	if err != nil {
		return err
	}

	cfg := &oauth2.Config{
		ClientID:     id,
		ClientSecret: secret,
		RedirectURL:  pinRedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   m.authURL,
			TokenURL:  m.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	tok, err := cfg.Exchange(context.WithValue(ctx, oauth2.HTTPClient, m.httpc), code)
	if err != nil {
		return &domain.AuthError{Source: domain.SourceAniList, Reason: "token exchange failed", Err: err}
	}

	viewer, err := m.fetchViewer(ctx, tok.AccessToken)
	if err != nil {
		return &domain.AuthError{Source: domain.SourceAniList, Reason: "could not resolve viewer", Err: err}
	}

	if err := m.store.Update(func(s *config.Settings) {
		s.AccessToken = tok.AccessToken
		s.AniListUsername = viewer.Name
	}); err != nil {
		return err
	}

	if m.store.Get().ForceScoreFormat && viewer.ScoreFormat != "POINT_10" {
		if err := m.forceScoreFormat(ctx, tok.AccessToken); err != nil {
			m.logger.Warn("could not switch score format to POINT_10", "error", err)
		}
	}

	m.clearFlow()
	if m.cache != nil {
		m.cache.InvalidateByUser(viewer.Name)
	}
	m.logger.Info("anilist login complete", "user", viewer.Name)
	return nil
}

// IsLoggedIn returns true when an access token is held
func (m *Manager) IsLoggedIn() bool {
	return m.store.Get().AccessToken != ""
}

// EnsureValidToken checks that a token is held. AniList tokens are
// year-lived and not refreshable; expiry surfaces as a 401 at call
// time and flows through the auth failure path.
func (m *Manager) EnsureValidToken(context.Context) error {
	if !m.IsLoggedIn() {
		return &domain.AuthError{Source: domain.SourceAniList, Reason: "not logged in", Err: domain.ErrLoginRequired}
	}
	return nil
}

// InvalidateToken is a no-op; without a refresh token the only remedy
// for a rejected token is a fresh login
func (m *Manager) InvalidateToken() {}

// AuthHeaders returns the bearer header for an authenticated call
func (m *Manager) AuthHeaders() (map[string]string, error) {
	tok := m.store.Get().AccessToken
	if tok == "" {
		return nil, &domain.AuthError{Source: domain.SourceAniList, Reason: "not logged in", Err: domain.ErrLoginRequired}
	}
	return map[string]string{"Authorization": "Bearer " + tok}, nil
}

// AuthenticatedUsername returns the persisted viewer name, fetching
// it once for installs that stored a token before the name was kept
func (m *Manager) AuthenticatedUsername(ctx context.Context) (string, error) {
	s := m.store.Get()
	if s.AniListUsername != "" {
		return s.AniListUsername, nil
	}
	if s.AccessToken == "" {
		return "", &domain.AuthError{Source: domain.SourceAniList, Reason: "not logged in", Err: domain.ErrLoginRequired}
	}

	viewer, err := m.fetchViewer(ctx, s.AccessToken)
	if err != nil {
		return "", err
	}
	if err := m.store.Update(func(s *config.Settings) {
		s.AniListUsername = viewer.Name
	}); err != nil {
		m.logger.Warn("could not persist viewer name", "error", err)
	}
	return viewer.Name, nil
}

// Logout clears the token and invalidates the user's cached data
func (m *Manager) Logout(context.Context) error {
	m.clearFlow()
	prior, err := m.store.ClearAniListAuth()
	if err != nil {
		return err
	}
	if prior != "" && m.cache != nil {
		m.cache.InvalidateByUser(prior)
	}
	m.logger.Info("anilist logged out", "user", prior)
	return nil
}

type viewerInfo struct {
	ID          int
	Name        string
	ScoreFormat string
}

func (m *Manager) fetchViewer(ctx context.Context, token string) (viewerInfo, error) {
	var q struct {
		Viewer struct {
			ID               int    `graphql:"id"`
			Name             string `graphql:"name"`
			MediaListOptions struct {
				ScoreFormat string `graphql:"scoreFormat"`
			} `graphql:"mediaListOptions"`
		} `graphql:"Viewer"`
	}
	if err := m.gqlWith(token).Query(ctx, &q, nil); err != nil {
		return viewerInfo{}, gqlError(err)
	}
	return viewerInfo{
		ID:          q.Viewer.ID,
		Name:        q.Viewer.Name,
		ScoreFormat: q.Viewer.MediaListOptions.ScoreFormat,
	}, nil
}

// forceScoreFormat switches the account to POINT_10 so scores written
// by other clients stay comparable. Idempotent on repeat logins.
func (m *Manager) forceScoreFormat(ctx context.Context, token string) error {
	var mut struct {
		UpdateUser struct {
			ID int `graphql:"id"`
		} `graphql:"UpdateUser(scoreFormat: POINT_10)"`
	}
	if err := m.gqlWith(token).Mutate(ctx, &mut, nil); err != nil {
		return gqlError(err)
	}
	return nil
}

// gqlWith builds a GraphQL client bound to an explicit token, used
// during login before the token reaches the store
func (m *Manager) gqlWith(token string) *graphql.Client {
	httpc := &http.Client{
		Timeout: m.httpc.Timeout,
		Transport: &provider.Transport{
			Base:   m.httpc.Transport,
			Source: domain.SourceAniList,
			Headers: func(context.Context) (map[string]string, error) {
				return map[string]string{"Authorization": "Bearer " + token}, nil
			},
		},
	}
	return graphql.NewClient(m.apiURL, httpc)
}

func (m *Manager) clearFlow() {
	m.mu.Lock()
	if m.cancelFlow != nil {
		m.cancelFlow()
		m.cancelFlow = nil
	}
	m.mu.Unlock()
}

// AuthHeadersFrom returns a header hook that attaches the stored
// bearer token when present and leaves requests anonymous otherwise,
// so catalog reads work logged out.
func AuthHeadersFrom(store *config.Store) provider.HeaderFunc {
	return func(context.Context) (map[string]string, error) {
		if tok := store.Get().AccessToken; tok != "" {
			return map[string]string{"Authorization": "Bearer " + tok}, nil
		}
		return nil, nil
	}
}
