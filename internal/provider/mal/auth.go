package mal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/zoro-md/zoro/internal/auth"
	"github.com/zoro-md/zoro/internal/cache"
	"github.com/zoro-md/zoro/internal/config"
	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/provider"
)

const (
	defaultAuthURL  = "https://myanimelist.net/v1/oauth2/authorize"
	defaultTokenURL = "https://myanimelist.net/v1/oauth2/token"

	// the app-registered redirect; the deep-link router picks it up
	redirectURL = "zoro://zoro-auth/mal"

	// tokens are refreshed this long before their recorded expiry
	tokenSlack = 5 * time.Minute
)

// Manager owns the MAL token lifecycle. Login is an authorization-code
// flow with a plain PKCE challenge (MAL does not accept S256); the
// redirect comes back through the deep-link router keyed by state.
// Tokens are month-lived and refreshed in place near expiry.
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
	verifier   string
	cancelFlow func()
	rejected   bool // the provider answered 401 despite the recorded expiry

	// serializes refreshes so concurrent callers trigger one exchange
	refreshMu sync.Mutex
}

// NewManager creates the MAL auth manager
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
func (m *Manager) Source() domain.Source { return domain.SourceMAL }

// LoginStart opens the authorize URL and registers the flow with the
// redirect router under a fresh state
func (m *Manager) LoginStart(ctx context.Context) (*domain.LoginTicket, error) {
	id, _, err := m.store.Get().MALClientCredentials()
	if err != nil {
		return nil, err
	}

	verifier := auth.NewVerifier()
	state := auth.NewState()

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", id)
	q.Set("state", state)
	q.Set("code_challenge", auth.PlainChallenge(verifier))
	q.Set("code_challenge_method", "plain")
	q.Set("redirect_uri", redirectURL)
	loginURL := m.authURL + "?" + q.Encode()

	m.mu.Lock()
	if m.cancelFlow != nil {
		m.cancelFlow()
	}
	m.verifier = verifier
	m.cancelFlow = m.router.Expect(domain.SourceMAL, state, func(ctx context.Context, c auth.Completion) error {
		if c.Err != nil {
			m.logger.Warn("mal login rejected", "error", c.Err)
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
	m.logger.Info("mal login started")
	return &domain.LoginTicket{Source: domain.SourceMAL, URL: loginURL, State: state}, nil
}

// CompleteWithCode exchanges the authorization code using the pending
// flow's PKCE verifier, resolves the user, and persists the session
func (m *Manager) CompleteWithCode(ctx context.Context, code string) error {
	if code == "" {
		return &domain.AuthError{Source: domain.SourceMAL, Reason: "empty authorization code"}
	}
	m.mu.Lock()
	verifier := m.verifier
	m.mu.Unlock()
	if verifier == "" {
		return &domain.AuthError{Source: domain.SourceMAL, Reason: "no login in progress"}
	}

	id, secret, err := m.store.Get().MALClientCredentials()
	if err != nil {
		return err
	}

	cfg := m.oauthConfig(id, secret)
	tok, err := cfg.Exchange(m.oauthContext(ctx), code, oauth2.SetAuthURLParam("code_verifier", verifier))
	if err != nil {
		return &domain.AuthError{Source: domain.SourceMAL, Reason: "token exchange failed", Err: err}
	}

	user, err := m.fetchUser(ctx, tok.AccessToken)
	if err != nil {
		return &domain.AuthError{Source: domain.SourceMAL, Reason: "could not resolve user", Err: err}
	}

	if err := m.store.Update(func(s *config.Settings) {
		s.MALAccessToken = tok.AccessToken
		s.MALRefreshToken = tok.RefreshToken
		s.MALTokenExpiry = tok.Expiry.UnixMilli()
		s.MALUserInfo = &config.UserInfo{ID: user.ID, Name: user.Name}
	}); err != nil {
		return err
	}

	m.clearFlow()
	if m.cache != nil {
		m.cache.InvalidateByUser(user.Name)
	}
	m.logger.Info("mal login complete", "user", user.Name)
	return nil
}

// IsLoggedIn returns true when an access token is held
func (m *Manager) IsLoggedIn() bool {
	return m.store.Get().MALAccessToken != ""
}

// EnsureValidToken refreshes the token when it is inside the expiry
// slack or when the provider rejected it. Concurrent callers share a
// single refresh.
func (m *Manager) EnsureValidToken(ctx context.Context) error {
	s := m.store.Get()
	if s.MALAccessToken == "" {
		return &domain.AuthError{Source: domain.SourceMAL, Reason: "not logged in", Err: domain.ErrLoginRequired}
	}
	if !m.tokenRejected() && time.UnixMilli(s.MALTokenExpiry).After(time.Now().Add(tokenSlack)) {
		return nil
	}
	return m.refresh(ctx)
}

// InvalidateToken records a 401 against a token the expiry still
// considers fresh; the next EnsureValidToken refreshes it
func (m *Manager) InvalidateToken() {
	m.mu.Lock()
	m.rejected = true
	m.mu.Unlock()
}

func (m *Manager) tokenRejected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected
}

func (m *Manager) refresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	// another caller may have refreshed while this one waited
	s := m.store.Get()
	if s.MALAccessToken == "" {
		return &domain.AuthError{Source: domain.SourceMAL, Reason: "not logged in", Err: domain.ErrLoginRequired}
	}
	if !m.tokenRejected() && time.UnixMilli(s.MALTokenExpiry).After(time.Now().Add(tokenSlack)) {
		return nil
	}
	if s.MALRefreshToken == "" {
		return &domain.AuthError{Source: domain.SourceMAL, Reason: "token expired with no refresh token", Err: domain.ErrTokenExpired}
	}

	id, secret, err := s.MALClientCredentials()
	if err != nil {
		return err
	}
	cfg := m.oauthConfig(id, secret)
	src := cfg.TokenSource(m.oauthContext(ctx), &oauth2.Token{
		AccessToken:  s.MALAccessToken,
		RefreshToken: s.MALRefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		return &domain.AuthError{
			Source: domain.SourceMAL,
			Reason: fmt.Sprintf("token refresh failed: %v", err),
			Err:    domain.ErrTokenExpired,
		}
	}

	if err := m.store.Update(func(s *config.Settings) {
		s.MALAccessToken = tok.AccessToken
		if tok.RefreshToken != "" {
			s.MALRefreshToken = tok.RefreshToken
		}
		s.MALTokenExpiry = tok.Expiry.UnixMilli()
	}); err != nil {
		return err
	}
	m.mu.Lock()
	m.rejected = false
	m.mu.Unlock()
	m.logger.Info("mal token refreshed", "expiresAt", tok.Expiry)
	return nil
}

// AuthHeaders returns the bearer header for an authenticated call
func (m *Manager) AuthHeaders() (map[string]string, error) {
	tok := m.store.Get().MALAccessToken
	if tok == "" {
		return nil, &domain.AuthError{Source: domain.SourceMAL, Reason: "not logged in", Err: domain.ErrLoginRequired}
	}
	return map[string]string{"Authorization": "Bearer " + tok}, nil
}

// AuthenticatedUsername returns the persisted profile name, fetching
// it once when only a token survived
func (m *Manager) AuthenticatedUsername(ctx context.Context) (string, error) {
	s := m.store.Get()
	if s.MALUserInfo != nil && s.MALUserInfo.Name != "" {
		return s.MALUserInfo.Name, nil
	}
	if s.MALAccessToken == "" {
		return "", &domain.AuthError{Source: domain.SourceMAL, Reason: "not logged in", Err: domain.ErrLoginRequired}
	}

	user, err := m.fetchUser(ctx, s.MALAccessToken)
	if err != nil {
		return "", err
	}
	if err := m.store.Update(func(s *config.Settings) {
		s.MALUserInfo = &config.UserInfo{ID: user.ID, Name: user.Name}
	}); err != nil {
		m.logger.Warn("could not persist user info", "error", err)
	}
	return user.Name, nil
}

// Logout clears tokens and invalidates the user's cached data
func (m *Manager) Logout(context.Context) error {
	m.clearFlow()
	prior, err := m.store.ClearMALAuth()
	if err != nil {
		return err
	}
	if prior != "" && m.cache != nil {
		m.cache.InvalidateByUser(prior)
	}
	m.logger.Info("mal logged out", "user", prior)
	return nil
}

func (m *Manager) fetchUser(ctx context.Context, token string) (*malUser, error) {
	rest := provider.NewREST(domain.SourceMAL, m.apiURL, func(context.Context) (map[string]string, error) {
		return map[string]string{"Authorization": "Bearer " + token}, nil
	}, m.httpc, m.logger)

	var user malUser
	if err := rest.Get(ctx, "/users/@me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *Manager) oauthConfig(id, secret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     id,
		ClientSecret: secret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   m.authURL,
			TokenURL:  m.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (m *Manager) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpc)
}

func (m *Manager) clearFlow() {
	m.mu.Lock()
	m.verifier = ""
	m.rejected = false
	if m.cancelFlow != nil {
		m.cancelFlow()
		m.cancelFlow = nil
	}
	m.mu.Unlock()
}

// AuthHeadersFrom returns a header hook that sends the user's bearer
// token when logged in and falls back to the public client-id header
// for anonymous catalog reads
func AuthHeadersFrom(store *config.Store) provider.HeaderFunc {
	return func(context.Context) (map[string]string, error) {
		s := store.Get()
		if s.MALAccessToken != "" {
			return map[string]string{"Authorization": "Bearer " + s.MALAccessToken}, nil
		}
		if s.MALClientID != "" {
			return map[string]string{"X-MAL-CLIENT-ID": s.MALClientID}, nil
		}
		return nil, &domain.ConfigError{Field: "malClientId"}
	}
}
