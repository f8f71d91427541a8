package simkl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/zoro-md/zoro/internal/cache"
	"github.com/zoro-md/zoro/internal/config"
	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/provider"
)

// Manager owns the Simkl token lifecycle. Login is a device-code flow:
// request a user code, open the verification URL, and poll until the
// user confirms there. Tokens do not expire, so there is no refresh.
type Manager struct {
	store    *config.Store
	cache    *cache.Store
	launcher domain.BrowserLauncher
	logger   *slog.Logger

	httpc  *http.Client
	apiURL string

	// after is time.After unless a test swaps it out
	after func(time.Duration) <-chan time.Time

	mu         sync.Mutex
	flow       *simklPin
	cancelFlow context.CancelFunc
}

// NewManager creates the Simkl auth manager
func NewManager(store *config.Store, cacheStore *cache.Store, launcher domain.BrowserLauncher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		cache:    cacheStore,
		launcher: launcher,
		logger:   logger,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		apiURL:   apiURL,
		after:    time.After,
	}
}

// Source returns the provider this manager authenticates
func (m *Manager) Source() domain.Source { return domain.SourceSimkl }

// LoginStart requests a device-code grant and opens the verification
// URL. The returned ticket carries the code the user must enter there;
// call WaitForAuthorization to poll for the confirmation.
func (m *Manager) LoginStart(ctx context.Context) (*domain.LoginTicket, error) {
	id, _, err := m.store.Get().SimklClientCredentials()
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("client_id", id)

	rest := provider.NewREST(domain.SourceSimkl, m.apiURL, nil, m.httpc, m.logger)
	var pin simklPin
	if err := rest.Get(ctx, "/oauth/pin", q, &pin); err != nil {
		return nil, err
	}
	if pin.UserCode == "" || pin.Interval <= 0 || pin.ExpiresIn <= 0 {
		return nil, &domain.AuthError{Source: domain.SourceSimkl, Reason: "malformed device-code grant"}
	}

	m.mu.Lock()
	if m.cancelFlow != nil {
		m.cancelFlow()
		m.cancelFlow = nil
	}
	m.flow = &pin
	m.mu.Unlock()

	if m.launcher != nil {
		if err := m.launcher.Open(pin.VerificationURL); err != nil {
			m.logger.Warn("could not open browser", "error", err)
		}
	}
	m.logger.Info("simkl login started", "expiresIn", pin.ExpiresIn, "interval", pin.Interval)
	return &domain.LoginTicket{Source: domain.SourceSimkl, URL: pin.VerificationURL, UserCode: pin.UserCode}, nil
}

// WaitForAuthorization polls the device-code endpoint until the user
// confirms, the grant expires, or ctx is cancelled. The poll budget is
// expires_in / interval attempts as the grant defines it; logout tears
// the poll down.
func (m *Manager) WaitForAuthorization(ctx context.Context) error {
	m.mu.Lock()
	flow := m.flow
	m.mu.Unlock()
	if flow == nil {
		return &domain.AuthError{Source: domain.SourceSimkl, Reason: "no login in progress", Err: domain.ErrLoginRequired}
	}

	id, _, err := m.store.Get().SimklClientCredentials()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.mu.Lock()
	m.cancelFlow = cancel
	m.mu.Unlock()

	interval := time.Duration(flow.Interval) * time.Second
	attempts := flow.ExpiresIn / flow.Interval
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			m.clearFlow()
			return ctx.Err()
		case <-m.after(interval):
		}

		token, done, err := m.checkPin(ctx, id, flow.UserCode)
		if err != nil {
			var nerr *domain.NetworkError
			if errors.As(err, &nerr) {
				m.logger.Warn("pin poll failed, retrying", "error", err)
				continue
			}
			m.clearFlow()
			return err
		}
		if !done {
			continue
		}
		return m.completeLogin(ctx, token)
	}

	m.clearFlow()
	return &domain.AuthError{Source: domain.SourceSimkl, Reason: "device authorization timed out", Err: domain.ErrLoginRequired}
}

// checkPin performs one poll. The endpoint answers 404 with an empty
// body until the user confirms, so that is "keep polling", not an
// error.
func (m *Manager) checkPin(ctx context.Context, clientID, userCode string) (token string, done bool, err error) {
	reqURL := fmt.Sprintf("%s/oauth/pin/%s?client_id=%s", m.apiURL, url.PathEscape(userCode), url.QueryEscape(clientID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", false, &domain.NetworkError{Source: domain.SourceSimkl, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, &domain.NetworkError{Source: domain.SourceSimkl, Err: err}
	}

	if resp.StatusCode == http.StatusNotFound || len(body) == 0 {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, &domain.ProviderError{Source: domain.SourceSimkl, Status: resp.StatusCode, Body: string(body)}
	}

	var status simklPinStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return "", false, &domain.ParseError{Source: domain.SourceSimkl, Err: err}
	}
	if status.Error != "" {
		return "", false, &domain.AuthError{Source: domain.SourceSimkl, Reason: "device authorization rejected: " + status.Error}
	}
	if status.AccessToken == "" {
		return "", false, nil
	}
	return status.AccessToken, true, nil
}

func (m *Manager) completeLogin(ctx context.Context, token string) error {
	user, err := m.fetchUser(ctx, token)
	if err != nil {
		return &domain.AuthError{Source: domain.SourceSimkl, Reason: "could not resolve user", Err: err}
	}

	if err := m.store.Update(func(s *config.Settings) {
		s.SimklAccessToken = token
		s.SimklUserInfo = &config.UserInfo{ID: user.Account.ID, Name: user.User.Name}
	}); err != nil {
		return err
	}

	m.clearFlow()
	if m.cache != nil {
		m.cache.InvalidateByUser(user.User.Name)
	}
	m.logger.Info("simkl login complete", "user", user.User.Name)
	return nil
}

// IsLoggedIn returns true when an access token is held
func (m *Manager) IsLoggedIn() bool {
	return m.store.Get().SimklAccessToken != ""
}

// EnsureValidToken checks a token is held; Simkl tokens do not expire
func (m *Manager) EnsureValidToken(context.Context) error {
	if m.store.Get().SimklAccessToken == "" {
		return &domain.AuthError{Source: domain.SourceSimkl, Reason: "not logged in", Err: domain.ErrLoginRequired}
	}
	return nil
}

// InvalidateToken is a no-op; Simkl grants no refresh token, so a
// rejected token needs a fresh device-code login
func (m *Manager) InvalidateToken() {}

// AuthHeaders returns the bearer and app-key headers for an
// authenticated call
func (m *Manager) AuthHeaders() (map[string]string, error) {
	s := m.store.Get()
	if s.SimklAccessToken == "" {
		return nil, &domain.AuthError{Source: domain.SourceSimkl, Reason: "not logged in", Err: domain.ErrLoginRequired}
	}
	id, _, err := s.SimklClientCredentials()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"Authorization": "Bearer " + s.SimklAccessToken,
		"simkl-api-key": id,
	}, nil
}

// AuthenticatedUsername returns the persisted profile name, fetching
// it once when only a token survived
func (m *Manager) AuthenticatedUsername(ctx context.Context) (string, error) {
	s := m.store.Get()
	if s.SimklUserInfo != nil && s.SimklUserInfo.Name != "" {
		return s.SimklUserInfo.Name, nil
	}
	if s.SimklAccessToken == "" {
		return "", &domain.AuthError{Source: domain.SourceSimkl, Reason: "not logged in", Err: domain.ErrLoginRequired}
	}

	user, err := m.fetchUser(ctx, s.SimklAccessToken)
	if err != nil {
		return "", err
	}
	if err := m.store.Update(func(s *config.Settings) {
		s.SimklUserInfo = &config.UserInfo{ID: user.Account.ID, Name: user.User.Name}
	}); err != nil {
		m.logger.Warn("could not persist user info", "error", err)
	}
	return user.User.Name, nil
}

// Logout cancels any pending poll, clears the token, and invalidates
// the user's cached data
func (m *Manager) Logout(context.Context) error {
	m.clearFlow()
	prior, err := m.store.ClearSimklAuth()
	if err != nil {
		return err
	}
	if prior != "" && m.cache != nil {
		m.cache.InvalidateByUser(prior)
	}
	m.logger.Info("simkl logged out", "user", prior)
	return nil
}

func (m *Manager) fetchUser(ctx context.Context, token string) (*simklSettings, error) {
	id, _, err := m.store.Get().SimklClientCredentials()
	if err != nil {
		return nil, err
	}
	rest := provider.NewREST(domain.SourceSimkl, m.apiURL, func(context.Context) (map[string]string, error) {
		return map[string]string{
			"Authorization": "Bearer " + token,
			"simkl-api-key": id,
		}, nil
	}, m.httpc, m.logger)

	var settings simklSettings
	if err := rest.PostJSON(ctx, "/users/settings", struct{}{}, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (m *Manager) clearFlow() {
	m.mu.Lock()
	m.flow = nil
	if m.cancelFlow != nil {
		m.cancelFlow()
		m.cancelFlow = nil
	}
	m.mu.Unlock()
}

// AuthHeadersFrom returns a header hook that always carries the app
// key and adds the user's bearer token when logged in. Catalog reads
// work with the key alone.
func AuthHeadersFrom(store *config.Store) provider.HeaderFunc {
	return func(context.Context) (map[string]string, error) {
		s := store.Get()
		id, _, err := s.SimklClientCredentials()
		if err != nil {
			return nil, err
		}
		headers := map[string]string{"simkl-api-key": id}
		if s.SimklAccessToken != "" {
			headers["Authorization"] = "Bearer " + s.SimklAccessToken
		}
		return headers, nil
	}
}
