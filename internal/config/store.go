package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Store owns the persisted settings blob. It is the sole writer of
// credential material; readers get a consistent snapshot per call.
type Store struct {
	mu     sync.RWMutex
	v      *viper.Viper
	path   string
	s      Settings
	subs   map[int]func(Settings)
	nextID int
	logger *slog.Logger
}

// NewStore loads settings from path, filling defaults for missing or
// legacy fields. A missing file is not an error; defaults apply.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	// Environment variable overrides for credential material
	v.SetEnvPrefix("ZORO")
	v.BindEnv("tmdbApiKey", "ZORO_TMDB_API_KEY")
	v.BindEnv("clientId", "ZORO_ANILIST_CLIENT_ID")
	v.BindEnv("clientSecret", "ZORO_ANILIST_CLIENT_SECRET")
	v.BindEnv("malClientId", "ZORO_MAL_CLIENT_ID")
	v.BindEnv("malClientSecret", "ZORO_MAL_CLIENT_SECRET")
	v.BindEnv("simklClientId", "ZORO_SIMKL_CLIENT_ID")
	v.BindEnv("simklClientSecret", "ZORO_SIMKL_CLIENT_SECRET")

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading settings file: %w", err)
			}
		}
		// Missing settings file is fine, defaults apply
	}

	s := DefaultSettings()
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error parsing settings: %w", err)
	}

	// Legacy installs stored gridColumns as a number
	if raw := v.Get("gridColumns"); raw != nil {
		s.GridColumns = normalizeGridColumns(raw)
	}
	if s.CustomSearchURLs == nil {
		s.CustomSearchURLs = DefaultSettings().CustomSearchURLs
	}
	if s.CustomPropertyNames == nil {
		s.CustomPropertyNames = map[string]string{}
	}

	return &Store{
		v:      v,
		path:   path,
		s:      s,
		subs:   make(map[int]func(Settings)),
		logger: logger,
	}, nil
}

// Get returns a snapshot of the current settings
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.clone()
}

// Update applies fn to a copy of the settings, persists the result, and
// notifies subscribers. The settings are unchanged if persisting fails.
func (st *Store) Update(fn func(*Settings)) error {
	st.mu.Lock()
	next := st.s.clone()
	fn(&next)

	if err := st.write(next); err != nil {
		st.mu.Unlock()
		return err
	}
	st.s = next

	subs := make([]func(Settings), 0, len(st.subs))
	for _, sub := range st.subs {
		subs = append(subs, sub)
	}
	snapshot := next.clone()
	st.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
	return nil
}

// Save persists the current settings without modification
func (st *Store) Save() error {
	return st.Update(func(*Settings) {})
}

// Subscribe registers fn to run after every successful save. The returned
// function removes the subscription.
func (st *Store) Subscribe(fn func(Settings)) func() {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextID
	st.nextID++
	st.subs[id] = fn
	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		delete(st.subs, id)
	}
}

// write persists the whole record atomically: viper writes a temp file in
// the same directory, then it is renamed over the target.
func (st *Store) write(s Settings) error {
	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	applyToViper(st.v, s)

	tmp := filepath.Join(dir, ".settings.tmp.json")
	if err := st.v.WriteConfigAs(tmp); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

// applyToViper sets every field individually to keep the stable key names
func applyToViper(v *viper.Viper, s Settings) {
	v.Set("defaultApiSource", s.DefaultApiSource)
	v.Set("defaultUsername", s.DefaultUsername)
	v.Set("defaultLayout", s.DefaultLayout)
	v.Set("gridColumns", s.GridColumns)
	v.Set("notePath", s.NotePath)

	v.Set("insertCodeBlockOnNote", s.InsertCodeBlockOnNote)
	v.Set("showCoverImages", s.ShowCoverImages)
	v.Set("showRatings", s.ShowRatings)
	v.Set("showProgress", s.ShowProgress)
	v.Set("showGenres", s.ShowGenres)
	v.Set("showLoadingIcon", s.ShowLoadingIcon)
	v.Set("hideUrlsInTitles", s.HideUrlsInTitles)
	v.Set("forceScoreFormat", s.ForceScoreFormat)

	v.Set("clientId", s.ClientID)
	v.Set("clientSecret", s.ClientSecret)
	v.Set("accessToken", s.AccessToken)
	v.Set("anilistUsername", s.AniListUsername)

	v.Set("malClientId", s.MALClientID)
	v.Set("malClientSecret", s.MALClientSecret)
	v.Set("malAccessToken", s.MALAccessToken)
	v.Set("malRefreshToken", s.MALRefreshToken)
	v.Set("malTokenExpiry", s.MALTokenExpiry)
	v.Set("malUserInfo", s.MALUserInfo)

	v.Set("simklClientId", s.SimklClientID)
	v.Set("simklClientSecret", s.SimklClientSecret)
	v.Set("simklAccessToken", s.SimklAccessToken)
	v.Set("simklUserInfo", s.SimklUserInfo)

	v.Set("customSearchUrls", s.CustomSearchURLs)
	v.Set("customPropertyNames", s.CustomPropertyNames)
	v.Set("autoFormatSearchUrls", s.AutoFormatSearchUrls)
	v.Set("tmdbApiKey", s.TMDBApiKey)
}

// clone deep-copies the settings so snapshots never share maps
func (s Settings) clone() Settings {
	out := s
	if s.CustomSearchURLs != nil {
		out.CustomSearchURLs = make(map[string][]string, len(s.CustomSearchURLs))
		for k, urls := range s.CustomSearchURLs {
			out.CustomSearchURLs[k] = append([]string(nil), urls...)
		}
	}
	if s.CustomPropertyNames != nil {
		out.CustomPropertyNames = make(map[string]string, len(s.CustomPropertyNames))
		for k, name := range s.CustomPropertyNames {
			out.CustomPropertyNames[k] = name
		}
	}
	if s.MALUserInfo != nil {
		info := *s.MALUserInfo
		out.MALUserInfo = &info
	}
	if s.SimklUserInfo != nil {
		info := *s.SimklUserInfo
		out.SimklUserInfo = &info
	}
	return out
}

// ClearAniListAuth wipes the AniList token and cached identity. Returns the
// username that was logged in, for cache invalidation by the caller.
func (st *Store) ClearAniListAuth() (string, error) {
	prior := st.Get().AniListUsername
	err := st.Update(func(s *Settings) {
		s.AccessToken = ""
		s.AniListUsername = ""
	})
	return prior, err
}

// ClearMALAuth wipes the MAL tokens, expiry, and cached identity
func (st *Store) ClearMALAuth() (string, error) {
	var prior string
	if info := st.Get().MALUserInfo; info != nil {
		prior = info.Name
	}
	err := st.Update(func(s *Settings) {
		s.MALAccessToken = ""
		s.MALRefreshToken = ""
		s.MALTokenExpiry = 0
		s.MALUserInfo = nil
	})
	return prior, err
}

// ClearSimklAuth wipes the Simkl token and cached identity
func (st *Store) ClearSimklAuth() (string, error) {
	var prior string
	if info := st.Get().SimklUserInfo; info != nil {
		prior = info.Name
	}
	err := st.Update(func(s *Settings) {
		s.SimklAccessToken = ""
		s.SimklUserInfo = nil
	})
	return prior, err
}

// SetAniListClient stores new app credentials. Changing either field
// invalidates any held token and identity.
func (st *Store) SetAniListClient(clientID, clientSecret string) error {
	return st.Update(func(s *Settings) {
		if s.ClientID != clientID || s.ClientSecret != clientSecret {
			s.AccessToken = ""
			s.AniListUsername = ""
		}
		s.ClientID = clientID
		s.ClientSecret = clientSecret
	})
}

// SetMALClient stores new app credentials, wiping held tokens on change
func (st *Store) SetMALClient(clientID, clientSecret string) error {
	return st.Update(func(s *Settings) {
		if s.MALClientID != clientID || s.MALClientSecret != clientSecret {
			s.MALAccessToken = ""
			s.MALRefreshToken = ""
			s.MALTokenExpiry = 0
			s.MALUserInfo = nil
		}
		s.MALClientID = clientID
		s.MALClientSecret = clientSecret
	})
}

// SetSimklClient stores new app credentials, wiping held tokens on change
func (st *Store) SetSimklClient(clientID, clientSecret string) error {
	return st.Update(func(s *Settings) {
		if s.SimklClientID != clientID || s.SimklClientSecret != clientSecret {
			s.SimklAccessToken = ""
			s.SimklUserInfo = nil
		}
		s.SimklClientID = clientID
		s.SimklClientSecret = clientSecret
	})
}
