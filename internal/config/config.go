package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/zoro-md/zoro/internal/domain"
)

// UserInfo is the trimmed provider profile persisted after login
type UserInfo struct {
	ID   int    `json:"id,omitempty" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
}

// Settings is the persisted configuration blob. JSON keys are stable and
// must not change; older installs are migrated in place on load.
type Settings struct {
	DefaultApiSource string `json:"defaultApiSource" mapstructure:"defaultApiSource"`
	DefaultUsername  string `json:"defaultUsername" mapstructure:"defaultUsername"`
	DefaultLayout    string `json:"defaultLayout" mapstructure:"defaultLayout"`
	GridColumns      string `json:"gridColumns" mapstructure:"gridColumns"` // "default" or "1".."6"
	NotePath         string `json:"notePath" mapstructure:"notePath"`

	InsertCodeBlockOnNote bool `json:"insertCodeBlockOnNote" mapstructure:"insertCodeBlockOnNote"`
	ShowCoverImages       bool `json:"showCoverImages" mapstructure:"showCoverImages"`
	ShowRatings           bool `json:"showRatings" mapstructure:"showRatings"`
	ShowProgress          bool `json:"showProgress" mapstructure:"showProgress"`
	ShowGenres            bool `json:"showGenres" mapstructure:"showGenres"`
	ShowLoadingIcon       bool `json:"showLoadingIcon" mapstructure:"showLoadingIcon"`
	HideUrlsInTitles      bool `json:"hideUrlsInTitles" mapstructure:"hideUrlsInTitles"`
	ForceScoreFormat      bool `json:"forceScoreFormat" mapstructure:"forceScoreFormat"`

	// AniList credentials keep their original flat key names
	ClientID        string `json:"clientId" mapstructure:"clientId"`
	ClientSecret    string `json:"clientSecret" mapstructure:"clientSecret"`
	AccessToken     string `json:"accessToken" mapstructure:"accessToken"`
	AniListUsername string `json:"anilistUsername" mapstructure:"anilistUsername"`

	MALClientID     string    `json:"malClientId" mapstructure:"malClientId"`
	MALClientSecret string    `json:"malClientSecret" mapstructure:"malClientSecret"`
	MALAccessToken  string    `json:"malAccessToken" mapstructure:"malAccessToken"`
	MALRefreshToken string    `json:"malRefreshToken" mapstructure:"malRefreshToken"`
	MALTokenExpiry  int64     `json:"malTokenExpiry" mapstructure:"malTokenExpiry"` // unix milliseconds
	MALUserInfo     *UserInfo `json:"malUserInfo,omitempty" mapstructure:"malUserInfo"`

	SimklClientID     string    `json:"simklClientId" mapstructure:"simklClientId"`
	SimklClientSecret string    `json:"simklClientSecret" mapstructure:"simklClientSecret"`
	SimklAccessToken  string    `json:"simklAccessToken" mapstructure:"simklAccessToken"`
	SimklUserInfo     *UserInfo `json:"simklUserInfo,omitempty" mapstructure:"simklUserInfo"`

	CustomSearchURLs     map[string][]string `json:"customSearchUrls" mapstructure:"customSearchUrls"`
	CustomPropertyNames  map[string]string   `json:"customPropertyNames" mapstructure:"customPropertyNames"`
	AutoFormatSearchUrls bool                `json:"autoFormatSearchUrls" mapstructure:"autoFormatSearchUrls"`
	TMDBApiKey           string              `json:"tmdbApiKey" mapstructure:"tmdbApiKey"`
}

// DefaultSettings returns the settings of a fresh install
func DefaultSettings() Settings {
	return Settings{
		DefaultApiSource:      string(domain.SourceAniList),
		DefaultLayout:         "card",
		GridColumns:           "default",
		NotePath:              "Zoro/Note",
		InsertCodeBlockOnNote: true,
		ShowCoverImages:       true,
		ShowRatings:           true,
		ShowProgress:          true,
		ShowGenres:            true,
		ShowLoadingIcon:       true,
		HideUrlsInTitles:      true,
		ForceScoreFormat:      true,
		AutoFormatSearchUrls:  true,
		CustomSearchURLs: map[string][]string{
			"ANIME":    {},
			"MANGA":    {},
			"MOVIE_TV": {},
		},
		CustomPropertyNames: map[string]string{},
	}
}

// DefaultSource returns the configured default list service, falling back
// to AniList when the stored value is unusable
func (s Settings) DefaultSource() domain.Source {
	src, err := domain.ParseSource(s.DefaultApiSource)
	if err != nil || !src.IsListService() {
		return domain.SourceAniList
	}
	return src
}

// AniListClientCredentials returns the AniList app credentials.
// The secret is optional on some installs; the ID is not.
func (s Settings) AniListClientCredentials() (id, secret string, err error) {
	if s.ClientID == "" {
		return "", "", &domain.ConfigError{Field: "clientId"}
	}
	return s.ClientID, s.ClientSecret, nil
}

// MALClientCredentials returns the MAL app credentials; the secret is
// optional for public PKCE clients
func (s Settings) MALClientCredentials() (id, secret string, err error) {
	if s.MALClientID == "" {
		return "", "", &domain.ConfigError{Field: "malClientId"}
	}
	return s.MALClientID, s.MALClientSecret, nil
}

// SimklClientCredentials returns the Simkl app credentials
func (s Settings) SimklClientCredentials() (id, secret string, err error) {
	if s.SimklClientID == "" {
		return "", "", &domain.ConfigError{Field: "simklClientId"}
	}
	return s.SimklClientID, s.SimklClientSecret, nil
}

// TMDBKey returns the TMDb API key required for movie/TV trending
func (s Settings) TMDBKey() (string, error) {
	if s.TMDBApiKey == "" {
		return "", &domain.ConfigError{Field: "tmdbApiKey"}
	}
	return s.TMDBApiKey, nil
}

// DefaultPath returns the default settings file path for the current OS
func DefaultPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "zoro", "data.json")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "zoro", "data.json")
	}
}

// DefaultCachePath returns the default cache database path for the current OS
func DefaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "zoro", "cache.db")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "zoro", "cache.db")
	}
}

// DefaultLogPath returns the default log file path for the current OS
func DefaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "zoro", "zoro.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "zoro", "zoro.log")
	}
}

// normalizeGridColumns maps legacy numeric values onto the string enum
func normalizeGridColumns(raw any) string {
	switch v := raw.(type) {
	case string:
		switch v {
		case "1", "2", "3", "4", "5", "6", "default":
			return v
		}
	case int, int64, float64:
		n := 0
		switch t := v.(type) {
		case int:
			n = t
		case int64:
			n = int(t)
		case float64:
			n = int(t)
		}
		if n >= 1 && n <= 6 {
			return fmt.Sprintf("%d", n)
		}
	}
	return "default"
}
