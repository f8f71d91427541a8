package codeblock

import (
	"strconv"
	"strings"

	"github.com/zoro-md/zoro/internal/domain"
)

// rawBlock holds the block text after parsing and normalization but
// before defaults are applied. String fields are already case-folded;
// empty means the key was absent.
type rawBlock struct {
	Username  string
	ListType  string `validate:"omitempty,oneof=CURRENT PLANNING COMPLETED DROPPED PAUSED REPEATING"`
	MediaType string `validate:"omitempty,oneof=ANIME MANGA MOVIE TV"`
	Kind      string `validate:"omitempty,oneof=list single search stats trending"`
	Layout    string `validate:"omitempty,oneof=card table grid"`
	Search    string
	Source    string `validate:"omitempty,oneof=anilist mal simkl tmdb jikan"`
	Page      int    `validate:"min=0,max=10000"`
	PerPage   int    `validate:"min=0,max=100"`
	MediaID   int    `validate:"min=0"`
}

// keyAliases folds every accepted spelling onto its canonical key.
// Keys are matched after lowercasing; unknown keys are ignored so
// blocks can carry renderer-private settings.
var keyAliases = map[string]string{
	"username": "username",
	"user":     "username",

	"listtype":  "listtype",
	"list-type": "listtype",
	"list_type": "listtype",

	"mediatype":  "mediatype",
	"media-type": "mediatype",
	"media_type": "mediatype",

	"type":   "type",
	"layout": "layout",

	"search": "search",
	"query":  "search",

	"source": "source",
	"api":    "source",

	"page": "page",

	"perpage":  "perpage",
	"per-page": "perpage",
	"per_page": "perpage",
	"limit":    "perpage",

	"mediaid":  "mediaid",
	"media-id": "mediaid",
	"media_id": "mediaid",
	"id":       "mediaid",
}

// parse reads "key: value" lines into a rawBlock. Lines without a
// colon and unknown keys are skipped.
func parse(text string) (rawBlock, error) {
	var raw rawBlock
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		canonical, known := keyAliases[key]
		if !known {
			continue
		}
		if err := raw.set(canonical, value); err != nil {
			return rawBlock{}, err
		}
	}
	return raw, nil
}

func (r *rawBlock) set(key, value string) error {
	switch key {
	case "username":
		r.Username = value
	case "listtype":
		// ParseStatus folds case and separators and accepts the
		// reading/watching aliases
		status, err := domain.ParseStatus(value)
		if err != nil {
			return err
		}
		r.ListType = string(status)
	case "mediatype":
		// ParseMediaType folds case and resolves the MOVIE_TV bucket
		mt, err := domain.ParseMediaType(value)
		if err != nil {
			return err
		}
		r.MediaType = string(mt)
	case "type":
		r.Kind = strings.ToLower(value)
	case "layout":
		r.Layout = strings.ToLower(value)
	case "search":
		r.Search = value
	case "source":
		r.Source = strings.ToLower(value)
	case "page", "perpage", "mediaid":
		n, err := strconv.Atoi(value)
		if err != nil {
			return &domain.ValidationError{Field: key, Reason: "must be a number"}
		}
		switch key {
		case "page":
			r.Page = n
		case "perpage":
			r.PerPage = n
		case "mediaid":
			r.MediaID = n
		}
	}
	return nil
}
