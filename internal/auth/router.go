// Package auth holds the pieces of the OAuth flows that are shared
// across providers: PKCE material, CSRF state nonces, and the router
// that dispatches external redirect payloads back to whichever login
// is waiting for them.
package auth

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/zoro-md/zoro/internal/domain"
)

// Completion is what a pending login receives when its redirect
// arrives. Either Code is set or Err carries the provider-reported
// failure.
type Completion struct {
	Code string
	Err  error
}

// CompleteFunc finishes a login flow, typically by exchanging the code
// for a token. Its error is surfaced to whoever delivered the redirect.
type CompleteFunc func(ctx context.Context, c Completion) error

type pending struct {
	source   domain.Source
	tag      string
	state    string // empty for flows that carry no CSRF state
	complete CompleteFunc
}

// Router matches incoming auth redirects to pending logins. A redirect
// is routed by exact state match first, then by the provider tag in the
// URL path (/anilist, /mal, /simkl). A stated redirect that matches no
// pending state is rejected without touching any flow.
type Router struct {
	mu      sync.Mutex
	byState map[string]*pending
	byTag   map[string]*pending
	logger  *slog.Logger
}

// NewRouter creates an empty redirect router
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		byState: make(map[string]*pending),
		byTag:   make(map[string]*pending),
		logger:  logger,
	}
}

// Expect registers a pending login for source. A new registration for
// the same provider supersedes the old one. The returned cancel removes
// the registration; calling it after completion is a no-op.
func (r *Router) Expect(source domain.Source, state string, complete CompleteFunc) (cancel func()) {
	p := &pending{
		source:   source,
		tag:      string(source),
		state:    state,
		complete: complete,
	}

	r.mu.Lock()
	if old, ok := r.byTag[p.tag]; ok {
		r.remove(old)
	}
	r.byTag[p.tag] = p
	if state != "" {
		r.byState[state] = p
	}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.byTag[p.tag]; ok && cur == p {
			r.remove(p)
		}
	}
}

// Pending reports whether a login is currently waiting for source
func (r *Router) Pending(source domain.Source) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byTag[string(source)]
	return ok
}

// HandleRedirect parses a redirect payload (full URL, query string, or
// bare key=value pairs), finds the pending login it belongs to, and
// runs its completion. State mismatches fail closed: no flow is
// consumed and no token is written.
func (r *Router) HandleRedirect(ctx context.Context, payload string) error {
	red, err := parseRedirect(payload)
	if err != nil {
		return &domain.AuthError{Reason: "malformed redirect payload", Err: err}
	}

	r.mu.Lock()
	p, matchErr := r.match(red)
	if matchErr != nil {
		r.mu.Unlock()
		r.logger.Warn("auth redirect rejected", "tag", red.tag, "error", matchErr)
		return matchErr
	}
	if p == nil {
		r.mu.Unlock()
		return &domain.AuthError{Reason: "no login in progress for redirect"}
	}
	if red.errText == "" && red.code == "" {
		r.mu.Unlock()
		return &domain.AuthError{Source: p.source, Reason: "redirect carried no code"}
	}
	r.remove(p)
	r.mu.Unlock()

	if red.errText != "" {
		authErr := &domain.AuthError{Source: p.source, Reason: red.errText}
		_ = p.complete(ctx, Completion{Err: authErr})
		return authErr
	}

	r.logger.Info("auth redirect routed", "source", p.source)
	return p.complete(ctx, Completion{Code: red.code})
}

// match resolves a redirect to its pending login. Caller holds r.mu.
func (r *Router) match(red redirect) (*pending, error) {
	if red.state != "" {
		if p, ok := r.byState[red.state]; ok {
			return p, nil
		}
	}
	if red.tag != "" {
		if p, ok := r.byTag[red.tag]; ok {
			if p.state != "" && p.state != red.state {
				return nil, &domain.AuthError{Source: p.source, Reason: "state mismatch", Err: domain.ErrStateMismatch}
			}
			return p, nil
		}
	}
	// An untagged redirect carrying a state that matches nothing is a
	// forgery signal whenever a stateful login is pending.
	if red.state != "" {
		for _, p := range r.byTag {
			if p.state != "" {
				return nil, &domain.AuthError{Source: p.source, Reason: "state mismatch", Err: domain.ErrStateMismatch}
			}
		}
	}
	return nil, nil
}

// remove drops a pending login from both indexes. Caller holds r.mu.
func (r *Router) remove(p *pending) {
	delete(r.byTag, p.tag)
	if p.state != "" {
		delete(r.byState, p.state)
	}
}

type redirect struct {
	code    string
	state   string
	tag     string
	errText string
}

func parseRedirect(payload string) (redirect, error) {
	payload = strings.TrimSpace(payload)

	var (
		vals url.Values
		path string
	)
	if strings.Contains(payload, "://") {
		u, err := url.Parse(payload)
		if err != nil {
			return redirect{}, err
		}
		vals = u.Query()
		path = u.Path
		if path == "" {
			path = u.Opaque
		}
	} else {
		var err error
		vals, err = url.ParseQuery(strings.TrimPrefix(payload, "?"))
		if err != nil {
			return redirect{}, err
		}
	}

	red := redirect{
		code:  vals.Get("code"),
		state: vals.Get("state"),
		tag:   tagFromPath(path),
	}
	red.errText = vals.Get("error_description")
	if red.errText == "" {
		red.errText = vals.Get("error")
	}
	return red, nil
}

// tagFromPath extracts the provider tag from the last path segment of
// a redirect URL, e.g. obsidian://zoro-auth/mal -> "mal".
func tagFromPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	segs := strings.Split(p, "/")
	switch tag := strings.ToLower(segs[len(segs)-1]); tag {
	case "anilist", "mal", "simkl":
		return tag
	default:
		return ""
	}
}
