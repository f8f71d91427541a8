package provider

import (
	"io"
	"net/http"

	"github.com/zoro-md/zoro/internal/domain"
)

// ErrorFromStatus maps a non-2xx provider response onto the domain
// error kind the retry policy keys on. path names the failed resource
// for not-found reporting.
func ErrorFromStatus(source domain.Source, status int, body []byte, path string) error {
	switch status {
	case http.StatusUnauthorized:
		return &domain.AuthError{Source: source, Reason: "request rejected as unauthorized"}
	case http.StatusNotFound:
		return &domain.NotFoundError{Source: source, Kind: "resource", Key: path}
	case http.StatusTooManyRequests:
		return &domain.RateLimitError{Source: source}
	default:
		return &domain.ProviderError{Source: source, Status: status, Body: truncate(body, maxErrBody)}
	}
}

// Transport injects per-request headers and turns non-2xx responses
// into typed errors at the RoundTrip level. It exists for clients that
// hide the *http.Response, like the GraphQL client; the REST helper
// does its own header and status handling.
type Transport struct {
	Base    http.RoundTripper
	Source  domain.Source
	Headers HeaderFunc
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Headers != nil {
		extra, err := t.Headers(req.Context())
		if err != nil {
			return nil, err
		}
		if len(extra) > 0 {
			req = req.Clone(req.Context())
			for k, v := range extra {
				req.Header.Set(k, v)
			}
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, &domain.NetworkError{Source: t.Source, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	resp.Body.Close()
	if ra := retryAfter(resp); ra > 0 && resp.StatusCode == http.StatusTooManyRequests {
		return nil, &domain.RateLimitError{Source: t.Source, RetryAfter: ra}
	}
	return nil, ErrorFromStatus(t.Source, resp.StatusCode, body, req.URL.Path)
}
